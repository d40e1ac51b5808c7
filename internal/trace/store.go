package trace

import (
	"iter"
	"sort"
)

// TimeoutBody is written into both body fields when a trace is
// reconciled as timed out.
const TimeoutBody = "TIMEOUT WAITING FOR RESPONSE"

// Store is the authoritative, deduplicated, time-ordered trace set.
//
// Identity and ordering are kept independent: an id->record map owns
// identity, a separately maintained index sorted by (timestamp desc,
// id asc) owns presentation order. The Store is not safe for
// concurrent use; all mutation happens on the dispatcher loop, with
// ingestion crossing over as messages.
type Store struct {
	byID  map[string]*Trace
	order []*Trace
}

func NewStore() *Store {
	return &Store{byID: make(map[string]*Trace)}
}

// Len returns the number of distinct traces.
func (s *Store) Len() int { return len(s.order) }

// Get returns the trace with the given id, if present.
func (s *Store) Get(id string) (*Trace, bool) {
	t, ok := s.byID[id]
	return t, ok
}

// before reports whether a sorts ahead of b: newest first,
// id ascending on timestamp ties.
func before(a, b *Trace) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp > b.Timestamp
	}
	return a.ID < b.ID
}

// Upsert inserts the trace, replacing any existing trace with the same
// id. A later frame for the same exchange (e.g. the "received" event
// after a "sent" one) overwrites the earlier record entirely.
func (s *Store) Upsert(t *Trace) {
	if old, ok := s.byID[t.ID]; ok {
		s.dropFromOrder(old)
	}
	s.byID[t.ID] = t
	i := sort.Search(len(s.order), func(i int) bool {
		return !before(s.order[i], t)
	})
	s.order = append(s.order, nil)
	copy(s.order[i+1:], s.order[i:])
	s.order[i] = t
}

// Remove deletes the trace with the given id. Missing ids are a no-op.
func (s *Store) Remove(id string) {
	t, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	s.dropFromOrder(t)
}

// MarkTimedOut transitions a still-pending trace to Timeout, clearing
// its status and replacing both bodies with the sentinel text. Traces
// that already reached a terminal state are left untouched, so a late
// response racing the timeout timer always wins. Unknown ids are a
// no-op: the trace may have been deleted before the timer fired.
func (s *Store) MarkTimedOut(id string) {
	t, ok := s.byID[id]
	if !ok || t.State.Terminal() {
		return
	}
	t.State = StateTimeout
	t.Status = nil
	t.ResponseBody = TimeoutBody
	t.PrettyResponseBody = TimeoutBody
	t.PrettyResponseBodyLines = 1
}

// NewestFirst yields traces ordered by timestamp descending, id
// ascending on ties. The sequence is restartable; callers must not
// mutate the Store mid-iteration.
func (s *Store) NewestFirst() iter.Seq[*Trace] {
	return func(yield func(*Trace) bool) {
		for _, t := range s.order {
			if !yield(t) {
				return
			}
		}
	}
}

func (s *Store) dropFromOrder(t *Trace) {
	i := sort.Search(len(s.order), func(i int) bool {
		return !before(s.order[i], t)
	})
	for i < len(s.order) {
		if s.order[i] == t {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
		i++
	}
}
