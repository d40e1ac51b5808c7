// Package trace defines the captured HTTP exchange record and the
// in-memory store the UI reads from.
//
// A Trace is one request/response pair pushed to the collector by an
// instrumented process. Identity is the externally assigned ID; display
// order is newest-first by timestamp with the ID as tiebreaker, so two
// traces captured in the same millisecond never collapse into one slot.
package trace

import (
	"fmt"
	"strings"
	"time"
)

// State is the lifecycle state of a captured exchange.
type State int

const (
	StateReceived State = iota
	StateSent
	StateAborted
	StateBlocked
	StateTimeout
	StateError
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "Received"
	case StateSent:
		return "Sent"
	case StateAborted:
		return "Aborted"
	case StateBlocked:
		return "Blocked"
	case StateTimeout:
		return "Timeout"
	case StateError:
		return "Error"
	}
	return "Unknown"
}

// Terminal reports whether the exchange has reached a final state.
// Only a trace still waiting for its response (Sent) can time out.
func (s State) Terminal() bool {
	return s != StateSent
}

// ParseState maps a wire state string onto a State. Unrecognized
// values map to StateError rather than failing the frame.
func ParseState(s string) State {
	switch strings.ToLower(s) {
	case "received":
		return StateReceived
	case "sent":
		return StateSent
	case "aborted":
		return StateAborted
	case "blocked":
		return StateBlocked
	case "timeout":
		return StateTimeout
	}
	return StateError
}

// Header is a single name/value pair.
type Header struct {
	Name  string
	Value string
}

// Headers is an insertion-ordered multimap. The same name may appear
// more than once; iteration order is the order values arrived in.
type Headers []Header

// Add appends a value, preserving arrival order.
func (h *Headers) Add(name, value string) {
	*h = append(*h, Header{Name: name, Value: value})
}

// Get returns the first value for name, matched case-insensitively.
func (h Headers) Get(name string) (string, bool) {
	for _, e := range h {
		if strings.EqualFold(e.Name, name) {
			return e.Value, true
		}
	}
	return "", false
}

// Has reports whether at least one value exists for name.
func (h Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Values returns every value for name in arrival order.
func (h Headers) Values(name string) []string {
	var out []string
	for _, e := range h {
		if strings.EqualFold(e.Name, name) {
			out = append(out, e.Value)
		}
	}
	return out
}

// Timings carries the optional per-phase breakdown reported by the
// producer, in milliseconds.
type Timings struct {
	Blocked float64
	DNS     float64
	Connect float64
	Send    float64
	Wait    float64
	Receive float64
	SSL     float64
}

// Trace is one captured HTTP exchange.
//
// Optional numeric fields are pointers: a nil Status is "no response
// status yet" (or cleared by a timeout), which is distinct from 0.
type Trace struct {
	ID          string
	Timestamp   int64 // epoch milliseconds
	ServiceName string

	Method      string
	State       State
	Status      *int
	HTTPVersion string

	URI  string
	Host string
	Port *int
	Path string

	Duration *int64 // milliseconds
	Timings  *Timings

	RequestHeaders  Headers
	ResponseHeaders Headers

	RequestBody  string
	ResponseBody string

	// Pretty* hold the reformatted JSON bodies when pretty-printing
	// succeeded, with precomputed line counts for viewport math.
	PrettyRequestBody       string
	PrettyRequestBodyLines  int
	PrettyResponseBody      string
	PrettyResponseBodyLines int

	// Raw is the original envelope, kept for the debug view and export.
	Raw string
}

func (t *Trace) String() string {
	ts := time.UnixMilli(t.Timestamp).UTC().Format(time.RFC3339)
	status := "-"
	if t.Status != nil {
		status = fmt.Sprintf("%d", *t.Status)
	}
	return fmt.Sprintf("%s %s %s [%s] at %s", t.Method, t.URI, status, t.State, ts)
}

// QueryParams decomposes the URI's query string into ordered pairs.
// Pairs without '=' get an empty value. A malformed URI yields nil.
func (t *Trace) QueryParams() []Header {
	_, query, ok := strings.Cut(t.URI, "?")
	if !ok || query == "" {
		return nil
	}
	var params []Header
	for _, entry := range strings.Split(query, "&") {
		if entry == "" {
			continue
		}
		name, value, _ := strings.Cut(entry, "=")
		params = append(params, Header{Name: name, Value: value})
	}
	return params
}
