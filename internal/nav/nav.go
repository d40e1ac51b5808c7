// Package nav owns focus, selection, and scroll state. Everything in
// here is pure bookkeeping over (content length, usable height, offset,
// direction); no I/O, no timers, so every transition is unit-testable.
package nav

import "math"

// Block identifies the focused UI region. Exactly one block is active
// at a time.
type Block int

const (
	BlockTraces Block = iota
	BlockRequestSummary
	BlockRequestDetails
	BlockRequestBody
	BlockResponseDetails
	BlockResponseBody
	BlockSearch
	BlockHelp
	BlockDebug
	BlockFilter
	BlockSort
)

func (b Block) String() string {
	switch b {
	case BlockTraces:
		return "Traces"
	case BlockRequestSummary:
		return "Request Summary"
	case BlockRequestDetails:
		return "Request Details"
	case BlockRequestBody:
		return "Request Body"
	case BlockResponseDetails:
		return "Response Details"
	case BlockResponseBody:
		return "Response Body"
	case BlockSearch:
		return "Search"
	case BlockHelp:
		return "Help"
	case BlockDebug:
		return "Debug"
	case BlockFilter:
		return "Filter"
	case BlockSort:
		return "Sort"
	}
	return "?"
}

// ring is the Tab traversal order across the main panes.
var ring = []Block{
	BlockTraces,
	BlockRequestSummary,
	BlockRequestDetails,
	BlockRequestBody,
	BlockResponseDetails,
	BlockResponseBody,
}

// DetailsPane is the nested sub-pane inside the request details block.
type DetailsPane int

const (
	PaneQuery DetailsPane = iota
	PaneHeaders
)

func (p DetailsPane) String() string {
	if p == PaneQuery {
		return "Query"
	}
	return "Headers"
}

// FilterScreen is the page shown inside the filter overlay.
type FilterScreen int

const (
	FilterMain FilterScreen = iota
	FilterMethod
	FilterSource
	FilterStatus
)

// State is the focus state machine: current block, the overlay return
// stack, and the nested request-details pane.
type State struct {
	Active       Block
	RequestPane  DetailsPane
	FilterScreen FilterScreen

	previous []Block
}

func NewState() State {
	return State{Active: BlockTraces}
}

// ringIndex returns the active block's position in the Tab ring, or -1
// when the active block is an overlay or search.
func (s *State) ringIndex() int {
	for i, b := range ring {
		if b == s.Active {
			return i
		}
	}
	return -1
}

// Next advances around the pane ring. Overlays ignore Tab.
func (s *State) Next() {
	if i := s.ringIndex(); i >= 0 {
		s.Active = ring[(i+1)%len(ring)]
	}
}

// Prev steps backwards around the pane ring.
func (s *State) Prev() {
	if i := s.ringIndex(); i >= 0 {
		s.Active = ring[(i-1+len(ring))%len(ring)]
	}
}

// Enter drills from the trace list into the request details.
func (s *State) Enter() {
	if s.Active == BlockTraces {
		s.Active = BlockRequestDetails
	}
}

// Escape returns focus to the trace list from any detail block.
func (s *State) Escape() {
	if s.ringIndex() > 0 || s.Active == BlockSearch {
		s.Active = BlockTraces
	}
}

// JumpUp is the Ctrl+Up cross-jump from response to request details.
func (s *State) JumpUp() {
	if s.Active == BlockResponseDetails {
		s.Active = BlockRequestDetails
	}
}

// JumpDown is the Ctrl+Down cross-jump from request to response details.
func (s *State) JumpDown() {
	if s.Active == BlockRequestDetails {
		s.Active = BlockResponseDetails
	}
}

// NextPane toggles the nested Query/Headers pane. Only meaningful
// while the request details block is focused.
func (s *State) NextPane() {
	if s.Active == BlockRequestDetails {
		s.RequestPane = (s.RequestPane + 1) % 2
	}
}

// PrevPane toggles the nested pane the other way. With two panes the
// two directions coincide, but callers bind them separately.
func (s *State) PrevPane() {
	s.NextPane()
}

// PushOverlay remembers the current block and activates an overlay
// (Help, Debug, Filter, Sort) or the search prompt.
func (s *State) PushOverlay(overlay Block) {
	s.previous = append(s.previous, s.Active)
	s.Active = overlay
	if overlay == BlockFilter {
		s.FilterScreen = FilterMain
	}
}

// PopOverlay restores the block that was focused before the overlay
// opened. It reports false when there is nothing to pop, which at the
// top level means the application should exit.
func (s *State) PopOverlay() bool {
	if len(s.previous) == 0 {
		return false
	}
	s.Active = s.previous[len(s.previous)-1]
	s.previous = s.previous[:len(s.previous)-1]
	return true
}

// OverlayDepth returns how many overlays are stacked.
func (s *State) OverlayDepth() int { return len(s.previous) }

// Viewport is scroll/selection state for one pane. Height is the
// usable height: the pane's cell height minus its chrome allowance,
// folded in by the dispatcher whenever the renderer reports sizes.
type Viewport struct {
	Index            int
	Offset           int
	HorizontalOffset int
	ContentLen       int
	Height           int
}

// Reset zeroes the cursor and both scroll offsets.
func (v *Viewport) Reset() {
	v.Index = 0
	v.Offset = 0
	v.HorizontalOffset = 0
}

// Up moves the cursor one step towards the top; the window follows one
// row at a time once the cursor crosses its upper edge.
func (v *Viewport) Up() {
	if v.Index == 0 {
		return
	}
	v.Index--
	if v.Index < v.Offset {
		v.Offset--
	}
}

// Down moves the cursor one step towards the bottom. The window slides
// only while its lower edge has not yet reached the end of the content.
func (v *Viewport) Down() {
	if v.Index+1 >= v.ContentLen {
		return
	}
	v.Index++
	if v.Index-v.Offset >= v.Height && v.Offset+v.Height < v.ContentLen {
		v.Offset++
	}
}

// Left scrolls a body pane one column left.
func (v *Viewport) Left() {
	if v.HorizontalOffset > 0 {
		v.HorizontalOffset--
	}
}

// Right scrolls a body pane one column right.
func (v *Viewport) Right() {
	v.HorizontalOffset++
}

// GoToStart jumps cursor and window to the top.
func (v *Viewport) GoToStart() {
	v.Index = 0
	v.Offset = 0
}

// GoToEnd jumps to the last valid index with the window flush against
// the bottom of the content.
func (v *Viewport) GoToEnd() {
	if v.ContentLen == 0 {
		v.Reset()
		return
	}
	v.Index = v.ContentLen - 1
	v.Offset = max(0, v.ContentLen-v.Height)
}

// Clamp pulls the cursor and offset back into range after the content
// shrank underneath them (deletes, filter changes).
func (v *Viewport) Clamp() {
	if v.ContentLen == 0 {
		v.Reset()
		return
	}
	if v.Index >= v.ContentLen {
		v.Index = v.ContentLen - 1
	}
	if v.Offset > v.Index {
		v.Offset = v.Index
	}
	if maxOff := max(0, v.ContentLen-v.Height); v.Offset > maxOff {
		v.Offset = maxOff
	}
}

// Overflows reports whether the content is taller than the window.
func (v *Viewport) Overflows() bool {
	return v.Height > 0 && v.ContentLen > v.Height
}

// ScrollbarPosition rescales the offset's natural range [0, L-H] onto
// the scrollbar track's range [0, L]. Zero when nothing overflows.
func (v *Viewport) ScrollbarPosition() int {
	if !v.Overflows() {
		return 0
	}
	overflow := v.ContentLen - v.Height
	return int(math.Round(float64(v.Offset) * float64(v.ContentLen) / float64(overflow)))
}
