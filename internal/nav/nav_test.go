package nav

import "testing"

func TestTabRingRoundTrip(t *testing.T) {
	s := NewState()
	want := []Block{
		BlockRequestSummary,
		BlockRequestDetails,
		BlockRequestBody,
		BlockResponseDetails,
		BlockResponseBody,
		BlockTraces,
	}
	for i, w := range want {
		s.Next()
		if s.Active != w {
			t.Fatalf("tab %d: active = %v, want %v", i+1, s.Active, w)
		}
	}
	for i := len(want) - 2; i >= 0; i-- {
		s.Prev()
		if s.Active != want[i] {
			t.Fatalf("shift-tab to %v: active = %v", want[i], s.Active)
		}
	}
}

func TestOverlayIgnoresTab(t *testing.T) {
	s := NewState()
	s.PushOverlay(BlockHelp)
	s.Next()
	if s.Active != BlockHelp {
		t.Fatalf("tab inside overlay moved focus to %v", s.Active)
	}
	s.Prev()
	if s.Active != BlockHelp {
		t.Fatalf("shift-tab inside overlay moved focus to %v", s.Active)
	}
}

func TestOverlayStack(t *testing.T) {
	s := NewState()
	s.Next() // RequestSummary
	s.PushOverlay(BlockFilter)
	if s.Active != BlockFilter || s.FilterScreen != FilterMain {
		t.Fatalf("after push: active = %v, screen = %v", s.Active, s.FilterScreen)
	}
	s.PushOverlay(BlockHelp)
	if !s.PopOverlay() || s.Active != BlockFilter {
		t.Fatalf("first pop: active = %v", s.Active)
	}
	if !s.PopOverlay() || s.Active != BlockRequestSummary {
		t.Fatalf("second pop: active = %v", s.Active)
	}
	if s.PopOverlay() {
		t.Fatal("pop on empty stack reported true")
	}
}

func TestCrossJumps(t *testing.T) {
	s := NewState()
	s.Active = BlockRequestDetails
	s.JumpDown()
	if s.Active != BlockResponseDetails {
		t.Fatalf("ctrl+down: active = %v", s.Active)
	}
	s.JumpUp()
	if s.Active != BlockRequestDetails {
		t.Fatalf("ctrl+up: active = %v", s.Active)
	}
	s.Active = BlockTraces
	s.JumpDown()
	if s.Active != BlockTraces {
		t.Fatalf("ctrl+down from traces moved focus to %v", s.Active)
	}
}

func TestNestedPaneToggle(t *testing.T) {
	s := NewState()
	s.Active = BlockRequestDetails
	if s.RequestPane != PaneQuery {
		t.Fatalf("initial pane = %v", s.RequestPane)
	}
	s.NextPane()
	if s.RequestPane != PaneHeaders {
		t.Fatalf("after toggle: pane = %v", s.RequestPane)
	}
	s.NextPane()
	if s.RequestPane != PaneQuery {
		t.Fatalf("after second toggle: pane = %v", s.RequestPane)
	}
	s.Active = BlockTraces
	s.NextPane()
	if s.RequestPane != PaneQuery {
		t.Fatal("pane toggled while details not focused")
	}
}

func TestViewportInvariant(t *testing.T) {
	v := Viewport{ContentLen: 50, Height: 10}
	steps := []func(){v.Down, v.Up, v.GoToEnd, v.GoToStart}
	// Random-ish walk: the cursor must stay inside the window after
	// every single movement.
	seq := []int{0, 0, 0, 0, 0, 1, 0, 0, 2, 1, 1, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}
	for i, pick := range seq {
		steps[pick]()
		if v.Index < v.Offset || v.Index >= v.Offset+v.Height {
			t.Fatalf("step %d: index %d outside window [%d,%d)",
				i, v.Index, v.Offset, v.Offset+v.Height)
		}
		if v.Offset < 0 || v.Offset > v.ContentLen-v.Height {
			t.Fatalf("step %d: offset %d out of range", i, v.Offset)
		}
	}
}

func TestViewportEdges(t *testing.T) {
	v := Viewport{ContentLen: 3, Height: 10}
	v.Up()
	if v.Index != 0 || v.Offset != 0 {
		t.Fatalf("up at top moved: index=%d offset=%d", v.Index, v.Offset)
	}
	v.Down()
	v.Down()
	v.Down() // at last row already
	if v.Index != 2 || v.Offset != 0 {
		t.Fatalf("down at bottom: index=%d offset=%d", v.Index, v.Offset)
	}
	v.GoToEnd()
	if v.Index != 2 || v.Offset != 0 {
		t.Fatalf("goto end with short content: index=%d offset=%d", v.Index, v.Offset)
	}

	var empty Viewport
	empty.Height = 10
	empty.Down()
	empty.GoToEnd()
	if empty.Index != 0 || empty.Offset != 0 {
		t.Fatalf("empty viewport moved: index=%d offset=%d", empty.Index, empty.Offset)
	}
}

func TestViewportGoToEnd(t *testing.T) {
	v := Viewport{ContentLen: 50, Height: 10}
	v.GoToEnd()
	if v.Index != 49 {
		t.Fatalf("index = %d, want 49", v.Index)
	}
	if v.Offset != 40 {
		t.Fatalf("offset = %d, want 40", v.Offset)
	}
}

func TestViewportClampAfterShrink(t *testing.T) {
	v := Viewport{ContentLen: 50, Height: 10}
	v.GoToEnd()
	v.ContentLen = 5
	v.Clamp()
	if v.Index != 4 || v.Offset != 0 {
		t.Fatalf("after shrink: index=%d offset=%d", v.Index, v.Offset)
	}
	v.ContentLen = 0
	v.Clamp()
	if v.Index != 0 || v.Offset != 0 || v.HorizontalOffset != 0 {
		t.Fatalf("after empty: %+v", v)
	}
}

func TestHorizontalScroll(t *testing.T) {
	var v Viewport
	v.Left()
	if v.HorizontalOffset != 0 {
		t.Fatalf("left at zero: %d", v.HorizontalOffset)
	}
	v.Right()
	v.Right()
	v.Left()
	if v.HorizontalOffset != 1 {
		t.Fatalf("horizontal offset = %d, want 1", v.HorizontalOffset)
	}
}

func TestScrollbarPosition(t *testing.T) {
	v := Viewport{ContentLen: 50, Height: 10}
	if got := v.ScrollbarPosition(); got != 0 {
		t.Fatalf("at top: %d", got)
	}
	prev := 0
	for v.Offset < v.ContentLen-v.Height {
		v.Offset++
		pos := v.ScrollbarPosition()
		if pos < prev {
			t.Fatalf("offset %d: scrollbar %d moved backwards from %d", v.Offset, pos, prev)
		}
		prev = pos
	}
	if prev != v.ContentLen {
		t.Fatalf("at bottom: scrollbar = %d, want %d", prev, v.ContentLen)
	}

	short := Viewport{ContentLen: 5, Height: 10}
	if short.Overflows() || short.ScrollbarPosition() != 0 {
		t.Fatal("short content reported a scrollbar position")
	}
}
