package main

import (
	"strings"
	"testing"

	"github.com/FormidableLabs/envy-tui/internal/config"
	"github.com/FormidableLabs/envy-tui/internal/trace"
)

func TestViewEmptyState(t *testing.T) {
	m := newTestModel(t)
	out := m.View()
	if !strings.Contains(out, "Waiting for traces") {
		t.Error("empty state message missing")
	}
	if !strings.Contains(out, "Traces (0)") {
		t.Error("trace count missing")
	}
}

func TestViewBeforeFirstResize(t *testing.T) {
	m := newModel(config.Default(), "addr")
	if out := m.View(); out != "Loading..." {
		t.Fatalf("view = %q", out)
	}
}

func TestViewRendersTraceRow(t *testing.T) {
	m := newTestModel(t)
	m = apply(t, m, addTraceMsg{trace: completedTrace("a", 100, "POST", "http://api.test/v1/login?next=%2F", 201)})

	out := m.View()
	for _, want := range []string{"POST", "201", "/v1/login"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
	// The summary pane carries the full URL for the selection.
	if !strings.Contains(out, "http://api.test/v1/login") {
		t.Error("summary missing full URL")
	}
}

func TestViewFooterShowsConnections(t *testing.T) {
	m := newTestModel(t)
	m = apply(t, m, connectionsMsg{clients: 2})
	if !strings.Contains(m.View(), "2 connected") {
		t.Error("footer missing connection count")
	}
}

func TestViewFooterPrefersStatusMessage(t *testing.T) {
	m := newTestModel(t)
	_ = (&m).setStatus("Copied curl command to clipboard")
	if !strings.Contains(m.View(), "Copied curl command to clipboard") {
		t.Error("status message not shown")
	}
}

func TestViewHelpOverlay(t *testing.T) {
	m := newTestModel(t)
	m = apply(t, m, keyPress("?"))
	out := m.View()
	if !strings.Contains(out, "Keys") {
		t.Error("help overlay missing")
	}
	m = apply(t, m, keyPress("esc"))
	if strings.Contains(m.View(), "Keys") {
		t.Error("help overlay still visible after esc")
	}
}

func TestViewDebugOverlay(t *testing.T) {
	m := newTestModel(t)
	m = apply(t, m, keyPress("p"))
	if !strings.Contains(m.View(), "Nothing logged yet") {
		t.Error("debug overlay missing empty message")
	}
}

func TestViewFilterScreens(t *testing.T) {
	m := newTestModel(t)
	m = apply(t, m, keyPress("f"))
	out := m.View()
	for _, want := range []string{"Method", "Source", "Status"} {
		if !strings.Contains(out, want) {
			t.Errorf("filter main missing %q", want)
		}
	}
	m = apply(t, m, keyPress("enter"))
	if !strings.Contains(m.View(), "GET") {
		t.Error("method screen missing GET")
	}
}

func TestViewTimeoutRow(t *testing.T) {
	m := newTestModel(t)
	m = apply(t, m,
		addTraceMsg{trace: sentTrace("a", 100, "GET", "http://h/slow")},
		markTimedOutMsg{id: "a"},
	)
	out := m.View()
	if !strings.Contains(out, "T/O") {
		t.Error("timed out trace not marked in list")
	}
	if !strings.Contains(out, trace.TimeoutBody) {
		t.Error("response body pane missing timeout text")
	}
}

func TestPathOf(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"http://localhost:3000/api/users?limit=5", "/api/users?limit=5"},
		{"https://example.com/", "/"},
		{"https://example.com", "/"},
		{"example.com/raw", "/raw"},
	}
	for _, c := range cases {
		if got := pathOf(c.url); got != c.want {
			t.Errorf("pathOf(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestShiftLine(t *testing.T) {
	if got := shiftLine("hello", 2); got != "llo" {
		t.Errorf("shift 2 = %q", got)
	}
	if got := shiftLine("hi", 5); got != "" {
		t.Errorf("shift past end = %q", got)
	}
	if got := shiftLine("héllo", 1); got != "éllo" {
		t.Errorf("rune shift = %q", got)
	}
}

func TestTruncateLine(t *testing.T) {
	if got := truncateLine("abcdef", 3); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncateLine("ab", 5); got != "ab" {
		t.Errorf("short line changed: %q", got)
	}
	if got := truncateLine("ab", 0); got != "" {
		t.Errorf("zero width = %q", got)
	}
}

func TestStatusLabel(t *testing.T) {
	code := 404
	cases := []struct {
		tr   *trace.Trace
		want string
	}{
		{&trace.Trace{State: trace.StateReceived, Status: &code}, "404"},
		{&trace.Trace{State: trace.StateSent}, "..."},
		{&trace.Trace{State: trace.StateTimeout}, "T/O"},
		{&trace.Trace{State: trace.StateError}, "-"},
	}
	for _, c := range cases {
		if got := statusLabel(c.tr); got != c.want {
			t.Errorf("statusLabel(%v) = %q, want %q", c.tr.State, got, c.want)
		}
	}
}
