package fixture

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/FormidableLabs/envy-tui/internal/parse"
	"github.com/FormidableLabs/envy-tui/internal/trace"
)

func TestDemoEnvelopesParse(t *testing.T) {
	env := sentEnvelope("abc", "GET", "http://localhost:3000/health", 1700000000000)
	payload, err := parse.Frame(env)
	if err != nil {
		t.Fatalf("sent envelope: %v", err)
	}
	tp, ok := payload.(parse.TracePayload)
	if !ok {
		t.Fatalf("payload = %T", payload)
	}
	if tp.Trace.State != trace.StateSent || tp.Trace.Method != "GET" {
		t.Fatalf("trace = %+v", tp.Trace)
	}

	env = receivedEnvelope("abc", "GET", "http://localhost:3000/health", 1700000000000, 200, 42)
	payload, err = parse.Frame(env)
	if err != nil {
		t.Fatalf("received envelope: %v", err)
	}
	tr := payload.(parse.TracePayload).Trace
	if tr.State != trace.StateReceived {
		t.Fatalf("state = %v", tr.State)
	}
	if tr.Status == nil || *tr.Status != 200 {
		t.Fatalf("status = %v", tr.Status)
	}
	if tr.Duration == nil || *tr.Duration != 42 {
		t.Fatalf("duration = %v", tr.Duration)
	}
	if tr.PrettyResponseBody == "" {
		t.Fatal("response body did not pretty-print")
	}
}

func TestDemoEmitsFrames(t *testing.T) {
	stop := make(chan struct{})
	var mu sync.Mutex
	var frames []string
	go Demo(5*time.Millisecond, func(f string) {
		mu.Lock()
		frames = append(frames, f)
		mu.Unlock()
	}, stop)

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(frames)
		mu.Unlock()
		if n >= 3 {
			break
		}
		select {
		case <-deadline:
			close(stop)
			t.Fatalf("only %d frames emitted", n)
		case <-time.After(10 * time.Millisecond):
		}
	}
	close(stop)

	mu.Lock()
	defer mu.Unlock()
	for i, f := range frames {
		if _, err := parse.Frame(f); err != nil {
			t.Errorf("frame %d unparsable: %v", i, err)
		}
	}
}

func TestNewWatcherBadDir(t *testing.T) {
	if _, err := NewWatcher("/nonexistent/fixtures"); err == nil {
		t.Error("NewWatcher should fail for nonexistent directory")
	}
}

func TestWatcherReplaysFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	// Give fsnotify time to start watching.
	time.Sleep(50 * time.Millisecond)

	body := sentEnvelope("f1", "GET", "http://h/a", 1) + "\n\n" +
		sentEnvelope("f2", "POST", "http://h/b", 2) + "\n"
	if err := os.WriteFile(filepath.Join(dir, "traces.jsonl"), []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	for _, want := range []string{"f1", "f2"} {
		select {
		case frame := <-w.Frames():
			payload, err := parse.Frame(frame)
			if err != nil {
				t.Fatalf("replayed frame: %v", err)
			}
			if id := payload.(parse.TracePayload).Trace.ID; id != want {
				t.Fatalf("id = %q, want %q", id, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %s", want)
		}
	}
}

func TestWatcherIgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("noise"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case frame := <-w.Frames():
		t.Errorf("unexpected frame from .txt write: %q", frame)
	case <-time.After(300 * time.Millisecond):
		// Correct — no replay.
	}
}
