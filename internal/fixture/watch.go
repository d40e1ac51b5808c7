package fixture

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher replays envelope files dropped into a directory. Each .json
// or .jsonl file holds one envelope per line; writing or creating a
// file emits its frames, so fixtures can be re-sent with `touch`.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	debounce time.Duration
	frames   chan string
	done     chan struct{}

	pending map[string]*time.Timer
}

// NewWatcher starts watching dir for fixture files.
func NewWatcher(dir string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	watcher := &Watcher{
		watcher:  w,
		dir:      dir,
		debounce: 100 * time.Millisecond,
		frames:   make(chan string, 64),
		done:     make(chan struct{}),
		pending:  make(map[string]*time.Timer),
	}

	go watcher.loop()
	return watcher, nil
}

// Frames returns the channel frames are replayed on.
func (w *Watcher) Frames() <-chan string {
	return w.frames
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			ext := filepath.Ext(event.Name)
			if ext != ".json" && ext != ".jsonl" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Debounce per file: editors fire several writes per save.
			if timer, ok := w.pending[event.Name]; ok {
				timer.Stop()
			}
			name := event.Name
			w.pending[name] = time.AfterFunc(w.debounce, func() {
				w.replay(name)
			})
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// replay pushes each non-empty line of the file as one frame.
func (w *Watcher) replay(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case w.frames <- line:
		case <-w.done:
			return
		}
	}
}
