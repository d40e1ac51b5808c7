// envy is a terminal network inspector for HTTP traffic.
//
// Instrumented applications connect to its websocket collector and
// push trace envelopes; envy normalizes them and renders a live,
// navigable request/response view.
//
// Usage:
//
//	envy                        # Listen on 127.0.0.1:9999
//	envy --listen :4400         # Use a specific collector address
//	envy --config envy.toml     # Use a specific config file
//	envy --demo                 # Generate synthetic traffic
//	envy --fixtures ./captures  # Replay envelope files from a directory
//	envy --version              # Print version and exit
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/FormidableLabs/envy-tui/internal/config"
	"github.com/FormidableLabs/envy-tui/internal/fixture"
	"github.com/FormidableLabs/envy-tui/internal/hub"
	"github.com/FormidableLabs/envy-tui/internal/parse"
)

// Version is set via ldflags at build time (e.g. -X main.Version=v0.1.0).
var Version = "dev"

func main() {
	listenFlag := flag.String("listen", "", "collector listen address (overrides config)")
	configFlag := flag.String("config", "", "path to envy.toml (default: auto-discover)")
	demoFlag := flag.Bool("demo", false, "generate synthetic traces instead of listening for real ones")
	fixturesFlag := flag.String("fixtures", "", "replay envelope files from this directory")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("envy %s\n", Version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "envy: %v\n", err)
		os.Exit(1)
	}
	if *listenFlag != "" {
		cfg.Listen = *listenFlag
	}

	h := hub.New(cfg.Listen)
	if err := h.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "envy: listen: %v\n", err)
		os.Exit(1)
	}
	defer h.Stop()

	m := newModel(cfg, h.Addr())
	p := tea.NewProgram(m, tea.WithAltScreen())

	// Feed collector frames into the TUI.
	go func() {
		for f := range h.Frames() {
			p.Send(payloadMsg(f.Text))
		}
	}()
	go func() {
		for ev := range h.Events() {
			p.Send(peerMsg{inner: ev.Inner, connected: ev.Connected, peers: ev.Peers})
		}
	}()

	if *demoFlag {
		stop := make(chan struct{})
		defer close(stop)
		go fixture.Demo(800*time.Millisecond, func(frame string) {
			p.Send(payloadMsg(frame))
		}, stop)
	}

	if *fixturesFlag != "" {
		w, err := fixture.NewWatcher(*fixturesFlag)
		if err != nil {
			h.Stop()
			fmt.Fprintf(os.Stderr, "envy: fixtures: %v\n", err)
			os.Exit(1)
		}
		defer w.Close()
		go func() {
			for frame := range w.Frames() {
				p.Send(payloadMsg(frame))
			}
		}()
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "envy: %v\n", err)
		os.Exit(1)
	}
}

// payloadMsg normalizes one raw envelope into the message the
// dispatcher consumes. Malformed frames surface in the debug log
// instead of killing the stream.
func payloadMsg(raw string) tea.Msg {
	payload, err := parse.Frame(raw)
	if err != nil {
		return parseErrorMsg{err: err}
	}
	switch pl := payload.(type) {
	case parse.TracePayload:
		return addTraceMsg{trace: pl.Trace}
	case parse.ConnectionsPayload:
		return connectionsMsg{clients: pl.Clients}
	}
	return parseErrorMsg{err: fmt.Errorf("unhandled payload %T", payload)}
}
