// Package hub accepts WebSocket peers on a loopback address and fans
// every received text frame out to all other connected peers. The
// process's own UI consumes the same frames through Frames().
//
// One reserved path, /inner, marks the control peer: the instrumented
// producer process connects there. All other paths are ordinary peers.
package hub

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// InnerPath is the reserved path for the control peer.
const InnerPath = "/inner"

// outboundBuffer is the per-peer send queue depth. A peer that stops
// draining loses frames rather than stalling the sender.
const outboundBuffer = 64

// Frame is one inbound text frame, tagged with its origin.
type Frame struct {
	PeerID string
	Inner  bool
	Text   string
}

// PeerEvent reports a connect or disconnect and the resulting count.
type PeerEvent struct {
	PeerID    string
	Inner     bool
	Connected bool
	Peers     int
}

type peer struct {
	id    string
	inner bool
	conn  *websocket.Conn
	out   chan string
}

// Hub owns the listener and the peer registry. The registry is the
// only state shared between connection tasks and is mutex-guarded;
// everything else a connection touches is its own.
type Hub struct {
	addr string

	mu     sync.Mutex
	open   bool
	peers  map[string]*peer
	ln     net.Listener
	srv    *http.Server
	cancel context.CancelFunc

	wg     sync.WaitGroup
	frames *queue
	events chan PeerEvent
}

func New(addr string) *Hub {
	return &Hub{
		addr:   addr,
		peers:  make(map[string]*peer),
		frames: newQueue(),
		events: make(chan PeerEvent, 16),
	}
}

// Frames returns the stream of inbound text frames from every peer.
// The channel is fed from an unbounded queue, so slow consumers never
// block a connection task. The stream stays open across Stop/Start
// cycles; it lives as long as the process does.
func (h *Hub) Frames() <-chan Frame { return h.frames.out }

// Events reports peer connects and disconnects. Events are dropped if
// the consumer falls behind; only the frame stream is lossless.
func (h *Hub) Events() <-chan PeerEvent { return h.events }

// Addr returns the bound listen address, valid after Start.
func (h *Hub) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ln == nil {
		return h.addr
	}
	return h.ln.Addr().String()
}

// Start binds the listener and begins accepting peers. Calling Start
// on an already-open hub is a no-op. A bind failure is the caller's
// problem; it is the one unrecoverable startup error.
func (h *Hub) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.open {
		return nil
	}

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", h.addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Handler:     http.HandlerFunc(h.handle),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	h.ln = ln
	h.srv = srv
	h.cancel = cancel
	h.open = true

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		// Serve returns once the listener closes; peers are torn down
		// individually by Stop.
		_ = srv.Serve(ln)
	}()
	return nil
}

// Stop cancels the accept loop and every live connection task, then
// clears the registry. It is idempotent and acts as the shutdown
// barrier: when it returns, no connection task is still running.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.open {
		h.mu.Unlock()
		return nil
	}
	h.open = false
	h.cancel()
	_ = h.ln.Close()
	for _, p := range h.peers {
		// Closing the connection unblocks the peer's read loop, which
		// then deregisters itself.
		_ = p.conn.Close(websocket.StatusGoingAway, "hub stopping")
	}
	h.mu.Unlock()

	h.wg.Wait()

	h.mu.Lock()
	h.peers = make(map[string]*peer)
	h.mu.Unlock()
	return nil
}

// handle runs for the lifetime of one peer connection.
func (h *Hub) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		// Handshake failures are isolated to this connection.
		return
	}

	p := &peer{
		id:    uuid.NewString(),
		inner: r.URL.Path == InnerPath,
		conn:  conn,
		out:   make(chan string, outboundBuffer),
	}

	if !h.register(p) {
		_ = conn.Close(websocket.StatusGoingAway, "hub stopping")
		return
	}
	defer h.deregister(p)

	ctx := r.Context()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for msg := range p.out {
			if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
				// This peer is broken; its read loop will notice the
				// closed connection and tear the task down.
				_ = conn.Close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		text := string(data)
		h.frames.push(Frame{PeerID: p.id, Inner: p.inner, Text: text})
		h.broadcast(p, text)
	}
}

// broadcast forwards a frame to every peer except the sender. A full
// outbound queue on one peer never blocks delivery to the rest.
func (h *Hub) broadcast(from *peer, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.peers {
		if p.id == from.id {
			continue
		}
		select {
		case p.out <- text:
		default:
		}
	}
}

func (h *Hub) register(p *peer) bool {
	h.mu.Lock()
	if !h.open {
		h.mu.Unlock()
		return false
	}
	h.peers[p.id] = p
	n := len(h.peers)
	h.mu.Unlock()

	h.emit(PeerEvent{PeerID: p.id, Inner: p.inner, Connected: true, Peers: n})
	return true
}

func (h *Hub) deregister(p *peer) {
	h.mu.Lock()
	_, present := h.peers[p.id]
	if present {
		delete(h.peers, p.id)
		close(p.out)
	}
	n := len(h.peers)
	h.mu.Unlock()

	if present {
		h.emit(PeerEvent{PeerID: p.id, Inner: p.inner, Connected: false, Peers: n})
	}
}

func (h *Hub) emit(ev PeerEvent) {
	select {
	case h.events <- ev:
	default:
	}
}

// queue is an unbounded multi-producer frame queue bridging connection
// tasks to the single consumer. Pushes never block.
type queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []Frame
	closed  bool
	out     chan Frame
}

func newQueue() *queue {
	q := &queue{out: make(chan Frame)}
	q.cond = sync.NewCond(&q.mu)
	go q.drain()
	return q
}

func (q *queue) push(f Frame) {
	q.mu.Lock()
	if !q.closed {
		q.pending = append(q.pending, f)
		q.cond.Signal()
	}
	q.mu.Unlock()
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()
}

func (q *queue) drain() {
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 && q.closed {
			q.mu.Unlock()
			close(q.out)
			return
		}
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()

		for _, f := range batch {
			q.out <- f
		}
	}
}
