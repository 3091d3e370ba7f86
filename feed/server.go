package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"go-sonify/debug"
	"go-sonify/sequencer"
)

// Sink receives decoded frames. sequencer.Manager implements it.
type Sink interface {
	Update(amps []float64, peaks []int) error
	Apply(a sequencer.Action)
}

// Options tune peak derivation for data frames that carry no peaks
type Options struct {
	SmoothWindow int
	PeakOrder    int
}

var (
	ErrUnknownType   = errors.New("unknown message type")
	ErrUnknownAction = errors.New("unknown action")
)

const sendBuffer = 64

// Server is the websocket hub. Every accepted frame is applied to the sink
// and relayed to the other connected clients.
type Server struct {
	sink     Sink
	opts     Options
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*conn
}

type conn struct {
	id   string
	ws   *websocket.Conn
	send chan Message
}

// NewServer creates a hub. sink may be nil for a pure relay.
func NewServer(sink Sink, opts Options) *Server {
	return &Server{
		sink: sink,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// local producers and visualisers, any origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*conn),
	}
}

// Clients returns the number of connected clients
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ListenAndServe serves the hub on addr at path until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, s)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("feed listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		s.closeAll()
	}()

	debug.Log("feed", "listening on ws://%s%s", ln.Addr(), path)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("feed serve: %w", err)
	}
	return nil
}

// ServeHTTP upgrades the request and runs the connection until it closes
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Log("feed", "upgrade: %v", err)
		return
	}

	c := &conn{id: uuid.NewString(), ws: ws, send: make(chan Message, sendBuffer)}
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	debug.Log("feed", "client %s connected from %s", c.id, r.RemoteAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop(c)
	}()

	s.readLoop(c)

	s.mu.Lock()
	if _, ok := s.clients[c.id]; ok {
		delete(s.clients, c.id)
		close(c.send)
	}
	s.mu.Unlock()
	<-done
	ws.Close()
	debug.Log("feed", "client %s disconnected", c.id)
}

func (s *Server) readLoop(c *conn) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reply(c, fmt.Errorf("bad frame: %w", err))
			continue
		}

		relay, err := s.handle(msg)
		if err != nil {
			debug.LogEvery(10, "feed", "client %s: %v", c.id, err)
			s.reply(c, err)
			continue
		}
		s.broadcast(c.id, relay)
	}
}

func (s *Server) writeLoop(c *conn) {
	for msg := range c.send {
		if err := c.ws.WriteJSON(msg); err != nil {
			debug.Log("feed", "client %s write: %v", c.id, err)
			// keep draining so senders never block on a dead client
			for range c.send {
			}
			return
		}
	}
}

// handle applies one frame and returns what should be relayed
func (s *Server) handle(msg Message) (Message, error) {
	switch msg.Type {
	case KeyData:
		d, err := msg.DecodeData()
		if err != nil {
			return Message{}, err
		}
		if d.Peaks == nil {
			d.Peaks = DerivePeaks(d.Amps, s.opts.SmoothWindow, s.opts.PeakOrder)
			if d.Peaks == nil {
				d.Peaks = []int{}
			}
			if msg, err = NewDataMessage(d.Amps, d.Peaks); err != nil {
				return Message{}, err
			}
		}
		if s.sink != nil {
			if err := s.sink.Update(d.Amps, d.Peaks); err != nil {
				return Message{}, err
			}
		}
		debug.LogEvery(50, "feed", "data: %d amps, %d peaks", len(d.Amps), len(d.Peaks))
		return msg, nil

	case KeyAction:
		tag, err := msg.DecodeString()
		if err != nil {
			return Message{}, err
		}
		a := sequencer.ParseAction(tag)
		if a == sequencer.ActionNone {
			return Message{}, fmt.Errorf("%w %q", ErrUnknownAction, tag)
		}
		if s.sink != nil {
			s.sink.Apply(a)
		}
		debug.Log("feed", "action %s", a)
		return msg, nil
	}
	return Message{}, fmt.Errorf("%w %q", ErrUnknownType, msg.Type)
}

func (s *Server) reply(c *conn, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- errorMessage(err.Error()):
	default:
	}
}

// broadcast relays to every client except from. Slow clients drop frames.
func (s *Server) broadcast(from string, msg Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, c := range s.clients {
		if id == from {
			continue
		}
		select {
		case c.send <- msg:
		default:
			debug.LogEvery(100, "feed", "client %s lagging, frame dropped", id)
		}
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		c.ws.Close()
		close(c.send)
		delete(s.clients, id)
	}
}
