// Package debugserver exposes a read-only websocket stream of a running
// Machine's register, PPU and APU state, one JSON frame per emulated
// video frame. It has no control plane: a host that never attaches one
// runs identically.
package debugserver

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/cespare/xxhash"
	"github.com/gorilla/websocket"

	"github.com/ferrite-systems/gbcore/pkg/emulator"
	"github.com/ferrite-systems/gbcore/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server broadcasts DebugSnapshot frames to every connected client.
type Server struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]chan []byte
	lastHash uint64
	haveLast bool

	log log.Logger
}

// New returns a Server with no Machine attached yet.
func New() *Server {
	return &Server{
		clients: make(map[*websocket.Conn]chan []byte),
		log:     log.New(),
	}
}

// Attach registers a frame callback on m that broadcasts a JSON-encoded
// DebugSnapshot to every connected client after each completed frame.
// Attach replaces any callback a previous Attach call installed.
func (s *Server) Attach(m *emulator.Machine) {
	m.SetOnFrame(func(m *emulator.Machine) {
		snap, err := json.Marshal(m.DebugSnapshot())
		if err != nil {
			s.log.Errorf("debugserver: marshal snapshot: %v", err)
			return
		}
		if s.shouldBroadcast(snap) {
			s.broadcast(snap)
		}
	})
}

// shouldBroadcast reports whether frame differs from the last one sent,
// hashed with xxhash rather than compared byte-for-byte since a
// DebugSnapshot is small and this runs once per emulated frame. A
// paused or idle Machine completes frames with identical register/PPU/
// APU state; skipping those avoids pushing the same bytes to every
// client every frame.
func (s *Server) shouldBroadcast(frame []byte) bool {
	hash := xxhash.Sum64(frame)

	s.mu.Lock()
	defer s.mu.Unlock()
	unchanged := s.haveLast && hash == s.lastHash
	s.lastHash, s.haveLast = hash, true
	return !unchanged
}

// ServeHTTP upgrades the connection to a websocket and streams broadcast
// frames to it until the client disconnects. The connection never reads
// anything meaningful back from the client; this is intentionally a
// read-only introspection endpoint.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("debugserver: upgrade failed: %v", err)
		return
	}

	out := make(chan []byte, 16)
	s.mu.Lock()
	s.clients[conn] = out
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	// drain client reads so a dropped connection is detected promptly;
	// any message received is ignored, there is no control plane.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for frame := range out {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}

func (s *Server) broadcast(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, out := range s.clients {
		select {
		case out <- frame:
		default:
			// client too slow to keep up; drop it rather than block the
			// emulator's frame loop.
			delete(s.clients, conn)
			close(out)
			conn.Close()
		}
	}
}
