package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Shybit1/drone-swarm-comms/cmd/wildfire-swarm/core"
	"github.com/Shybit1/drone-swarm-comms/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// stateUpdate is the frame pushed to streaming clients.
type stateUpdate struct {
	Type      string             `json:"type"`
	Timestamp float64            `json:"timestamp"`
	State     core.WorldSnapshot `json:"state"`
}

// WSServer streams tick snapshots to connected clients. Pushes are gated
// the same way the ETM gates telemetry: a tick whose snapshot is
// identical to the previous one is skipped.
type WSServer struct {
	kernel *core.Kernel
	server *http.Server

	mu       sync.Mutex
	clients  map[*wsClient]struct{}
	lastSent []byte
}

// NewWSServer builds the streaming server on the given port.
func NewWSServer(kernel *core.Kernel, port int) *WSServer {
	s := &WSServer{
		kernel:  kernel,
		clients: make(map[*wsClient]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.server = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	return s
}

func (s *WSServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("websocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{conn: conn}
	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()
	logger.Debugf("websocket client connected: %s", conn.RemoteAddr())

	// Send the current snapshot immediately so new clients don't wait
	// for the next world change.
	snap, seq := s.kernel.Outbox().Latest()
	if seq > 0 {
		if payload, err := encodeUpdate(snap); err == nil {
			_ = client.send(payload)
		}
	}

	// Reader loop only detects closure; clients don't command the
	// kernel over this channel.
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, client)
			s.mu.Unlock()
			_ = conn.Close()
			logger.Debugf("websocket client disconnected: %s", conn.RemoteAddr())
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func encodeUpdate(snap core.WorldSnapshot) ([]byte, error) {
	return json.Marshal(stateUpdate{
		Type:      "state_update",
		Timestamp: snap.TimeS,
		State:     snap,
	})
}

// Start serves websocket clients and pumps snapshots until the context
// is cancelled.
func (s *WSServer) Start(ctx context.Context) error {
	go s.pump(ctx)

	logger.Infof("WebSocket server listening on %s", s.server.Addr)
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.server.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// pump waits for fresh snapshots and broadcasts the changed ones.
func (s *WSServer) pump(ctx context.Context) {
	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kernel.Outbox().Changed():
		}

		snap, seq := s.kernel.Outbox().Latest()
		if seq == lastSeq {
			continue
		}
		lastSeq = seq

		payload, err := encodeUpdate(snap)
		if err != nil {
			logger.Errorf("snapshot encode failed: %v", err)
			continue
		}

		s.mu.Lock()
		if bytes.Equal(stateBytes(payload), stateBytes(s.lastSent)) {
			s.mu.Unlock()
			continue
		}
		s.lastSent = payload
		clients := make([]*wsClient, 0, len(s.clients))
		for c := range s.clients {
			clients = append(clients, c)
		}
		s.mu.Unlock()

		for _, c := range clients {
			if err := c.send(payload); err != nil {
				s.mu.Lock()
				delete(s.clients, c)
				s.mu.Unlock()
				_ = c.conn.Close()
			}
		}
	}
}

// stateBytes strips the envelope down to the state document so two
// frames differing only in tick count and timestamp compare equal.
func stateBytes(payload []byte) []byte {
	if payload == nil {
		return nil
	}
	var frame struct {
		State json.RawMessage `json:"state"`
	}
	if err := json.Unmarshal(payload, &frame); err != nil {
		return payload
	}
	var state map[string]json.RawMessage
	if err := json.Unmarshal(frame.State, &state); err != nil {
		return frame.State
	}
	delete(state, "tick")
	delete(state, "time_s")
	out, err := json.Marshal(state)
	if err != nil {
		return frame.State
	}
	return out
}
