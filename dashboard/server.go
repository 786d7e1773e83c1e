// Package dashboard serves the realtime web interface: a snapshot and
// chat page over HTTP, a websocket feed pushing tree snapshots, and a
// small JSON API for scripted access.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/djav1985/v-axion-ai/core"
	"github.com/djav1985/v-axion-ai/engine"
)

const (
	defaultRefresh      = 500 * time.Millisecond
	defaultHistoryLimit = 200
	memoryDetailLimit   = 20
)

// ChatEntry is one line of the operator-facing conversation log.
type ChatEntry struct {
	Source    string `json:"source"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Server hosts the dashboard for one orchestrator.
type Server struct {
	orch    *engine.Orchestrator
	addr    string
	refresh time.Duration

	srv      *http.Server
	ln       net.Listener
	upgrader websocket.Upgrader

	mu           sync.Mutex
	clients      map[*client]struct{}
	history      []ChatEntry
	historyLimit int

	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures the server.
type Option func(*Server)

// WithRefresh sets the websocket snapshot push interval.
func WithRefresh(d time.Duration) Option {
	return func(s *Server) {
		if d >= 100*time.Millisecond {
			s.refresh = d
		}
	}
}

// WithHistoryLimit bounds the retained chat history.
func WithHistoryLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// New creates a dashboard server bound to addr.
func New(orch *engine.Orchestrator, addr string, opts ...Option) *Server {
	s := &Server{
		orch:         orch,
		addr:         addr,
		refresh:      defaultRefresh,
		clients:      make(map[*client]struct{}),
		historyLimit: defaultHistoryLimit,
		done:         make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleIndex)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/monologue/{id}", s.handleMonologue)
	mux.HandleFunc("POST /api/message", s.handleMessage)
	mux.HandleFunc("POST /api/kill/{id}", s.handleKill)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start begins serving and launches the snapshot push loop. It returns
// once the listener is bound, so callers can rely on the port being
// open.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[DASH] serve: %v", err)
		}
	}()
	go s.pushLoop()

	log.Printf("[DASH] listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound listen address ("" before Start).
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop closes all websocket clients and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.doneOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	for c := range s.clients {
		c.close()
	}
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()

	err := s.srv.Shutdown(ctx)
	s.wg.Wait()
	return err
}

// OnUser records a message addressed to the operator and broadcasts it.
// Wire this as the orchestrator's user callback.
func (s *Server) OnUser(msg core.Message) {
	s.recordChat(msg.SenderID, msg.Content)
}

// pushLoop broadcasts a fresh tree snapshot on every tick.
func (s *Server) pushLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.broadcast("snapshot", s.snapshotPayload())
		}
	}
}

func (s *Server) snapshotPayload() map[string]any {
	return map[string]any{
		"actors": s.orch.Snapshot(),
		"events": s.orch.Events(50),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[DASH] ws upgrade: %v", err)
		return
	}
	c := newClient(conn)

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	c.send("snapshot", s.snapshotPayload())
	go c.writePump()
	go s.readPump(c)
}

// readPump consumes inbound websocket frames: operator chat messages.
func (s *Server) readPump(c *client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		c.close()
	}()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame struct {
			Type    string `json:"type"`
			Content string `json:"content"`
			ReplyTo string `json:"reply_to"`
		}
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		if frame.Type == "user_message" {
			content := strings.TrimSpace(frame.Content)
			if content != "" {
				s.deliverUserMessage(content, frame.ReplyTo)
			}
		}
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	entries := append([]ChatEntry(nil), s.history...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotPayload())
}

func (s *Server) handleMonologue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	actor, haveActor := s.orch.ActorSnapshot(id)
	if !haveActor {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown id"})
		return
	}
	mem, _ := s.orch.MemorySnapshot(id, memoryDetailLimit)
	writeJSON(w, http.StatusOK, map[string]any{
		"actor":  actor,
		"memory": mem,
	})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Content string `json:"content"`
		ReplyTo string `json:"reply_to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing content"})
		return
	}
	s.deliverUserMessage(content, in.ReplyTo)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleKill requests a cooperative, transitive stop of one actor.
func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, haveActor := s.orch.ActorSnapshot(id); !haveActor {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown id"})
		return
	}
	s.orch.Kill(id)
	writeJSON(w, http.StatusOK, map[string]any{"status": "kill requested"})
}

// deliverUserMessage routes operator input: to a specific actor when
// reply_to is set, otherwise to the root.
func (s *Server) deliverUserMessage(content, replyTo string) {
	label := "user"
	if replyTo != "" {
		s.orch.Route(core.Message{
			SenderID:    engine.UserID,
			RecipientID: replyTo,
			Content:     content,
			Kind:        core.KindChat,
			Timestamp:   time.Now(),
		})
		label = "user->" + replyTo
	} else {
		s.orch.Inject(content, core.KindChat)
	}
	s.recordChat(label, content)
}

func (s *Server) recordChat(source, content string) {
	entry := ChatEntry{
		Source:    source,
		Content:   content,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	s.mu.Lock()
	s.history = append(s.history, entry)
	if len(s.history) > s.historyLimit {
		s.history = s.history[len(s.history)-s.historyLimit:]
	}
	s.mu.Unlock()
	s.broadcast("chat", entry)
}

// broadcast fans one frame out to every connected client, dropping
// clients whose send queue is full.
func (s *Server) broadcast(frameType string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if !c.send(frameType, payload) {
			delete(s.clients, c)
			c.close()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[DASH] write response: %v", err)
	}
}
