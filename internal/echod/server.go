// Package echod implements a small WebSocket echo worker used by the demo
// program and integration tests: it greets clients, echoes their payloads
// back, and simulates worker failures on demand.
package echod

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// boomPayload asks the worker to die with an abnormal close, which surfaces
// on the client as a worker-reported error.
const boomPayload = "boom"

// Server is the echo worker endpoint.
type Server struct {
	cfg *Config
}

// New creates a server from cfg.
func New(cfg *Config) *Server {
	return &Server{cfg: cfg}
}

// Routes returns the HTTP routes: /ws for the worker and /healthz.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", s.handleWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	id := uuid.NewString()
	log.Printf("worker client connected: %s (%s)", id[:8], r.RemoteAddr)
	defer log.Printf("worker client disconnected: %s", id[:8])

	client := &client{conn: conn}
	defer conn.Close()

	if s.cfg.Echo.Greeting != "" {
		client.write(s.cfg.Echo.Greeting)
	}

	done := make(chan struct{})
	defer close(done)
	if s.cfg.Echo.TickInterval > 0 {
		go s.tickLoop(client, done)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		payload := string(data)
		if payload == boomPayload {
			client.close(websocket.CloseInternalServerErr, "worker exploded on request")
			return
		}
		if s.cfg.Echo.Uppercase {
			payload = strings.ToUpper(payload)
		}
		if err := client.write(fmt.Sprintf("echo: %s", payload)); err != nil {
			return
		}
	}
}

// tickLoop pushes periodic status notes so demos have unsolicited traffic.
func (s *Server) tickLoop(c *client, done <-chan struct{}) {
	ticker := time.NewTicker(time.Duration(s.cfg.Echo.TickInterval))
	defer ticker.Stop()
	n := 0
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			n++
			note := fmt.Sprintf("## tick %d\n\nworker alive at `%s`", n, time.Now().Format("15:04:05"))
			if err := c.write(note); err != nil {
				return
			}
		}
	}
}

func (s *Server) authorize(r *http.Request) bool {
	token := s.cfg.Server.AuthToken
	if token == "" {
		return true
	}
	if r.URL.Query().Get("token") == token {
		return true
	}
	if r.Header.Get("X-Teaworker-Token") == token {
		return true
	}
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == token
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if strings.TrimSpace(allowed) == origin {
			return true
		}
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := parsed.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1" || parsed.Host == r.Host
}

// ListenAndServe runs the server on the configured address.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	log.Printf("echo worker listening on %s", addr)
	return http.ListenAndServe(addr, s.Routes())
}

// client serialises writes to one connection.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, []byte(payload))
}

func (c *client) close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}
