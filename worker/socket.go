package worker

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPongTimeout  = 60 * time.Second
	defaultPingInterval = 30 * time.Second
)

// DialOptions are passed through verbatim to socket construction.
type DialOptions struct {
	Header           http.Header
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PongTimeout      time.Duration
	PingInterval     time.Duration
}

func (o DialOptions) withDefaults() DialOptions {
	if o.WriteTimeout == 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.PongTimeout == 0 {
		o.PongTimeout = defaultPongTimeout
	}
	if o.PingInterval == 0 {
		o.PingInterval = defaultPingInterval
	}
	return o
}

// Socket is an EventTarget backed by a WebSocket connection. Bind starts the
// read loop; inbound frames land in the message slot, and read failures
// (including abnormal close from the far side) land in the error slot once.
type Socket struct {
	opts DialOptions

	mu      sync.Mutex
	writeMu sync.Mutex // serialises all conn writes (frames, pings)
	conn    *websocket.Conn
	closed  bool

	bindOnce sync.Once
	cancel   context.CancelFunc // stops the ping loop
}

// Dial connects to a worker endpoint at url.
func Dial(ctx context.Context, url string, opts DialOptions) (*Socket, error) {
	opts = opts.withDefaults()
	dialer := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		return nil, err
	}
	return &Socket{opts: opts, conn: conn}, nil
}

// Kind reports that a socket has direct event slots.
func (s *Socket) Kind() Kind { return KindEvent }

// Bind registers the slots and starts the read and ping loops.
func (s *Socket) Bind(onMessage func([]byte), onError func(error)) {
	s.bindOnce.Do(func() {
		pingCtx, cancel := context.WithCancel(context.Background())
		s.mu.Lock()
		s.cancel = cancel
		conn := s.conn
		s.mu.Unlock()

		go s.pingLoop(pingCtx, conn)
		go s.readLoop(conn, onMessage, onError)
	})
}

// Send writes a text frame toward the worker.
func (s *Socket) Send(data []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	conn := s.conn
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close stops the loops and closes the connection.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	conn := s.conn
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return conn.Close()
}

func (s *Socket) readLoop(conn *websocket.Conn, onMessage func([]byte), onError func(error)) {
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			// A read error after Close is just the loop winding down.
			if !closed && onError != nil {
				onError(err)
			}
			return
		}
		if onMessage != nil {
			onMessage(data)
		}
	}
}

func (s *Socket) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
