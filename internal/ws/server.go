package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"tictactoe-lobby/internal/auth"
	"tictactoe-lobby/internal/metrics"
	"tictactoe-lobby/internal/presence"
	"tictactoe-lobby/internal/protocol"
	"tictactoe-lobby/internal/room"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
}

type Presence interface {
	Connect(id auth.Identity, connID string)
	Disconnect(userID, connID string)
	UpdateStatus(userID, connID string, status presence.Status)
	Heartbeat(userID string)
}

type Rooms interface {
	CreateRoom(actor room.Actor) (room.Room, error)
	JoinRoom(actor room.Actor, roomID string) error
	LeaveRoom(actor room.Actor, roomID string) error
	GetRoom(actor room.Actor, roomID string) error
	GetRoomList(actor room.Actor) error
	ToggleReady(actor room.Actor, roomID string) error
	MakeMove(actor room.Actor, roomID string, position int) error
	RequestRematch(actor room.Actor, roomID string) error
}

type Options struct {
	SendBuffer      int
	EventsPerSecond float64
	EventBurst      int
	AllowedOrigins  []string
	Metrics         metrics.Recorder
}

type Client struct {
	id       string
	identity auth.Identity
	conn     *websocket.Conn
	send     chan []byte
	limiter  *rate.Limiter

	// guarded by Server.mu
	closed      bool
	closeReason string

	closeOnce sync.Once
	done      chan struct{}
}

func (c *Client) ID() string { return c.id }

type Server struct {
	auth     Authenticator
	presence Presence
	rooms    Rooms
	upgrader websocket.Upgrader
	opts     Options
	metrics  metrics.Recorder

	mu      sync.RWMutex
	clients map[string]*Client
	byUser  map[string]map[string]*Client
}

func NewServer(authn Authenticator, opts Options) *Server {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	s := &Server{
		auth:    authn,
		opts:    opts,
		metrics: rec,
		clients: map[string]*Client{},
		byUser:  map[string]map[string]*Client{},
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// SetHandlers wires the coordinators. They are built after the server because
// they push through it.
func (s *Server) SetHandlers(p Presence, r Rooms) {
	s.presence = p
	s.rooms = r
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// HandleWS authenticates before upgrading. Rejected handshakes get a 401
// with {"error": reason} and never reach presence.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	id, err := s.auth.Authenticate(r.Context(), auth.BearerToken(r))
	if err != nil {
		code := auth.RejectCode(err)
		s.metrics.AuthRejected(code)
		log.Info().Str("reason", code).Str("remote_addr", r.RemoteAddr).Msg("ws_auth_rejected")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": auth.RejectReason(err)})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("user_id", id.UserID).Msg("ws_upgrade_failed")
		return
	}
	c := &Client{
		id:       uuid.NewString(),
		identity: id,
		conn:     conn,
		send:     make(chan []byte, s.opts.SendBuffer),
		done:     make(chan struct{}),
	}
	if s.opts.EventsPerSecond > 0 {
		burst := s.opts.EventBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(s.opts.EventsPerSecond), burst)
	}

	s.register(c)
	s.metrics.ConnectionOpened()
	log.Info().Str("user_id", id.UserID).Str("conn_id", c.id).Msg("ws_connected")

	go s.writeLoop(c)
	s.presence.Connect(id, c.id)
	s.readLoop(c)
}

func (s *Server) register(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.id] = c
	conns := s.byUser[c.identity.UserID]
	if conns == nil {
		conns = map[string]*Client{}
		s.byUser[c.identity.UserID] = conns
	}
	conns[c.id] = c
}

func (s *Server) readLoop(c *Client) {
	defer s.teardown(c, "")

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Debug().Err(err).Str("conn_id", c.id).Msg("ws_read_error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if msgType != websocket.TextMessage {
			continue
		}
		s.dispatch(c, msg)
	}
}

func (s *Server) writeLoop(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.mu.RLock()
				reason := c.closeReason
				s.mu.RUnlock()
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// teardown runs once per connection: unregister, tell presence, then release
// the socket. It must not be called while a coordinator lock is held.
func (s *Server) teardown(c *Client, reason string) {
	c.closeOnce.Do(func() {
		s.mu.Lock()
		c.closed = true
		c.closeReason = reason
		delete(s.clients, c.id)
		if conns := s.byUser[c.identity.UserID]; conns != nil {
			delete(conns, c.id)
			if len(conns) == 0 {
				delete(s.byUser, c.identity.UserID)
			}
		}
		close(c.send)
		s.mu.Unlock()

		if s.presence != nil {
			s.presence.Disconnect(c.identity.UserID, c.id)
		}

		select {
		case <-c.done:
		case <-time.After(writeWait):
		}
		_ = c.conn.Close()
		s.metrics.ConnectionClosed()
		log.Info().Str("user_id", c.identity.UserID).Str("conn_id", c.id).Str("reason", reason).Msg("ws_disconnected")
	})
}

// enqueue never blocks. A client whose queue is full is cut off; its read
// loop then runs the normal teardown. Callers hold s.mu.
func (s *Server) enqueue(c *Client, msg []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		s.metrics.MessageDropped()
		log.Warn().Str("user_id", c.identity.UserID).Str("conn_id", c.id).Msg("ws_slow_client_dropped")
		_ = c.conn.Close()
	}
}

func encode(event string, payload any) []byte {
	msg, err := protocol.Encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("ws_encode_failed")
		return nil
	}
	return msg
}

func (s *Server) SendTo(connID, event string, payload any) {
	msg := encode(event, payload)
	if msg == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c := s.clients[connID]; c != nil {
		s.enqueue(c, msg)
	}
}

func (s *Server) SendToUser(userID, event string, payload any) {
	s.SendToUsers([]string{userID}, event, payload)
}

// SendToUsers fans out to every connection of every listed user.
func (s *Server) SendToUsers(userIDs []string, event string, payload any) {
	msg := encode(event, payload)
	if msg == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, userID := range userIDs {
		for _, c := range s.byUser[userID] {
			s.enqueue(c, msg)
		}
	}
}

func (s *Server) BroadcastAll(event string, payload any) {
	msg := encode(event, payload)
	if msg == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		s.enqueue(c, msg)
	}
}

// CloseConnection closes one connection. Closing an unknown or already
// closed connection does nothing.
func (s *Server) CloseConnection(connID, reason string) {
	s.mu.RLock()
	c := s.clients[connID]
	s.mu.RUnlock()
	if c != nil {
		s.teardown(c, reason)
	}
}

func (s *Server) CloseUser(userID, reason string) {
	s.mu.RLock()
	conns := make([]*Client, 0, len(s.byUser[userID]))
	for _, c := range s.byUser[userID] {
		conns = append(conns, c)
	}
	s.mu.RUnlock()
	for _, c := range conns {
		s.teardown(c, reason)
	}
}

// Shutdown closes every open connection.
func (s *Server) Shutdown(reason string) {
	s.mu.RLock()
	conns := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.RUnlock()
	for _, c := range conns {
		s.teardown(c, reason)
	}
}

func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// UserConnections returns the open connection ids of userID.
func (s *Server) UserConnections(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byUser[userID]))
	for id := range s.byUser[userID] {
		out = append(out, id)
	}
	return out
}
