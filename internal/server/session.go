package server

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lovza/sumo-server/internal/arena"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Outbound frames buffered per session before the session is dropped
	sendBufferSize = 256
)

// LoopStarter spawns the per-room loop for a freshly created room.
type LoopStarter interface {
	StartRoomLoop(room *arena.Room)
}

// Session is one WebSocket client. The reader goroutine performs the
// create/join handshake and then dispatches input and control frames; the
// writer goroutine drains the outbound queue and keeps the connection alive
// with pings. The room reaches the session only through Enqueue.
type Session struct {
	conn      *websocket.Conn
	send      chan any
	registry  *Registry
	loops     LoopStarter
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
	playerID  string
	roomID    string
}

// NewSession wraps an upgraded connection.
func NewSession(conn *websocket.Conn, registry *Registry, loops LoopStarter, logger *log.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		conn:     conn,
		send:     make(chan any, sendBufferSize),
		registry: registry,
		loops:    loops,
		logger:   logger.WithPrefix("session"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins handling the session.
func (s *Session) Start() {
	sessionsActive.Inc()
	go s.writePump()
	go s.readPump()
}

// Close tears the session down. Safe to call from any goroutine, any number
// of times.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		close(s.send)
		err = s.conn.Close()
		sessionsActive.Dec()
	})
	return err
}

// Enqueue implements arena.Outbound. It never blocks: a full buffer means the
// client cannot keep up with the broadcast rate, so the session is dropped.
func (s *Session) Enqueue(frame any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed, this is expected during shutdown
			s.logger.Debug("Enqueue on closed session", "error", r)
			ok = false
		}
	}()

	select {
	case s.send <- frame:
		return true
	case <-s.ctx.Done():
		return false
	default:
		s.logger.Warn("Session send buffer full, closing connection", "player", s.PlayerID())
		broadcastDrops.Inc()
		_ = s.Close()
		return false
	}
}

// PlayerID returns the player bound at handshake, or "".
func (s *Session) PlayerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playerID
}

// RoomID returns the room bound at handshake, or "".
func (s *Session) RoomID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomID
}

func (s *Session) setIdentity(playerID, roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playerID = playerID
	s.roomID = roomID
}

// readPump handles incoming frames from the client. A panic while handling a
// frame is contained here and treated as a disconnect.
func (s *Session) readPump() {
	defer s.cleanup()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Session panic", "error", r, "player", s.PlayerID())
		}
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if !s.handshake() {
		return
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		var msg ClientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error("WebSocket error", "error", err, "player", s.PlayerID())
			}
			return
		}

		s.handleMessage(&msg)
	}
}

// handshake reads the first frame, which must create or join a room. Any
// other type, or a malformed frame, closes the connection without an error
// frame.
func (s *Session) handshake() bool {
	var msg ClientMessage
	if err := s.conn.ReadJSON(&msg); err != nil {
		return false
	}

	switch msg.Type {
	case MessageTypeCreate:
		return s.handleCreate(&msg)
	case MessageTypeJoin:
		return s.handleJoin(&msg)
	default:
		s.logger.Debug("Handshake with unexpected frame type", "type", msg.Type)
		return false
	}
}

func (s *Session) handleCreate(msg *ClientMessage) bool {
	room := s.registry.CreateRoom(msg.IsPublic, false)
	p, snapshot, err := s.registry.AddPlayer(room, msg.Name, false, s, s.welcomeFrame)
	if err != nil {
		// Cannot happen on a fresh room, but fail closed.
		s.sendErrorAndClose(err.Error(), "internal")
		return false
	}
	s.setIdentity(p.ID, room.ID())
	s.logger.Info("Room created by player", "room", room.ID(), "player", p.ID, "name", p.Name)

	s.announceJoin(room, p.ID, snapshot)
	s.loops.StartRoomLoop(room)
	return true
}

func (s *Session) handleJoin(msg *ClientMessage) bool {
	if strings.TrimSpace(msg.RoomID) == "" {
		s.sendErrorAndClose("missing room code", "missing_code")
		return false
	}
	room, err := s.registry.Room(msg.RoomID)
	if errors.Is(err, ErrRoomNotFound) {
		s.sendErrorAndClose("room not found", "not_found")
		return false
	}

	p, snapshot, err := s.registry.AddPlayer(room, msg.Name, false, s, s.welcomeFrame)
	switch {
	case err == nil:
	case errors.Is(err, arena.ErrRoomFull):
		s.sendErrorAndClose("room full", "full")
		return false
	case errors.Is(err, arena.ErrMatchStarted):
		s.sendErrorAndClose("game already started", "started")
		return false
	default:
		s.sendErrorAndClose(err.Error(), "internal")
		return false
	}

	s.setIdentity(p.ID, room.ID())
	s.logger.Info("Player joined room", "room", room.ID(), "player", p.ID, "name", p.Name)

	s.announceJoin(room, p.ID, snapshot)
	return true
}

// welcomeFrame is the arena.WelcomeFunc handed to AddPlayer. The room invokes
// it under its lock, so the welcome is queued before any broadcast can reach
// this session.
func (s *Session) welcomeFrame(playerID string, snapshot arena.RoomPayload) any {
	return welcomeMessage(playerID, snapshot)
}

// announceJoin broadcasts player_joined using the snapshot taken at join
// time, so the announced membership matches the welcome the joiner saw.
func (s *Session) announceJoin(room *arena.Room, playerID string, snapshot arena.RoomPayload) {
	player, ok := snapshot.Players[playerID]
	if !ok {
		return
	}
	room.Broadcast(playerJoinedMessage(player, snapshot))
}

// handleMessage dispatches post-handshake frames. Unknown types are ignored.
func (s *Session) handleMessage(msg *ClientMessage) {
	switch msg.Type {
	case MessageTypeInput:
		if room, ok := s.registry.RoomOf(s.PlayerID()); ok {
			room.ApplyInput(s.PlayerID(), msg.DX, msg.DY)
		}

	case MessageTypeStart:
		room, ok := s.registry.RoomOf(s.PlayerID())
		if ok && room.RequestStart(s.PlayerID()) {
			s.logger.Info("Match starting", "room", room.ID(), "player", s.PlayerID())
			room.Broadcast(gameStartingMessage(room.Payload()))
		}

	case MessageTypeRematch:
		room, ok := s.registry.RoomOf(s.PlayerID())
		if ok && room.RequestRematch(s.PlayerID()) {
			s.logger.Info("Rematch starting", "room", room.ID(), "player", s.PlayerID())
			room.Broadcast(rematchStartingMessage(room.Payload()))
		}

	default:
		s.logger.Debug("Ignoring unknown frame type", "type", msg.Type)
	}
}

// sendErrorAndClose flushes one error frame and tears the session down.
func (s *Session) sendErrorAndClose(message, reason string) {
	joinsRejected.WithLabelValues(reason).Inc()
	s.Enqueue(errorMessage(message))
	_ = s.Close()
}

// cleanup runs when the reader exits for any reason: the player leaves their
// room and the remaining occupants hear about it.
func (s *Session) cleanup() {
	_ = s.Close()

	playerID := s.PlayerID()
	if playerID == "" {
		return
	}
	room, removed, payload, ok := s.registry.RemovePlayer(playerID)
	if !ok || removed == nil {
		return
	}
	if s.registry.HasRoom(room.ID()) {
		room.Broadcast(playerLeftMessage(playerID, payload))
	}
	s.logger.Info("Player disconnected", "player", playerID, "room", room.ID())
}

// writePump handles outgoing frames to the client.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := s.conn.WriteJSON(frame); err != nil {
				s.logger.Error("Failed to write frame", "error", err, "player", s.PlayerID())
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.ctx.Done():
			return
		}
	}
}
