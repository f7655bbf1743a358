package ws

import (
	"tictactoe-lobby/internal/presence"
	"tictactoe-lobby/internal/protocol"
	"tictactoe-lobby/internal/room"

	"github.com/rs/zerolog/log"
)

const (
	errRateLimited  = "rate limit exceeded"
	errInvalidInput = "invalid payload"
	errUnknownEvent = "unknown event"
)

// dispatch handles one inbound frame. Frames of a connection are handled in
// arrival order because the read loop calls this synchronously.
func (s *Server) dispatch(c *Client, msg []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("conn_id", c.id).Msg("ws_dispatch_panic")
			s.sendError(c, "failed to process event")
		}
	}()

	s.mu.RLock()
	closed := c.closed
	s.mu.RUnlock()
	if closed {
		return
	}
	if c.limiter != nil && !c.limiter.Allow() {
		s.sendError(c, errRateLimited)
		return
	}
	env, err := protocol.Decode(msg)
	if err != nil {
		s.sendError(c, errInvalidInput)
		return
	}

	userID := c.identity.UserID
	actor := room.ActorFrom(c.identity, c.id)
	switch env.Event {
	case protocol.EventHeartbeat:
		s.presence.Heartbeat(userID)
	case protocol.EventStatusUpdate:
		var p protocol.StatusUpdate
		if err := protocol.DecodeData(env, &p); err != nil {
			s.sendError(c, errInvalidInput)
			return
		}
		s.presence.UpdateStatus(userID, c.id, presence.Status(p.Status))
	case protocol.EventCreateRoom:
		_, _ = s.rooms.CreateRoom(actor)
	case protocol.EventListRooms:
		_ = s.rooms.GetRoomList(actor)
	case protocol.EventJoinRoom, protocol.EventLeaveRoom, protocol.EventGetRoom,
		protocol.EventToggleReady, protocol.EventRequestRematch:
		var ref protocol.RoomRef
		if err := protocol.DecodeData(env, &ref); err != nil || ref.RoomID == "" {
			s.sendError(c, errInvalidInput)
			return
		}
		s.roomEvent(env.Event, actor, ref.RoomID)
	case protocol.EventMakeMove:
		var mv protocol.MakeMove
		if err := protocol.DecodeData(env, &mv); err != nil || mv.RoomID == "" || mv.Position == nil {
			s.sendError(c, errInvalidInput)
			return
		}
		_ = s.rooms.MakeMove(actor, mv.RoomID, *mv.Position)
	default:
		s.sendError(c, errUnknownEvent)
	}
}

func (s *Server) roomEvent(event string, actor room.Actor, roomID string) {
	switch event {
	case protocol.EventJoinRoom:
		_ = s.rooms.JoinRoom(actor, roomID)
	case protocol.EventLeaveRoom:
		_ = s.rooms.LeaveRoom(actor, roomID)
	case protocol.EventGetRoom:
		_ = s.rooms.GetRoom(actor, roomID)
	case protocol.EventToggleReady:
		_ = s.rooms.ToggleReady(actor, roomID)
	case protocol.EventRequestRematch:
		_ = s.rooms.RequestRematch(actor, roomID)
	}
}

func (s *Server) sendError(c *Client, message string) {
	s.SendTo(c.id, protocol.EventError, message)
}
