package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Inbound events.
const (
	EventStatusUpdate   = "user:status_update"
	EventHeartbeat      = "heartbeat"
	EventCreateRoom     = "game:create_room"
	EventJoinRoom       = "game:join_room"
	EventLeaveRoom      = "game:room_leave"
	EventGetRoom        = "game:get_room"
	EventListRooms      = "game:room_list"
	EventToggleReady    = "game:toggle_ready"
	EventMakeMove       = "game:make_move"
	EventRequestRematch = "game:request_rematch"
)

// Outbound events. EventRoomList is shared with the inbound request.
const (
	EventConnectStatus = "connect_status"
	EventUserList      = "user_list_update"
	EventStatusChanged = "user:status_changed"
	EventRoomCreated   = "game:room_created"
	EventRoomJoined    = "game:room_joined"
	EventRoomState     = "game:room_state"
	EventRoomList      = "game:room_list"
	EventRoomLeft      = "game:room_left"
	EventRoomClosed    = "game:room_closed"
	EventError         = "game:error"
)

var ErrInvalidPayload = errors.New("invalid payload")

// Envelope is the frame used in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

func Decode(msg []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return Envelope{}, ErrInvalidPayload
	}
	if env.Event == "" {
		return Envelope{}, ErrInvalidPayload
	}
	return env, nil
}

type StatusUpdate struct {
	Status string `json:"status"`
}

type MakeMove struct {
	RoomID   string `json:"roomId"`
	Position *int   `json:"position"`
}

// RoomRef accepts either a bare JSON string or {"roomId": "..."}.
type RoomRef struct {
	RoomID string `json:"roomId"`
}

func (r *RoomRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.RoomID)
	}
	var obj struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.RoomID = obj.RoomID
	return nil
}

// DecodeData unmarshals the payload of env into dst. A missing payload or
// one that does not match dst yields ErrInvalidPayload.
func DecodeData(env Envelope, dst any) error {
	if len(env.Data) == 0 {
		return ErrInvalidPayload
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return ErrInvalidPayload
	}
	return nil
}

type ConnectStatus struct {
	Status   string `json:"status"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type StatusChanged struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

type RoomClosed struct {
	RoomID string `json:"roomId"`
}

// RoomLeft is sent as an empty object.
type RoomLeft struct{}
