package server

import "github.com/lovza/sumo-server/internal/arena"

// Client → server frame. Inbound frames are a tagged union keyed on Type;
// each type reads its own subset of fields and ignores the rest, so missing
// fields simply decode to zero values.
type ClientMessage struct {
	Type     string  `json:"type"`
	Name     string  `json:"name,omitempty"`
	IsPublic bool    `json:"is_public,omitempty"`
	RoomID   string  `json:"room_id,omitempty"`
	DX       float64 `json:"dx,omitempty"`
	DY       float64 `json:"dy,omitempty"`
}

// Inbound frame types.
const (
	MessageTypeCreate  = "create"
	MessageTypeJoin    = "join"
	MessageTypeInput   = "input"
	MessageTypeStart   = "start"
	MessageTypeRematch = "rematch"
)

// Outbound frame types.
const (
	MessageTypeWelcome         = "welcome"
	MessageTypePlayerJoined    = "player_joined"
	MessageTypePlayerLeft      = "player_left"
	MessageTypeCountdown       = "countdown"
	MessageTypeGameStarting    = "game_starting"
	MessageTypeRematchStarting = "rematch_starting"
	MessageTypeState           = "state"
	MessageTypeFinished        = "finished"
	MessageTypeError           = "error"
)

// WelcomeMessage is the first frame every session receives. It carries the
// assigned player id and the room snapshot taken at join time.
type WelcomeMessage struct {
	Type     string            `json:"type"`
	PlayerID string            `json:"player_id"`
	Room     arena.RoomPayload `json:"room"`
}

// PlayerJoinedMessage announces a new player to the rest of the room.
type PlayerJoinedMessage struct {
	Type   string              `json:"type"`
	Player arena.PlayerPayload `json:"player"`
	Room   arena.RoomPayload   `json:"room"`
}

// PlayerLeftMessage announces a departure.
type PlayerLeftMessage struct {
	Type     string            `json:"type"`
	PlayerID string            `json:"player_id"`
	Room     arena.RoomPayload `json:"room"`
}

// CountdownMessage carries one countdown second (3 down to 0).
type CountdownMessage struct {
	Type      string            `json:"type"`
	Countdown int               `json:"countdown"`
	Room      arena.RoomPayload `json:"room"`
}

// RoomMessage is the shape shared by game_starting, rematch_starting and
// state frames: just a type tag and the snapshot.
type RoomMessage struct {
	Type string            `json:"type"`
	Room arena.RoomPayload `json:"room"`
}

// FinishedMessage announces the match result.
type FinishedMessage struct {
	Type   string            `json:"type"`
	Winner string            `json:"winner,omitempty"`
	Room   arena.RoomPayload `json:"room"`
}

// ErrorMessage carries a short human-readable denial; the connection closes
// right after it is flushed.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func welcomeMessage(playerID string, room arena.RoomPayload) WelcomeMessage {
	return WelcomeMessage{Type: MessageTypeWelcome, PlayerID: playerID, Room: room}
}

func playerJoinedMessage(player arena.PlayerPayload, room arena.RoomPayload) PlayerJoinedMessage {
	return PlayerJoinedMessage{Type: MessageTypePlayerJoined, Player: player, Room: room}
}

func playerLeftMessage(playerID string, room arena.RoomPayload) PlayerLeftMessage {
	return PlayerLeftMessage{Type: MessageTypePlayerLeft, PlayerID: playerID, Room: room}
}

func countdownMessage(room arena.RoomPayload) CountdownMessage {
	return CountdownMessage{Type: MessageTypeCountdown, Countdown: room.Countdown, Room: room}
}

func gameStartingMessage(room arena.RoomPayload) RoomMessage {
	return RoomMessage{Type: MessageTypeGameStarting, Room: room}
}

func rematchStartingMessage(room arena.RoomPayload) RoomMessage {
	return RoomMessage{Type: MessageTypeRematchStarting, Room: room}
}

func stateMessage(room arena.RoomPayload) RoomMessage {
	return RoomMessage{Type: MessageTypeState, Room: room}
}

func finishedMessage(room arena.RoomPayload) FinishedMessage {
	return FinishedMessage{Type: MessageTypeFinished, Winner: room.Winner, Room: room}
}

func errorMessage(message string) ErrorMessage {
	return ErrorMessage{Type: MessageTypeError, Message: message}
}
