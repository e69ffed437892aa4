package server

import (
	"errors"
	rand "math/rand/v2"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lovza/sumo-server/internal/arena"
	"github.com/lovza/sumo-server/internal/ident"
	"github.com/lovza/sumo-server/internal/randutil"
)

// ErrRoomNotFound is returned on a join with an unknown room code.
var ErrRoomNotFound = errors.New("room not found")

// Registry is the process-wide index of rooms and players. It allocates room
// codes and player ids, guarantees their uniqueness among live entries, and
// destroys rooms when the last player leaves.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]*arena.Room
	players map[string]string // player id → room id
	ids     *ident.Generator
	rng     *rand.Rand
	logger  *log.Logger
}

// NewRegistry creates an empty registry. The seed drives room code and id
// allocation plus every room's private RNG, making whole-server runs
// reproducible in tests.
func NewRegistry(logger *log.Logger, seed int64) *Registry {
	rng := randutil.New(seed)
	return &Registry{
		rooms:   make(map[string]*arena.Room),
		players: make(map[string]string),
		ids:     ident.NewGenerator(randutil.Fork(rng)),
		rng:     rng,
		logger:  logger.WithPrefix("registry"),
	}
}

// CreateRoom allocates an unused 4-letter code and registers a new waiting
// room under it. The code space is small, so collisions are resampled rather
// than assumed away.
func (g *Registry) CreateRoom(isPublic, isBotRoom bool) *arena.Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	var code string
	for {
		code = g.ids.RoomCode()
		if _, taken := g.rooms[code]; !taken {
			break
		}
	}

	room := arena.NewRoom(code, isPublic, isBotRoom, g.rng.Int64())
	g.rooms[code] = room
	roomsActive.WithLabelValues(roomKind(isBotRoom)).Inc()
	g.logger.Info("Room created", "room", code, "public", isPublic, "bot", isBotRoom)
	return room
}

// Room looks up a room by code, case-insensitively. An unknown code yields
// ErrRoomNotFound.
func (g *Registry) Room(code string) (*arena.Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[normalizeCode(code)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// HasRoom reports whether a room is still live. Room loops poll this to
// notice their room was destroyed.
func (g *Registry) HasRoom(code string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.rooms[normalizeCode(code)]
	return ok
}

// AddPlayer allocates a player id and admits the player to the room,
// recording the player → room mapping. The returned snapshot was taken
// immediately after the join; an optional welcome builder is forwarded to the
// room so the frame lands on the sink ahead of any broadcast.
func (g *Registry) AddPlayer(room *arena.Room, name string, isBot bool, sink arena.Outbound, welcome ...arena.WelcomeFunc) (*arena.Player, arena.RoomPayload, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var id string
	for {
		if isBot {
			id = g.ids.BotID()
		} else {
			id = g.ids.PlayerID()
		}
		if _, taken := g.players[id]; !taken {
			break
		}
	}

	p, snapshot, err := room.AddPlayer(id, name, isBot, sink, welcome...)
	if err != nil {
		return nil, arena.RoomPayload{}, err
	}
	g.players[p.ID] = room.ID()
	return p, snapshot, nil
}

// RemovePlayer drops a player from its room. When the last player leaves the
// room is destroyed on the spot. The returned payload is the post-removal
// snapshot; ok is false when the player was not registered.
func (g *Registry) RemovePlayer(playerID string) (room *arena.Room, removed *arena.Player, payload arena.RoomPayload, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	roomID, known := g.players[playerID]
	if !known {
		return nil, nil, arena.RoomPayload{}, false
	}
	delete(g.players, playerID)

	room = g.rooms[roomID]
	removed, remaining := room.RemovePlayer(playerID)
	if remaining == 0 {
		delete(g.rooms, roomID)
		roomsActive.WithLabelValues(roomKind(room.IsBotRoom())).Dec()
		g.logger.Info("Room destroyed", "room", roomID)
		return room, removed, arena.RoomPayload{}, true
	}
	return room, removed, room.Payload(), true
}

// RoomOf resolves the room a player currently occupies.
func (g *Registry) RoomOf(playerID string) (*arena.Room, bool) {
	g.mu.RLock()
	roomID, known := g.players[playerID]
	if !known {
		g.mu.RUnlock()
		return nil, false
	}
	room := g.rooms[roomID]
	g.mu.RUnlock()
	return room, room != nil
}

// LobbyRooms snapshots the public, waiting, not-full rooms for GET /rooms.
func (g *Registry) LobbyRooms() []arena.RoomPayload {
	g.mu.RLock()
	defer g.mu.RUnlock()

	lobby := make([]arena.RoomPayload, 0, len(g.rooms))
	for _, room := range g.rooms {
		if !room.IsPublic() {
			continue
		}
		pl := room.Payload()
		if pl.State != arena.StateWaiting || pl.PlayerCount >= arena.MaxPlayers {
			continue
		}
		lobby = append(lobby, pl)
	}
	return lobby
}

// WaitingBotRoomCount counts supervisor-managed rooms still accepting joins.
func (g *Registry) WaitingBotRoomCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := 0
	for _, room := range g.rooms {
		if room.IsBotRoom() && room.State() == arena.StateWaiting {
			n++
		}
	}
	return n
}

// RoomCount returns the number of live rooms.
func (g *Registry) RoomCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func roomKind(isBotRoom bool) string {
	if isBotRoom {
		return "bot"
	}
	return "human"
}
