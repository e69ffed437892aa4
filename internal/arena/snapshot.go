package arena

import "sort"

// PlayerPayload is the wire form of a player inside a room payload.
type PlayerPayload struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	VX    float64 `json:"vx"`
	VY    float64 `json:"vy"`
	Color string  `json:"color"`
	Alive bool    `json:"alive"`
	Score int     `json:"score"`
	IsBot bool    `json:"is_bot"`
}

// RoomPayload is the authoritative room snapshot carried by every server
// frame.
type RoomPayload struct {
	ID           string                   `json:"id"`
	OwnerID      string                   `json:"owner_id"`
	IsPublic     bool                     `json:"is_public"`
	IsBotRoom    bool                     `json:"is_bot_room"`
	Players      map[string]PlayerPayload `json:"players"`
	State        State                    `json:"state"`
	Countdown    int                      `json:"countdown"`
	Winner       string                   `json:"winner,omitempty"`
	PlayerCount  int                      `json:"player_count"`
	ArenaRadius  float64                  `json:"arena_radius"`
	PlayerRadius float64                  `json:"player_radius"`
}

// Payload snapshots the room for broadcasting.
func (r *Room) Payload() RoomPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payloadLocked()
}

func (r *Room) payloadLocked() RoomPayload {
	players := make(map[string]PlayerPayload, len(r.players))
	for id, p := range r.players {
		players[id] = playerPayload(p)
	}
	return RoomPayload{
		ID:           r.id,
		OwnerID:      r.ownerID,
		IsPublic:     r.isPublic,
		IsBotRoom:    r.isBotRoom,
		Players:      players,
		State:        r.state,
		Countdown:    r.countdown,
		Winner:       r.winner,
		PlayerCount:  len(r.players),
		ArenaRadius:  ArenaRadius,
		PlayerRadius: PlayerRadius,
	}
}

func playerPayload(p *Player) PlayerPayload {
	return PlayerPayload{
		ID:    p.ID,
		Name:  p.Name,
		X:     p.X,
		Y:     p.Y,
		VX:    p.VX,
		VY:    p.VY,
		Color: p.Color,
		Alive: p.Alive,
		Score: p.Score,
		IsBot: p.IsBot,
	}
}

// PlayerSnapshot returns the wire form of a single player, or false when the
// player has already left the room.
func (r *Room) PlayerSnapshot(id string) (PlayerPayload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	if !ok {
		return PlayerPayload{}, false
	}
	return playerPayload(p), true
}

// FromPayload rebuilds an in-memory room from a snapshot, minus sessions.
// Players are inserted in sorted-id order so the rebuilt room has a
// deterministic iteration order regardless of the map's. Given the same seed,
// two rooms rebuilt from the same payload simulate identically.
func FromPayload(pl RoomPayload, seed int64) *Room {
	r := NewRoom(pl.ID, pl.IsPublic, pl.IsBotRoom, seed)
	r.ownerID = pl.OwnerID
	r.state = pl.State
	r.countdown = pl.Countdown
	r.winner = pl.Winner

	ids := make([]string, 0, len(pl.Players))
	for id := range pl.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		pp := pl.Players[id]
		p := &Player{
			ID:    pp.ID,
			Name:  pp.Name,
			X:     pp.X,
			Y:     pp.Y,
			VX:    pp.VX,
			VY:    pp.VY,
			Color: pp.Color,
			Alive: pp.Alive,
			Score: pp.Score,
			IsBot: pp.IsBot,
		}
		r.players[id] = p
		r.order = append(r.order, p)
	}
	r.joined = len(r.order)
	return r
}
