package arena

import (
	"errors"
	"math"
	rand "math/rand/v2"
	"sync"

	"github.com/lovza/sumo-server/internal/randutil"
)

var (
	// ErrRoomFull is returned when a join would exceed MaxPlayers.
	ErrRoomFull = errors.New("room full")

	// ErrMatchStarted is returned when a join targets a room that has left
	// the waiting state.
	ErrMatchStarted = errors.New("game already started")
)

// Room owns a set of players and the match state machine. All exported
// methods lock the room, so callers never coordinate beyond calling them; the
// per-room loop and any number of sessions may use a Room concurrently.
type Room struct {
	mu sync.Mutex

	id        string
	ownerID   string
	isPublic  bool
	isBotRoom bool

	players map[string]*Player
	order   []*Player // join order, drives color assignment and broadcasts
	joined  int       // total joins ever, for round-robin colors

	state     State
	countdown int
	winner    string

	rng *rand.Rand
}

// NewRoom creates an empty waiting room. The seed fixes the room's private
// RNG, which drives spawn angles and bot decisions, so a match replays
// identically from the same seed and join sequence.
func NewRoom(id string, isPublic, isBotRoom bool, seed int64) *Room {
	return &Room{
		id:        id,
		isPublic:  isPublic,
		isBotRoom: isBotRoom,
		players:   make(map[string]*Player),
		state:     StateWaiting,
		rng:       randutil.New(seed),
	}
}

// ID returns the 4-letter room code.
func (r *Room) ID() string { return r.id }

// IsPublic reports whether the room shows up in the lobby.
func (r *Room) IsPublic() bool { return r.isPublic }

// IsBotRoom reports whether the room is supervisor-managed.
func (r *Room) IsBotRoom() bool { return r.isBotRoom }

// State returns the current lifecycle phase.
func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// OwnerID returns the player entitled to start and rematch, or "" when the
// room is empty.
func (r *Room) OwnerID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ownerID
}

// Winner returns the id recorded at the last finish, or "".
func (r *Room) Winner() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.winner
}

// PlayerCount returns the number of players, bots included.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// HumanCount returns the number of non-bot players.
func (r *Room) HumanCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.humanCountLocked()
}

func (r *Room) humanCountLocked() int {
	n := 0
	for _, p := range r.order {
		if !p.IsBot {
			n++
		}
	}
	return n
}

// WelcomeFunc builds the first frame a joining session receives from the
// post-join snapshot. AddPlayer invokes it with the room lock held.
type WelcomeFunc func(playerID string, snapshot RoomPayload) any

// AddPlayer admits a player to a waiting room. The first joiner becomes the
// owner. The new player spawns at a random angle on the spawn ring with zero
// velocity. Returns the created player and a snapshot taken immediately after
// the join.
//
// When a welcome builder is given, its frame is enqueued on the sink before
// the room lock is released. The sink becomes broadcast-visible at
// registration, so deferring the welcome to the caller would let a concurrent
// broadcast reach the session first.
func (r *Room) AddPlayer(id, name string, isBot bool, sink Outbound, welcome ...WelcomeFunc) (*Player, RoomPayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateWaiting {
		return nil, RoomPayload{}, ErrMatchStarted
	}
	if len(r.players) >= MaxPlayers {
		return nil, RoomPayload{}, ErrRoomFull
	}

	p := newPlayer(id, name, isBot, sink)
	p.Color = palette[r.joined%len(palette)]
	r.joined++

	angle := r.rng.Float64() * 2 * math.Pi
	p.X = math.Cos(angle) * ArenaRadius * SpawnRingFactor
	p.Y = math.Sin(angle) * ArenaRadius * SpawnRingFactor

	r.players[id] = p
	r.order = append(r.order, p)
	if r.ownerID == "" {
		r.ownerID = id
	}

	snapshot := r.payloadLocked()
	if sink != nil && len(welcome) > 0 && welcome[0] != nil {
		sink.Enqueue(welcome[0](id, snapshot))
	}
	return p, snapshot, nil
}

// RemovePlayer drops a player, reassigning ownership to the earliest
// remaining joiner when the owner departs. It returns the removed player and
// how many players remain; remaining == 0 means the room should be destroyed.
func (r *Room) RemovePlayer(id string) (*Player, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[id]
	if !ok {
		return nil, len(r.players)
	}
	delete(r.players, id)
	for i, q := range r.order {
		if q.ID == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.ownerID == id {
		r.ownerID = ""
		if len(r.order) > 0 {
			r.ownerID = r.order[0].ID
		}
	}
	return p, len(r.players)
}

// ApplyInput normalizes a directional input and adds the movement impulse to
// the player's velocity. Inputs outside the playing state, from dead or
// unknown players, or with zero magnitude are discarded.
func (r *Room) ApplyInput(playerID string, dx, dy float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StatePlaying {
		return
	}
	p, ok := r.players[playerID]
	if !ok || !p.Alive {
		return
	}
	m := math.Sqrt(dx*dx + dy*dy)
	if m == 0 {
		return
	}
	p.VX += dx / m * InputImpulse
	p.VY += dy / m * InputImpulse
}

// RequestStart handles an owner's start request. Anything other than the
// owner starting a waiting room with enough players is silently ignored.
func (r *Room) RequestStart(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if playerID != r.ownerID || r.state != StateWaiting || len(r.players) < MinPlayers {
		return false
	}
	r.beginCountdownLocked()
	return true
}

// RequestRematch handles an owner's rematch request after a finish. The
// winner is cleared and everyone respawns for the next countdown.
func (r *Room) RequestRematch(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if playerID != r.ownerID || r.state != StateFinished || len(r.players) < MinPlayers {
		return false
	}
	r.winner = ""
	r.respawnLocked()
	r.beginCountdownLocked()
	return true
}

// BeginCountdown starts a waiting room without an owner request. The loop
// uses it for bot rooms once a human has joined.
func (r *Room) BeginCountdown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateWaiting || len(r.players) < MinPlayers {
		return false
	}
	r.beginCountdownLocked()
	return true
}

// AutoRematch restarts a finished room without an owner request. The loop
// uses it for bot rooms once the rematch deadline passes.
func (r *Room) AutoRematch() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateFinished || len(r.players) < MinPlayers {
		return false
	}
	r.winner = ""
	r.respawnLocked()
	r.beginCountdownLocked()
	return true
}

// ResetToWaiting returns a bot room to the waiting state after its last human
// leaves: winner cleared, bots respawned, joins accepted again.
func (r *Room) ResetToWaiting() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = StateWaiting
	r.winner = ""
	r.countdown = 0
	r.respawnLocked()
}

// Countdown returns the remaining countdown seconds.
func (r *Room) Countdown() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countdown
}

// AdvanceCountdown decrements the countdown one second. Once it passes zero
// the room respawns everyone and enters playing; the zero value itself is
// broadcast before the transition. Reports whether play began.
func (r *Room) AdvanceCountdown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateCountdown {
		return false
	}
	r.countdown--
	if r.countdown >= 0 {
		return false
	}
	r.respawnLocked()
	r.state = StatePlaying
	return true
}

// Tick advances the simulation one step: bots decide, then physics runs.
// Reports whether this step finished the match.
func (r *Room) Tick() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StatePlaying {
		return false
	}
	r.stepBotsLocked()
	r.stepPhysicsLocked()
	return r.state == StateFinished
}

// Broadcast enqueues a frame on every connected session in join order and
// returns the ids of players whose sink rejected it. Bots are skipped.
func (r *Room) Broadcast(frame any) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var failed []string
	for _, p := range r.order {
		if p.Sink == nil {
			continue
		}
		if !p.Sink.Enqueue(frame) {
			failed = append(failed, p.ID)
		}
	}
	return failed
}

func (r *Room) beginCountdownLocked() {
	r.state = StateCountdown
	r.countdown = CountdownSeconds
}

// respawnLocked places all players evenly on the spawn ring, angle 2πi/N by
// join order, at rest and alive.
func (r *Room) respawnLocked() {
	n := len(r.order)
	for i, p := range r.order {
		angle := 2 * math.Pi * float64(i) / float64(n)
		p.X = math.Cos(angle) * ArenaRadius * SpawnRingFactor
		p.Y = math.Sin(angle) * ArenaRadius * SpawnRingFactor
		p.VX = 0
		p.VY = 0
		p.Alive = true
	}
}

func (r *Room) alivePlayersLocked() []*Player {
	alive := make([]*Player, 0, len(r.order))
	for _, p := range r.order {
		if p.Alive {
			alive = append(alive, p)
		}
	}
	return alive
}
