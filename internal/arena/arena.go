// Package arena implements the authoritative game core: players, rooms, the
// fixed-tick physics step, and the bot decision pass. Everything here is
// transport-agnostic; sessions reach a Room only through its methods, and all
// methods serialize on the room's mutex so simulation ticks never interleave
// with membership changes or input.
package arena

import "time"

// Simulation constants. These are part of the wire contract (arena_radius and
// player_radius travel in every room payload), so changing them changes what
// clients render.
const (
	ArenaRadius  = 400.0
	PlayerRadius = 25.0
	Friction     = 0.96
	BounceForce  = 8.0

	TickRate = time.Second / 60

	MaxPlayers = 8
	MinPlayers = 2

	// CountdownSeconds is the initial countdown value. The loop broadcasts
	// it once per second down to and including zero.
	CountdownSeconds = 3

	// InputImpulse is the velocity added per input frame after the input
	// vector is normalized to unit length.
	InputImpulse = 1.5

	// SpawnRingFactor places respawned players on a ring of this fraction
	// of the arena radius.
	SpawnRingFactor = 0.6
)

const (
	restitution    = 0.8
	separationKick = 0.5 * BounceForce

	botImpulse    = 1.2
	botNoise      = 0.3
	botFireChance = 0.15

	maxNameLength = 15
)

// State is the match lifecycle phase of a room.
type State string

const (
	StateWaiting   State = "waiting"
	StateCountdown State = "countdown"
	StatePlaying   State = "playing"
	StateFinished  State = "finished"
)
