package server

import (
	"context"
	"errors"
	rand "math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lovza/sumo-server/internal/arena"
	"github.com/lovza/sumo-server/internal/randutil"
)

const (
	// Bounds on supervisor-managed waiting rooms.
	defaultBotRoomsMin = 2
	defaultBotRoomsMax = 5

	defaultSupervisorInterval = 5 * time.Second

	// Chance per cycle of opening one extra room beyond the minimum.
	extraRoomChance = 0.1

	minBotsPerRoom = 2
	maxBotsPerRoom = 7
)

// BotRoomSupervisor keeps a pool of joinable bot rooms alive so a player
// landing in the lobby always has somewhere to play.
type BotRoomSupervisor struct {
	registry *Registry
	loops    LoopStarter
	clock    quartz.Clock
	logger   *log.Logger
	rng      *rand.Rand

	minRooms int
	maxRooms int
	interval time.Duration
}

// NewBotRoomSupervisor wires a supervisor; min/max/interval of zero fall back
// to the defaults.
func NewBotRoomSupervisor(registry *Registry, loops LoopStarter, clock quartz.Clock, logger *log.Logger, seed int64, minRooms, maxRooms int, interval time.Duration) *BotRoomSupervisor {
	if minRooms <= 0 {
		minRooms = defaultBotRoomsMin
	}
	if maxRooms <= 0 {
		maxRooms = defaultBotRoomsMax
	}
	if interval <= 0 {
		interval = defaultSupervisorInterval
	}
	return &BotRoomSupervisor{
		registry: registry,
		loops:    loops,
		clock:    clock,
		logger:   logger.WithPrefix("supervisor"),
		rng:      randutil.New(seed),
		minRooms: minRooms,
		maxRooms: maxRooms,
		interval: interval,
	}
}

// Run tops the pool up immediately and then once per cycle until the context
// is cancelled.
func (v *BotRoomSupervisor) Run(ctx context.Context) error {
	v.fill()

	waiter := v.clock.TickerFunc(ctx, v.interval, func() error {
		v.fill()
		return nil
	}, "bot-room-supervisor")

	if err := waiter.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// fill restores the minimum of waiting bot rooms and occasionally opens one
// more, up to the maximum.
func (v *BotRoomSupervisor) fill() {
	waiting := v.registry.WaitingBotRoomCount()
	for waiting < v.minRooms {
		v.spawnRoom()
		waiting++
	}
	if waiting < v.maxRooms && v.rng.Float64() < extraRoomChance {
		v.spawnRoom()
	}
}

// spawnRoom creates a public bot room seeded with 2 to 7 bots and starts its
// loop.
func (v *BotRoomSupervisor) spawnRoom() {
	room := v.registry.CreateRoom(true, true)
	count := minBotsPerRoom + v.rng.IntN(maxBotsPerRoom-minBotsPerRoom+1)
	for i := 0; i < count; i++ {
		name := arena.BotNames[v.rng.IntN(len(arena.BotNames))]
		if _, _, err := v.registry.AddPlayer(room, name, true, nil); err != nil {
			v.logger.Error("Failed to seed bot", "room", room.ID(), "error", err)
			break
		}
	}
	v.loops.StartRoomLoop(room)
	v.logger.Info("Bot room ready", "room", room.ID(), "bots", count)
}
