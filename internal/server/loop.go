package server

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lovza/sumo-server/internal/arena"
)

const (
	// Poll interval while the room idles in waiting or finished.
	idlePollInterval = 100 * time.Millisecond

	// How long a finished bot room lingers before restarting on its own.
	autoRematchDelay = 3 * time.Second
)

// roomLoop drives one room's state machine. Exactly one loop runs per live
// room; it exits when the room is destroyed, emptied, or the server shuts
// down.
type roomLoop struct {
	room     *arena.Room
	registry *Registry
	clock    quartz.Clock
	logger   *log.Logger
}

func newRoomLoop(room *arena.Room, registry *Registry, clock quartz.Clock, logger *log.Logger) *roomLoop {
	return &roomLoop{
		room:     room,
		registry: registry,
		clock:    clock,
		logger:   logger.WithPrefix("loop").With("room", room.ID()),
	}
}

func (l *roomLoop) run(ctx context.Context) {
	l.logger.Debug("Room loop started")
	defer l.logger.Debug("Room loop stopped")

	// Deadline for a finished bot room's automatic rematch. Zero while the
	// room is in any other state or has no humans to play against.
	var rematchAt time.Time

	for {
		if ctx.Err() != nil {
			return
		}
		if !l.registry.HasRoom(l.room.ID()) || l.room.PlayerCount() == 0 {
			return
		}

		// A bot room whose humans all left goes back to accepting joins.
		if l.room.IsBotRoom() && l.room.HumanCount() == 0 && l.room.State() != arena.StateWaiting {
			l.logger.Info("Humans left, resetting bot room")
			l.room.ResetToWaiting()
			rematchAt = time.Time{}
		}

		switch l.room.State() {
		case arena.StateWaiting:
			rematchAt = time.Time{}
			if l.room.IsBotRoom() && l.room.HumanCount() > 0 && l.room.BeginCountdown() {
				l.logger.Info("Human joined bot room, starting match")
				l.broadcast(gameStartingMessage(l.room.Payload()))
				continue
			}
			if !l.sleep(ctx, idlePollInterval) {
				return
			}

		case arena.StateCountdown:
			// The current value is broadcast before the sleep that
			// consumes it, so clients see 3, 2, 1 and 0.
			l.broadcast(countdownMessage(l.room.Payload()))
			if !l.sleep(ctx, time.Second) {
				return
			}
			l.room.AdvanceCountdown()

		case arena.StatePlaying:
			rematchAt = time.Time{}
			finished := l.room.Tick()
			ticksTotal.Inc()
			l.broadcast(stateMessage(l.room.Payload()))
			if finished {
				matchesFinished.Inc()
				l.logger.Info("Match finished", "winner", l.room.Winner())
			}
			if !l.sleep(ctx, arena.TickRate) {
				return
			}

		case arena.StateFinished:
			l.broadcast(finishedMessage(l.room.Payload()))
			if l.room.IsBotRoom() && l.room.HumanCount() > 0 {
				switch {
				case rematchAt.IsZero():
					rematchAt = l.clock.Now().Add(autoRematchDelay)
				case !l.clock.Now().Before(rematchAt):
					if l.room.AutoRematch() {
						rematchAt = time.Time{}
						l.logger.Info("Auto rematch in bot room")
						l.broadcast(rematchStartingMessage(l.room.Payload()))
					}
				}
			} else {
				rematchAt = time.Time{}
			}
			if !l.sleep(ctx, idlePollInterval) {
				return
			}
		}
	}
}

func (l *roomLoop) broadcast(frame any) {
	if failed := l.room.Broadcast(frame); len(failed) > 0 {
		l.logger.Debug("Broadcast skipped dead sessions", "count", len(failed))
	}
}

// sleep blocks for d on the injected clock. Returns false when the context
// was cancelled instead.
func (l *roomLoop) sleep(ctx context.Context, d time.Duration) bool {
	timer := l.clock.NewTimer(d, "room-loop")
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
