package arena

import "math"

// BotNames is the pool bot rooms draw display names from.
var BotNames = []string{
	"Иван",
	"Дмитрий",
	"Сергей",
	"Алексей",
	"Андрей",
	"Михаил",
	"Николай",
	"Павел",
	"Олег",
	"Виктор",
	"Борис",
	"Григорий",
	"Степан",
	"Фёдор",
	"Егор",
	"Макар",
	"Тимофей",
	"Аркадий",
	"Семён",
	"Лев",
}

// stepBotsLocked runs the per-tick bot decision pass. Each alive bot steers
// toward the nearest alive human, falling back to the nearest alive player of
// any kind and finally to the arena center. The direction gets uniform noise
// in ±botNoise per axis without renormalization, and the impulse fires with
// probability botFireChance.
//
// The RNG draw order per bot is fixed (noise x, noise y, fire roll) so the
// pass is reproducible from the room seed.
func (r *Room) stepBotsLocked() {
	for _, b := range r.order {
		if !b.IsBot || !b.Alive {
			continue
		}

		target := r.nearestTargetLocked(b)
		var ux, uy float64
		if target != nil {
			dx := target.X - b.X
			dy := target.Y - b.Y
			if d := math.Sqrt(dx*dx + dy*dy); d > 0 {
				ux = dx / d
				uy = dy / d
			}
		} else if d := math.Sqrt(b.X*b.X + b.Y*b.Y); d > 0 {
			ux = -b.X / d
			uy = -b.Y / d
		}

		ux += (r.rng.Float64()*2 - 1) * botNoise
		uy += (r.rng.Float64()*2 - 1) * botNoise

		if r.rng.Float64() < botFireChance {
			b.VX += ux * botImpulse
			b.VY += uy * botImpulse
		}
	}
}

// nearestTargetLocked picks the closest alive human to b, or the closest
// alive player of any kind when no humans remain. Nil means b is the only
// one left and should head for the center.
func (r *Room) nearestTargetLocked(b *Player) *Player {
	var best *Player
	bestDist := math.MaxFloat64
	humansOnly := true

	for pass := 0; pass < 2; pass++ {
		for _, p := range r.order {
			if p == b || !p.Alive {
				continue
			}
			if humansOnly && p.IsBot {
				continue
			}
			dx := p.X - b.X
			dy := p.Y - b.Y
			if d := dx*dx + dy*dy; d < bestDist {
				bestDist = d
				best = p
			}
		}
		if best != nil {
			return best
		}
		humansOnly = false
	}
	return nil
}
