package arena

import "math"

// stepPhysicsLocked runs one simulation step: integrate positions, apply
// friction, eject players past the boundary, resolve pairwise collisions, and
// settle the match when at most one player is left standing.
//
// The eject test is strict, so a player exactly tangent to the boundary
// survives. Ejected players keep their last position for rendering but take
// no further part in collisions. The collision pass is single-sweep; residual
// overlap bleeds off over successive ticks through the normal impulse.
func (r *Room) stepPhysicsLocked() {
	alive := r.alivePlayersLocked()

	for _, p := range alive {
		p.X += p.VX
		p.Y += p.VY
		p.VX *= Friction
		p.VY *= Friction
	}

	for _, p := range alive {
		if math.Sqrt(p.X*p.X+p.Y*p.Y) > ArenaRadius+PlayerRadius {
			p.Alive = false
		}
	}

	for i := 0; i < len(alive); i++ {
		for j := i + 1; j < len(alive); j++ {
			p1, p2 := alive[i], alive[j]
			if !p1.Alive || !p2.Alive {
				continue
			}
			collide(p1, p2)
		}
	}

	survivors := r.alivePlayersLocked()
	if len(survivors) <= 1 && len(r.players) >= MinPlayers {
		r.state = StateFinished
		if len(survivors) == 1 {
			survivors[0].Score++
			r.winner = survivors[0].ID
		}
	}
}

// collide separates an overlapping pair and exchanges momentum along the
// contact normal. Coincident players (d == 0) are skipped; integration noise
// separates them by the next tick. The impulse mixes an elastic term with a
// fixed separation kick.
func collide(p1, p2 *Player) {
	dx := p2.X - p1.X
	dy := p2.Y - p1.Y
	d := math.Sqrt(dx*dx + dy*dy)
	if d == 0 || d >= 2*PlayerRadius {
		return
	}

	nx := dx / d
	ny := dy / d
	overlap := 2*PlayerRadius - d
	p1.X -= nx * overlap / 2
	p1.Y -= ny * overlap / 2
	p2.X += nx * overlap / 2
	p2.Y += ny * overlap / 2

	dvn := (p1.VX-p2.VX)*nx + (p1.VY-p2.VY)*ny
	if dvn <= 0 {
		return
	}
	p1.VX -= nx * restitution * dvn
	p1.VY -= ny * restitution * dvn
	p2.VX += nx * restitution * dvn
	p2.VY += ny * restitution * dvn

	p1.VX -= nx * separationKick
	p1.VY -= ny * separationKick
	p2.VX += nx * separationKick
	p2.VY += ny * separationKick
}
