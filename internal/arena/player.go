package arena

// palette holds the eight player colors, assigned round-robin by join order.
var palette = [...]string{
	"#FF6B6B",
	"#4ECDC4",
	"#45B7D1",
	"#96CEB4",
	"#FFEAA7",
	"#DDA0DD",
	"#98D8C8",
	"#F7DC6F",
}

// Outbound is the sink a room pushes frames into. Enqueue must never block;
// it reports false when the frame could not be queued, which the room treats
// as a dead session.
type Outbound interface {
	Enqueue(frame any) bool
}

// Player is one arena occupant, human or bot. Its fields are owned by the
// room that contains it and are only touched with the room mutex held.
type Player struct {
	ID    string
	Name  string
	X, Y  float64
	VX    float64
	VY    float64
	Color string
	Alive bool
	Score int
	IsBot bool

	// Sink is nil for bots.
	Sink Outbound
}

func newPlayer(id, name string, isBot bool, sink Outbound) *Player {
	return &Player{
		ID:    id,
		Name:  truncateName(name),
		Alive: true,
		IsBot: isBot,
		Sink:  sink,
	}
}

// truncateName limits a display name to 15 code points. Truncation happens on
// runes, not bytes, so multi-byte names keep valid UTF-8.
func truncateName(name string) string {
	runes := []rune(name)
	if len(runes) <= maxNameLength {
		return name
	}
	return string(runes[:maxNameLength])
}
