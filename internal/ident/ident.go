package ident

import (
	"crypto/rand"
	"math/big"
	"sync"
)

const (
	roomAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	playerAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

	roomCodeLength = 4
	playerIDLength = 12

	botPrefix = "bot_"
)

// RandSource interface for dependency injection of randomness
type RandSource interface {
	IntN(n int) int
}

// Generator allocates room codes and player IDs with configurable randomness.
type Generator struct {
	mu  sync.Mutex // guards src, which need not be safe for concurrent use
	src RandSource
}

// NewGenerator creates a new generator with optional RandSource. A nil source
// falls back to crypto/rand.
func NewGenerator(src RandSource) *Generator {
	return &Generator{src: src}
}

// RoomCode returns a 4-character uppercase room code, e.g. "QXZR". Codes are
// short enough to type into a chat message; uniqueness is the caller's job.
func (g *Generator) RoomCode() string {
	return g.generate(roomAlphabet, roomCodeLength)
}

// PlayerID returns a 12-character lowercase alphanumeric session identifier.
func (g *Generator) PlayerID() string {
	return g.generate(playerAlphabet, playerIDLength)
}

// BotID returns a player identifier carrying the bot marker prefix.
func (g *Generator) BotID() string {
	return botPrefix + g.PlayerID()
}

func (g *Generator) generate(alphabet string, length int) string {
	buf := make([]byte, length)
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range buf {
		buf[i] = alphabet[g.intN(len(alphabet))]
	}
	return string(buf)
}

func (g *Generator) intN(n int) int {
	if g.src != nil {
		return g.src.IntN(n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("failed to generate random bytes: " + err.Error())
	}
	return int(v.Int64())
}
