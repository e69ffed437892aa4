package server

import (
	"fmt"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lovza/sumo-server/internal/arena"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func TestCreateRoomAllocatesUniqueCodes(t *testing.T) {
	g := NewRegistry(testLogger(), 1)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		room := g.CreateRoom(true, false)
		require.Len(t, room.ID(), 4)
		require.False(t, seen[room.ID()], "room code %s allocated twice", room.ID())
		seen[room.ID()] = true
	}
	assert.Equal(t, 200, g.RoomCount())
}

func TestRoomLookupIsCaseInsensitive(t *testing.T) {
	g := NewRegistry(testLogger(), 1)
	room := g.CreateRoom(true, false)

	for _, code := range []string{
		room.ID(),
		"  " + room.ID() + " ",
	} {
		found, err := g.Room(code)
		require.NoError(t, err, "lookup failed for %q", code)
		assert.Same(t, room, found)
	}

	lower, err := g.Room(firstLower(room.ID()))
	require.NoError(t, err)
	assert.Same(t, room, lower)

	_, err = g.Room("ZZZZZZ")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func firstLower(s string) string {
	b := []byte(s)
	b[0] = b[0] - 'A' + 'a'
	return string(b)
}

func TestAddPlayerIndexesAndRemovePlayerUnindexes(t *testing.T) {
	g := NewRegistry(testLogger(), 1)
	room := g.CreateRoom(true, false)

	p1, snapshot, err := g.AddPlayer(room, "Alice", false, nil)
	require.NoError(t, err)
	assert.Len(t, p1.ID, 12)
	assert.Equal(t, 1, snapshot.PlayerCount)

	bot, _, err := g.AddPlayer(room, "Иван", true, nil)
	require.NoError(t, err)
	assert.Contains(t, bot.ID, "bot_")

	found, ok := g.RoomOf(p1.ID)
	require.True(t, ok)
	assert.Same(t, room, found)

	gone, removed, payload, ok := g.RemovePlayer(p1.ID)
	require.True(t, ok)
	assert.Same(t, room, gone)
	assert.Equal(t, p1.ID, removed.ID)
	assert.Equal(t, 1, payload.PlayerCount)

	_, ok = g.RoomOf(p1.ID)
	assert.False(t, ok, "removed player must leave the index")

	_, _, _, ok = g.RemovePlayer(p1.ID)
	assert.False(t, ok, "double removal is reported")
}

func TestLastDepartureDestroysRoom(t *testing.T) {
	g := NewRegistry(testLogger(), 1)
	room := g.CreateRoom(true, false)
	p, _, err := g.AddPlayer(room, "Solo", false, nil)
	require.NoError(t, err)

	_, _, _, ok := g.RemovePlayer(p.ID)
	require.True(t, ok)

	assert.False(t, g.HasRoom(room.ID()))
	assert.Zero(t, g.RoomCount())
}

func TestLobbyRoomsFiltering(t *testing.T) {
	g := NewRegistry(testLogger(), 1)

	private := g.CreateRoom(false, false)
	_, _, err := g.AddPlayer(private, "Hidden", false, nil)
	require.NoError(t, err)

	public := g.CreateRoom(true, false)
	_, _, err = g.AddPlayer(public, "Visible", false, nil)
	require.NoError(t, err)

	started := g.CreateRoom(true, false)
	for i := 0; i < 2; i++ {
		_, _, err = g.AddPlayer(started, fmt.Sprintf("P%d", i), false, nil)
		require.NoError(t, err)
	}
	require.True(t, started.RequestStart(started.OwnerID()))

	full := g.CreateRoom(true, false)
	for i := 0; i < arena.MaxPlayers; i++ {
		_, _, err = g.AddPlayer(full, fmt.Sprintf("F%d", i), false, nil)
		require.NoError(t, err)
	}

	lobby := g.LobbyRooms()
	require.Len(t, lobby, 1)
	assert.Equal(t, public.ID(), lobby[0].ID)
}

func TestWaitingBotRoomCount(t *testing.T) {
	g := NewRegistry(testLogger(), 1)

	g.CreateRoom(true, false) // human room does not count
	b1 := g.CreateRoom(true, true)
	b2 := g.CreateRoom(true, true)
	for _, room := range []*arena.Room{b1, b2} {
		for i := 0; i < 2; i++ {
			_, _, err := g.AddPlayer(room, arena.BotNames[i], true, nil)
			require.NoError(t, err)
		}
	}
	assert.Equal(t, 2, g.WaitingBotRoomCount())

	require.True(t, b1.BeginCountdown())
	assert.Equal(t, 1, g.WaitingBotRoomCount())
}
