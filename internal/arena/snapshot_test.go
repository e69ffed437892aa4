package arena

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadCarriesRoomAndArenaFields(t *testing.T) {
	r := newTestRoom(t, 3)

	pl := r.Payload()

	assert.Equal(t, "TEST", pl.ID)
	assert.Equal(t, "player000000", pl.OwnerID)
	assert.True(t, pl.IsPublic)
	assert.False(t, pl.IsBotRoom)
	assert.Equal(t, StateWaiting, pl.State)
	assert.Equal(t, 3, pl.PlayerCount)
	assert.Len(t, pl.Players, 3)
	assert.Equal(t, float64(ArenaRadius), pl.ArenaRadius)
	assert.Equal(t, float64(PlayerRadius), pl.PlayerRadius)
}

func TestPayloadSurvivesJSONRoundTrip(t *testing.T) {
	r := newTestRoom(t, 2)
	finishMatch(t, r, "player000000")
	original := r.Payload()

	raw, err := json.Marshal(original)
	require.NoError(t, err)
	var decoded RoomPayload
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, original, decoded)
	assert.Equal(t, original, FromPayload(decoded, 1).Payload())
}

// A room rebuilt from a snapshot must simulate identically to another rebuilt
// from the same snapshot with the same seed, tick for tick.
func TestReconstructedRoomsSimulateIdentically(t *testing.T) {
	source := NewRoom("SEED", true, true, 5)
	for i, name := range []string{"Иван", "Олег", "Лев"} {
		_, _, err := source.AddPlayer(BotNames[i]+"_id", name, true, nil)
		require.NoError(t, err)
	}
	_, _, err := source.AddPlayer("playerhuman1", "Human", false, nil)
	require.NoError(t, err)
	startMatch(t, source)

	snapshot := source.Payload()
	a := FromPayload(snapshot, 1234)
	b := FromPayload(snapshot, 1234)

	for tick := 0; tick < 300; tick++ {
		a.Tick()
		b.Tick()
		require.Equal(t, a.Payload(), b.Payload(), "divergence at tick %d", tick)
		if a.State() != StatePlaying {
			break
		}
	}
}

func TestFromPayloadDivergesUnderDifferentSeeds(t *testing.T) {
	source := newBotTestRoom(t, 1, 3)
	snapshot := source.Payload()

	a := FromPayload(snapshot, 1)
	b := FromPayload(snapshot, 2)
	for tick := 0; tick < 120; tick++ {
		a.Tick()
		b.Tick()
	}

	assert.NotEqual(t, a.Payload(), b.Payload(), "bot noise depends on the seed")
}
