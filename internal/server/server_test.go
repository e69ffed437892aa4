package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, webAppURL string) (*Server, *httptest.Server) {
	t.Helper()
	g := NewRegistry(testLogger(), 3)
	s := NewServer("127.0.0.1:0", webAppURL, g, quartz.NewReal(), testLogger())
	ts := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		ts.Close()
		s.Stop()
	})
	return s, ts
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

// readFrame decodes the next frame into a loose map so tests can assert on
// any frame shape.
func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// readFrameOfType skips frames until one of the wanted type arrives. Rooms
// broadcast continuously, so unrelated frames may interleave.
func readFrameOfType(t *testing.T, conn *websocket.Conn, wanted string) map[string]any {
	t.Helper()
	for i := 0; i < 500; i++ {
		frame := readFrame(t, conn)
		if frame["type"] == wanted {
			return frame
		}
	}
	t.Fatalf("never received a %q frame", wanted)
	return nil
}

func createRoom(t *testing.T, ts *httptest.Server, name string, public bool) (*websocket.Conn, string, string) {
	t.Helper()
	conn := dialWS(t, ts)
	sendFrame(t, conn, ClientMessage{Type: MessageTypeCreate, Name: name, IsPublic: public})

	welcome := readFrame(t, conn)
	require.Equal(t, MessageTypeWelcome, welcome["type"])
	playerID := welcome["player_id"].(string)
	room := welcome["room"].(map[string]any)
	return conn, room["id"].(string), playerID
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestCreateRoomAndLobbyListing(t *testing.T) {
	_, ts := newTestServer(t, "https://game.example.com")

	_, roomID, playerID := createRoom(t, ts, "Alice", true)
	assert.Len(t, roomID, 4)
	assert.Equal(t, strings.ToUpper(roomID), roomID)
	assert.Len(t, playerID, 12)

	resp, err := http.Get(ts.URL + "/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()

	var lobby LobbyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lobby))
	require.Len(t, lobby.Rooms, 1)

	entry := lobby.Rooms[0]
	assert.Equal(t, roomID, entry.ID)
	assert.Equal(t, 1, entry.PlayerCount)
	assert.Equal(t, 8, entry.MaxPlayers)
	assert.Equal(t, "Alice", entry.OwnerName)
	assert.False(t, entry.IsBotRoom)
	assert.Equal(t, "https://game.example.com?startapp=room_"+roomID, entry.JoinURL)
}

func TestPrivateRoomsStayOffTheLobby(t *testing.T) {
	_, ts := newTestServer(t, "")

	createRoom(t, ts, "Hermit", false)

	resp, err := http.Get(ts.URL + "/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()

	var lobby LobbyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lobby))
	assert.Empty(t, lobby.Rooms)
}

func TestJoinRoomCaseInsensitive(t *testing.T) {
	_, ts := newTestServer(t, "")

	owner, roomID, _ := createRoom(t, ts, "Alice", true)

	joiner := dialWS(t, ts)
	sendFrame(t, joiner, ClientMessage{
		Type:   MessageTypeJoin,
		Name:   "Bob",
		RoomID: "  " + strings.ToLower(roomID) + " ",
	})

	welcome := readFrame(t, joiner)
	require.Equal(t, MessageTypeWelcome, welcome["type"])
	room := welcome["room"].(map[string]any)
	assert.Equal(t, roomID, room["id"])
	assert.Len(t, room["players"], 2)

	joined := readFrameOfType(t, owner, MessageTypePlayerJoined)
	player := joined["player"].(map[string]any)
	assert.Equal(t, "Bob", player["name"])
}

func TestJoinErrors(t *testing.T) {
	_, ts := newTestServer(t, "")

	t.Run("unknown code", func(t *testing.T) {
		conn := dialWS(t, ts)
		sendFrame(t, conn, ClientMessage{Type: MessageTypeJoin, Name: "Bob", RoomID: "QQQQ"})
		frame := readFrame(t, conn)
		assert.Equal(t, MessageTypeError, frame["type"])
		assert.Equal(t, "room not found", frame["message"])
	})

	t.Run("missing code", func(t *testing.T) {
		conn := dialWS(t, ts)
		sendFrame(t, conn, ClientMessage{Type: MessageTypeJoin, Name: "Bob"})
		frame := readFrame(t, conn)
		assert.Equal(t, MessageTypeError, frame["type"])
		assert.Equal(t, "missing room code", frame["message"])
	})
}

func TestJoinFullRoom(t *testing.T) {
	_, ts := newTestServer(t, "")

	_, roomID, _ := createRoom(t, ts, "Owner", true)
	for i := 0; i < 7; i++ {
		conn := dialWS(t, ts)
		sendFrame(t, conn, ClientMessage{Type: MessageTypeJoin, Name: "Filler", RoomID: roomID})
		welcome := readFrame(t, conn)
		require.Equal(t, MessageTypeWelcome, welcome["type"])
	}

	late := dialWS(t, ts)
	sendFrame(t, late, ClientMessage{Type: MessageTypeJoin, Name: "Late", RoomID: roomID})
	frame := readFrame(t, late)
	assert.Equal(t, MessageTypeError, frame["type"])
	assert.Equal(t, "room full", frame["message"])
}

func TestJoinStartedRoom(t *testing.T) {
	_, ts := newTestServer(t, "")

	owner, roomID, _ := createRoom(t, ts, "Alice", true)

	second := dialWS(t, ts)
	sendFrame(t, second, ClientMessage{Type: MessageTypeJoin, Name: "Bob", RoomID: roomID})
	require.Equal(t, MessageTypeWelcome, readFrame(t, second)["type"])

	sendFrame(t, owner, ClientMessage{Type: MessageTypeStart})
	readFrameOfType(t, owner, MessageTypeGameStarting)

	late := dialWS(t, ts)
	sendFrame(t, late, ClientMessage{Type: MessageTypeJoin, Name: "Late", RoomID: roomID})
	frame := readFrame(t, late)
	assert.Equal(t, MessageTypeError, frame["type"])
	assert.Equal(t, "game already started", frame["message"])
}

func TestDisconnectBroadcastsPlayerLeft(t *testing.T) {
	_, ts := newTestServer(t, "")

	owner, roomID, _ := createRoom(t, ts, "Alice", true)

	second := dialWS(t, ts)
	sendFrame(t, second, ClientMessage{Type: MessageTypeJoin, Name: "Bob", RoomID: roomID})
	welcome := readFrame(t, second)
	require.Equal(t, MessageTypeWelcome, welcome["type"])
	bobID := welcome["player_id"].(string)

	readFrameOfType(t, owner, MessageTypePlayerJoined)
	second.Close()

	left := readFrameOfType(t, owner, MessageTypePlayerLeft)
	assert.Equal(t, bobID, left["player_id"])
	room := left["room"].(map[string]any)
	assert.Len(t, room["players"], 1)
}
