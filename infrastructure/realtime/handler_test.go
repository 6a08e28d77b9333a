package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vibehive/auth"
	"vibehive/domain/event"
	"vibehive/errors"
	"vibehive/infrastructure/storage"
	"vibehive/projection"
	"vibehive/runtime"
	"vibehive/services"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server  *httptest.Server
	channel *runtime.Channel
}

func newFixture(t *testing.T, secret string) fixture {
	log := slog.Default()
	store, err := storage.Open(context.Background(), storage.DriverBadger, t.TempDir(), log, 50)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	channel := runtime.NewChannel(log, runtime.NewRegistry(), time.Second)
	coordinator := runtime.NewCoordinator(log, store, channel, 200, 1)
	service := services.NewChatService(log, store, coordinator, channel, projection.NewConversationIndex(log, store, 2), 50)
	server := httptest.NewServer(NewHandler(log, service, auth.NewVerifier(secret), 5*time.Second, 16))
	t.Cleanup(server.Close)
	return fixture{server: server, channel: channel}
}

func (f fixture) dial(t *testing.T) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func write(t *testing.T, ws *websocket.Conn, frame map[string]string) {
	require.NoError(t, ws.WriteJSON(frame))
}

func read(t *testing.T, ws *websocket.Conn) OutboundFrame {
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame OutboundFrame
	require.NoError(t, ws.ReadJSON(&frame))
	return frame
}

func join(t *testing.T, ws *websocket.Conn, room, token string) {
	write(t, ws, map[string]string{"type": "join_room", "room": room, "token": token})
	frame := read(t, ws)
	require.Equal(t, "joined", frame.Type)
}

func TestHandler_Send_Message_Between_Two_Sockets(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, "")
	alice, bob := f.dial(t), f.dial(t)

	// Given both joined their room
	join(t, alice, "alice", "")
	join(t, bob, "bob", "")

	// When alice sends without repeating her identity
	write(t, alice, map[string]string{"type": "send_message", "requestId": "r-1", "receiver": "bob", "content": "hello bob"})

	// Then bob receives it live
	pushed := read(t, bob)
	req.Equal(string(event.TypeMessageDelivered), pushed.Type)
	var message event.MessagePayload
	req.NoError(json.Unmarshal(pushed.Data, &message))
	req.Equal("alice", message.Sender)
	req.Equal("bob", message.Receiver)
	req.Equal("hello bob", message.Content)

	// And alice gets her own copy and the ack, with the same id
	first, second := read(t, alice), read(t, alice)
	req.ElementsMatch([]string{string(event.TypeMessageDelivered), string(event.TypeSendAcknowledged)}, []string{first.Type, second.Type})
	ackFrame := first
	if second.Type == string(event.TypeSendAcknowledged) {
		ackFrame = second
	}
	var ack event.AckPayload
	req.NoError(json.Unmarshal(ackFrame.Data, &ack))
	req.Equal("r-1", ack.RequestID)
	req.Equal(message.ID, ack.Message.ID)
}

func TestHandler_Rejects_Spoofed_Sender(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, "")
	mallory := f.dial(t)
	join(t, mallory, "mallory", "")

	write(t, mallory, map[string]string{"type": "send_message", "requestId": "r-2", "sender": "alice", "receiver": "bob", "content": "hi"})

	frame := read(t, mallory)
	req.Equal(string(event.TypeSendRejected), frame.Type)
	var rejected event.RejectPayload
	req.NoError(json.Unmarshal(frame.Data, &rejected))
	req.Equal("r-2", rejected.RequestID)
	req.Equal(errors.CodeIdentityMismatch, rejected.Code)
}

func TestHandler_Rejects_Invalid_Intent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, "")
	alice := f.dial(t)
	join(t, alice, "alice", "")

	write(t, alice, map[string]string{"type": "send_message", "requestId": "r-3", "receiver": "bob", "content": "   "})

	frame := read(t, alice)
	req.Equal(string(event.TypeSendRejected), frame.Type)
	var rejected event.RejectPayload
	req.NoError(json.Unmarshal(frame.Data, &rejected))
	req.Equal(errors.CodeValidation, rejected.Code)
}

func TestHandler_Cannot_Join_A_Second_Identity(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, "")
	alice := f.dial(t)
	join(t, alice, "alice", "")
	// Joining again with the same identity is fine
	join(t, alice, "alice", "")

	write(t, alice, map[string]string{"type": "join_room", "room": "bob"})
	frame := read(t, alice)
	req.Equal("error", frame.Type)
	req.Equal(1, f.channel.Stats().Rooms)
}

func TestHandler_Auth_Requires_Matching_Token(t *testing.T) {
	req := require.New(t)
	secret := "websocket-test-secret"
	f := newFixture(t, secret)
	ws := f.dial(t)

	// A send before join is refused when auth is on
	write(t, ws, map[string]string{"type": "send_message", "sender": "alice", "receiver": "bob", "content": "hi"})
	frame := read(t, ws)
	req.Equal(string(event.TypeSendRejected), frame.Type)

	// A token for bob can't join alice's room
	bobToken, err := auth.GenerateToken([]byte(secret), "bob", nil, time.Hour)
	req.NoError(err)
	write(t, ws, map[string]string{"type": "join_room", "room": "alice", "token": bobToken})
	frame = read(t, ws)
	req.Equal("error", frame.Type)
	var refused event.RejectPayload
	req.NoError(json.Unmarshal(frame.Data, &refused))
	req.Equal(errors.CodeIdentityMismatch, refused.Code)

	// The right token works
	aliceToken, err := auth.GenerateToken([]byte(secret), "alice", nil, time.Hour)
	req.NoError(err)
	join(t, ws, "alice", aliceToken)
}

func TestHandler_Close_Leaves_All_Rooms(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, "")
	alice := f.dial(t)
	join(t, alice, "alice", "")
	req.Equal(1, f.channel.Stats().Connections)

	// When the socket closes
	req.NoError(alice.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	_ = alice.Close()

	// Then the connection is gone from the channel
	req.Eventually(func() bool {
		return f.channel.Stats().Connections == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_Bad_Frame_Keeps_Session(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, "")
	ws := f.dial(t)

	req.NoError(ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	frame := read(t, ws)
	req.Equal("error", frame.Type)

	join(t, ws, "alice", "")
}
