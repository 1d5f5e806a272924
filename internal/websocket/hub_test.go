package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/matchmaker/internal/matchmaking"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

// connect регистрирует клиента без сетевого соединения и ждет приветствия.
func connect(t *testing.T, hub *Hub, playerID string) *Client {
	t.Helper()
	client := NewClient(hub, nil, playerID)
	require.True(t, hub.Register(client))

	msg := receive(t, client)
	require.Equal(t, TypeConnect, msg.Type)
	return client
}

func receive(t *testing.T, client *Client) Message {
	t.Helper()
	select {
	case data, ok := <-client.Send:
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatalf("no message for %s", client.PlayerID)
		return Message{}
	}
}

func sampleEvent() matchmaking.MatchEvent {
	return matchmaking.MatchEvent{
		Room:      "B",
		Members:   []string{"p2"},
		Target:    "A",
		TargetIDs: []string{"p1", "p3"},
		MatchedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestHub_MatchFoundReachesBothSides(t *testing.T) {
	hub := startHub(t)
	p1 := connect(t, hub, "p1")
	p2 := connect(t, hub, "p2")
	outsider := connect(t, hub, "p9")

	require.NoError(t, hub.MatchFound(context.Background(), sampleEvent()))

	msg := receive(t, p1)
	assert.Equal(t, TypeMatchFound, msg.Type)
	var payload MatchPayload
	require.NoError(t, msg.Decode(&payload))
	assert.Equal(t, "A", payload.Room)
	assert.Equal(t, "B", payload.TargetRoom)
	assert.Equal(t, []string{"p2"}, payload.Opponents)

	msg = receive(t, p2)
	require.NoError(t, msg.Decode(&payload))
	assert.Equal(t, "B", payload.Room)
	assert.Equal(t, "A", payload.TargetRoom)

	assert.Empty(t, outsider.Send)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := startHub(t)
	client := connect(t, hub, "p1")
	assert.Equal(t, 1, hub.OnlinePlayers())

	hub.Unregister(client)

	select {
	case _, ok := <-client.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
	assert.Equal(t, 0, hub.OnlinePlayers())
	assert.ErrorIs(t, client.SendMessage(TypePong, nil), ErrClientGone)
}

func TestHub_RegisterAfterStop(t *testing.T) {
	hub := NewHub(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	assert.False(t, hub.Register(NewClient(hub, nil, "p1")))
}

func TestRelay_DeliversPublishedEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	hub := startHub(t)
	p1 := connect(t, hub, "p1")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	relay := NewRelay(rdb, "", hub, discardLogger())
	require.NoError(t, relay.Start(ctx))
	require.NoError(t, relay.MatchFound(ctx, sampleEvent()))

	msg := receive(t, p1)
	assert.Equal(t, TypeMatchFound, msg.Type)
}

func TestRelay_FallsBackToLocalDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()

	hub := startHub(t)
	p2 := connect(t, hub, "p2")

	relay := NewRelay(rdb, "", hub, discardLogger())
	require.NoError(t, relay.MatchFound(context.Background(), sampleEvent()))

	msg := receive(t, p2)
	assert.Equal(t, TypeMatchFound, msg.Type)
}
