package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type message struct{ channel, payload string }

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// subscribe starts a subscriber that forwards messages to the returned channel.
func subscribe(t *testing.T, ctx context.Context, n *Notifier) <-chan message {
	t.Helper()
	out := make(chan message, 8)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(channel, payload string) {
		out <- message{channel, payload}
	}))
	return out
}

func next(t *testing.T, ch <-chan message) message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return message{}
	}
}

func TestNotifier_WithoutRedisIsNoop(t *testing.T) {
	for _, n := range []*Notifier{nil, NewNotifier(nil)} {
		assert.NoError(t, n.PublishUser(context.Background(), 1, "{}"))
		assert.NoError(t, n.PublishEvent(context.Background(), 1, EventNewFollower, nil))
		assert.NoError(t, n.StartPatternSubscriber(context.Background(), func(string, string) {}))
	}
}

func TestUserChannelRoundTrip(t *testing.T) {
	for _, id := range []uint{1, 42, 100000} {
		got, ok := ParseUserChannel(UserChannel(id))
		assert.True(t, ok)
		assert.Equal(t, id, got)
	}
	assert.Equal(t, "notifications:user:7", UserChannel(7))

	for _, bad := range []string{"notifications:user:", "notifications:user:abc", "notifications:user:0", "projects:1"} {
		_, ok := ParseUserChannel(bad)
		assert.False(t, ok, bad)
	}
}

func TestNotifier_PublishEventEnvelope(t *testing.T) {
	n := NewNotifier(newTestRedis(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs := subscribe(t, ctx, n)

	actor := Actor{ID: 3, Username: "tiler"}
	require.NoError(t, n.PublishEvent(context.Background(), 7, EventCommentCreated, map[string]interface{}{
		"post_id": 11,
		"actor":   actor,
	}))

	m := next(t, msgs)
	assert.Equal(t, "notifications:user:7", m.channel)

	var event struct {
		Type    string `json:"type"`
		Payload struct {
			PostID uint  `json:"post_id"`
			Actor  Actor `json:"actor"`
		} `json:"payload"`
		CreatedAt time.Time `json:"created_at"`
	}
	require.NoError(t, json.Unmarshal([]byte(m.payload), &event))
	assert.Equal(t, EventCommentCreated, event.Type)
	assert.Equal(t, uint(11), event.Payload.PostID)
	assert.Equal(t, actor, event.Payload.Actor)
	assert.WithinDuration(t, time.Now(), event.CreatedAt, 5*time.Second)
}

func TestNotifier_SubscriberStopsOnCancel(t *testing.T) {
	n := NewNotifier(newTestRedis(t))
	ctx, cancel := context.WithCancel(context.Background())
	msgs := subscribe(t, ctx, n)

	require.NoError(t, n.PublishUser(context.Background(), 1, "before"))
	assert.Equal(t, "before", next(t, msgs).payload)

	cancel()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, n.PublishUser(context.Background(), 1, "after"))

	assert.Never(t, func() bool { return len(msgs) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestNotifier_SubscriberSurvivesPanic(t *testing.T) {
	n := NewNotifier(newTestRedis(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan string, 2)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(_, payload string) {
		if payload == "bad" {
			panic("handler failure")
		}
		out <- payload
	}))

	require.NoError(t, n.PublishUser(context.Background(), 2, "bad"))
	require.NoError(t, n.PublishUser(context.Background(), 2, "good"))

	select {
	case p := <-out:
		assert.Equal(t, "good", p)
	case <-time.After(time.Second):
		t.Fatal("subscriber stopped after a panic")
	}
}
