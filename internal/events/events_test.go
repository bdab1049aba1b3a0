package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisPublisher_Publish(t *testing.T) {
	_, rdb := setupRedis(t)
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, "deals")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPublisher(rdb, "deals")
	require.NoError(t, pub.Publish(ctx, New(DealStatusChanged, "deal-1", map[string]string{"status": "funded"})))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "deals", msg.Channel)

	var got struct {
		Type    Type              `json:"type"`
		DealID  string            `json:"deal_id"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, DealStatusChanged, got.Type)
	assert.Equal(t, "deal-1", got.DealID)
	assert.Equal(t, "funded", got.Payload["status"])
}

func TestNewRedisPublisher_DefaultChannel(t *testing.T) {
	_, rdb := setupRedis(t)
	assert.Equal(t, DefaultChannel, NewRedisPublisher(rdb, "").Channel())
}

func TestRedisPublisher_ClosedServer(t *testing.T) {
	mr, rdb := setupRedis(t)
	mr.Close()

	err := NewRedisPublisher(rdb, "deals").Publish(context.Background(), New(DealCreated, "d", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "events: publish deal.created")
}

func TestDial(t *testing.T) {
	mr, _ := setupRedis(t)

	rdb, err := Dial(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	assert.NoError(t, rdb.Close())
}

func TestDial_Unreachable(t *testing.T) {
	_, err := Dial(context.Background(), "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, Event) error {
	f.calls++
	return assert.AnError
}

func TestPublishLogged_SwallowsErrors(t *testing.T) {
	p := &failingPublisher{}
	PublishLogged(context.Background(), p, New(DealUpdated, "d", nil))
	assert.Equal(t, 1, p.calls)

	PublishLogged(context.Background(), nil, New(DealUpdated, "d", nil))
	PublishLogged(context.Background(), Nop{}, New(DealUpdated, "d", nil))
}
