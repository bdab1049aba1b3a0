// Package events publishes deal change notifications for realtime viewers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/metrics"
)

// Type names a change notification.
type Type string

const (
	DealCreated       Type = "deal.created"
	DealUpdated       Type = "deal.updated"
	DealStatusChanged Type = "deal.status_changed"
	MatchCreated      Type = "match.created"
	MatchUpdated      Type = "match.updated"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "dealdesk:events"

// Event is the JSON message sent to subscribers.
type Event struct {
	Type    Type      `json:"type"`
	DealID  string    `json:"deal_id"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// New builds an event stamped with the current time.
func New(t Type, dealID string, payload any) Event {
	return Event{Type: t, DealID: dealID, Payload: payload, At: time.Now().UTC()}
}

// Publisher delivers events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PublishLogged publishes ev and logs failures. Delivery is best effort.
func PublishLogged(ctx context.Context, p Publisher, ev Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		metrics.EventsPublished.WithLabelValues(string(ev.Type), "error").Inc()
		zap.L().Warn("events: publish failed",
			zap.String("type", string(ev.Type)),
			zap.String("deal_id", ev.DealID),
			zap.Error(err),
		)
		return
	}
	metrics.EventsPublished.WithLabelValues(string(ev.Type), "ok").Inc()
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// RedisPublisher publishes events on a Redis pub/sub channel.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisPublisher creates a RedisPublisher. An empty channel uses
// DefaultChannel.
func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrapf(err, "events: ping redis %s", addr)
	}
	return rdb, nil
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "events: marshal event")
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return eris.Wrapf(err, "events: publish %s", ev.Type)
	}
	return nil
}

// Channel returns the channel events are published on.
func (p *RedisPublisher) Channel() string {
	return p.channel
}
