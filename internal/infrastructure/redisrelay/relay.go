// Package redisrelay fans real-time pushes out to every API instance through
// Redis Pub/Sub, so a user connected to instance A receives events raised on
// instance B.
package redisrelay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lendi-api/internal/pkg/id"
	"github.com/redis/go-redis/v9"
)

const channel = "lendi:realtime"

// envelope is the wire format on the channel. UserID is empty for broadcasts.
type envelope struct {
	Origin  string          `json:"origin"`
	UserID  string          `json:"user_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// DeliverFunc writes a relayed message to local connections.
type DeliverFunc func(userID string, msg []byte) bool

type Relay struct {
	client     *redis.Client
	instanceID string
	log        *slog.Logger
}

// NewClient parses a redis:// URL and returns a connected client.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func New(client *redis.Client, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{client: client, instanceID: id.New(), log: log}
}

func (r *Relay) Publish(ctx context.Context, userID string, msg []byte) error {
	data, err := json.Marshal(envelope{Origin: r.instanceID, UserID: userID, Payload: msg})
	if err != nil {
		return fmt.Errorf("marshal relay envelope: %w", err)
	}
	if err := r.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish relay envelope: %w", err)
	}
	return nil
}

// Run delivers messages published by other instances until ctx is cancelled.
// Messages this instance published itself are skipped because they were
// already delivered locally.
func (r *Relay) Run(ctx context.Context, deliver DeliverFunc) error {
	sub := r.client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	r.log.Info("realtime relay subscribed", "channel", channel, "instance", r.instanceID)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Payload, deliver)
		}
	}
}

func (r *Relay) handle(raw string, deliver DeliverFunc) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		r.log.Warn("malformed relay envelope", "err", err)
		return
	}
	if env.Origin == r.instanceID {
		return
	}
	deliver(env.UserID, env.Payload)
}
