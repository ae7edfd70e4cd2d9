// Package relay fans task events out across server instances through Redis
// pub/sub, so a subscription on one instance sees mutations made on another.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"taskhub/internal/events"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	publishTimeout = 2 * time.Second
	outboxSize     = 256
)

// envelope is the JSON carried on the Redis channel.
type envelope struct {
	Origin  string          `json:"origin"`
	Kind    events.Kind     `json:"kind"`
	TaskID  uuid.UUID       `json:"taskId"`
	UserID  string          `json:"userId,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Relay is an events.Sink. Local events reach the local sink directly and
// are queued on the outbox, which Forward publishes for the other
// instances; events received from Redis reach the local sink only.
type Relay struct {
	client  *redis.Client
	channel string
	origin  string
	local   events.Sink
	outbox  chan []byte
	dropped atomic.Uint64
}

var _ events.Sink = (*Relay)(nil)

func New(client *redis.Client, channel string, local events.Sink) *Relay {
	return newRelay(client, channel, local, outboxSize)
}

func newRelay(client *redis.Client, channel string, local events.Sink, size int) *Relay {
	return &Relay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		local:   local,
		outbox:  make(chan []byte, size),
	}
}

// Connect dials Redis and checks the connection.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Printf("[relay] Connected to Redis at %s", addr)
	return client, nil
}

// Deliver never waits on Redis: a full outbox drops the remote copy.
func (r *Relay) Deliver(e events.Event) {
	r.local.Deliver(e)

	msg, err := r.encode(e)
	if err != nil {
		log.Printf("[relay] ❌ Failed to encode %s: %v", e.Kind, err)
		return
	}

	select {
	case r.outbox <- msg:
	default:
		r.dropped.Add(1)
		log.Printf("[relay] ⚠️  Outbox full, dropped %s for task %s", e.Kind, e.TaskID)
	}
}

// Forward publishes queued events until CloseOutbox is called and the
// outbox is drained.
func (r *Relay) Forward() {
	for msg := range r.outbox {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
			log.Printf("[relay] ⚠️  Failed to publish: %v", err)
		}
		cancel()
	}
}

// CloseOutbox ends Forward once the pending events are published. Deliver
// must not be called afterwards.
func (r *Relay) CloseOutbox() {
	close(r.outbox)
}

func (r *Relay) Dropped() uint64 {
	return r.dropped.Load()
}

// Run forwards events published by other instances until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	log.Printf("[relay] Subscribed to %s", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Println("[relay] Stopped")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *Relay) handle(raw string) {
	e, origin, err := decode(raw)
	if err != nil {
		log.Printf("[relay] ⚠️  Ignoring malformed message: %v", err)
		return
	}
	if origin == r.origin {
		return
	}
	r.local.Deliver(e)
}

func (r *Relay) encode(e events.Event) ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		Origin:  r.origin,
		Kind:    e.Kind,
		TaskID:  e.TaskID,
		UserID:  e.UserID,
		Payload: payload,
	})
}

func decode(raw string) (events.Event, string, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return events.Event{}, "", err
	}
	if !env.Kind.IsTaskKind() {
		return events.Event{}, "", fmt.Errorf("unknown event kind %q", env.Kind)
	}
	return events.Event{
		Kind:    env.Kind,
		TaskID:  env.TaskID,
		UserID:  env.UserID,
		Payload: env.Payload,
	}, env.Origin, nil
}
