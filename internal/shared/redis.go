package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes every key and the change channel.
const DefaultNamespace = "ordersync"

// Redis is a Store backed by Redis. Values live under "<ns>:<key>"; each
// write is published on "<ns>:changes" in the same MULTI/EXEC block.
type Redis struct {
	client    *redis.Client
	namespace string
	origin    string
	logger    *slog.Logger
}

// changeMessage is the pub/sub payload. Deleted alone marks a delete; an
// empty Value is a write of zero bytes.
type changeMessage struct {
	Key     string `json:"key"`
	Origin  string `json:"origin"`
	Value   []byte `json:"value"`
	Deleted bool   `json:"deleted,omitempty"`
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithNamespace overrides DefaultNamespace.
func WithNamespace(ns string) RedisOption {
	return func(r *Redis) {
		if ns != "" {
			r.namespace = ns
		}
	}
}

// WithLogger sets the logger used for dropped notifications.
func WithLogger(l *slog.Logger) RedisOption {
	return func(r *Redis) {
		r.logger = l
	}
}

// NewRedis wraps client for the peer identified by origin.
func NewRedis(client *redis.Client, origin string, opts ...RedisOption) *Redis {
	r := &Redis{
		client:    client,
		namespace: DefaultNamespace,
		origin:    origin,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Origin returns the peer id.
func (r *Redis) Origin() string {
	return r.origin
}

func (r *Redis) key(k string) string {
	return r.namespace + ":" + k
}

func (r *Redis) channel() string {
	return r.namespace + ":changes"
}

// Get returns the current value of key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

// Set writes value and publishes the change atomically.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	msg, err := json.Marshal(changeMessage{Key: key, Origin: r.origin, Value: value})
	if err != nil {
		return fmt.Errorf("marshal change failed: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(key), value, 0)
		pipe.Publish(ctx, r.channel(), msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete removes key and publishes the change.
func (r *Redis) Delete(ctx context.Context, key string) error {
	msg, err := json.Marshal(changeMessage{Key: key, Origin: r.origin, Deleted: true})
	if err != nil {
		return fmt.Errorf("marshal change failed: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key(key))
		pipe.Publish(ctx, r.channel(), msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Subscribe listens on the change channel and forwards other peers' writes to h.
// It returns once the subscription is confirmed by the server.
func (r *Redis) Subscribe(ctx context.Context, h Handler) (func(), error) {
	ps := r.client.Subscribe(ctx, r.channel())
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for m := range ps.Channel() {
			var msg changeMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				r.logger.Warn("dropping malformed change message", "channel", m.Channel, "error", err)
				continue
			}
			if msg.Origin == r.origin {
				continue
			}
			c := Change{Key: msg.Key, Origin: msg.Origin, Value: msg.Value}
			switch {
			case msg.Deleted:
				c.Value = nil
			case c.Value == nil:
				c.Value = []byte{}
			}
			h(c)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ps.Close()
			wg.Wait()
		})
	}, nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
