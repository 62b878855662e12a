// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	DefaultRedisChannel = "agora.events"
	redisQueueSize      = 1000
	redisPublishTimeout = 5 * time.Second
)

var ErrRedisSubscriberClosed = errors.New("redis subscriber closed")

// redisPublisher is the part of the Redis client used by RedisSubscriber
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

// RedisSubscriber forwards events as JSON to a Redis pub/sub channel.
// Deliver only enqueues; a background goroutine does the network I/O.
type RedisSubscriber struct {
	client  redisPublisher
	logger  *slog.Logger
	queue   chan Event
	done    chan struct{}
	channel string
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
}

type RedisSubscriberConfig struct {
	Logger   *slog.Logger
	Address  string
	Password string
	Channel  string
	DB       int
}

// NewRedisSubscriber connects to Redis and starts the publishing goroutine
func NewRedisSubscriber(
	ctx context.Context,
	cfg RedisSubscriberConfig,
) (*RedisSubscriber, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return newRedisSubscriber(client, cfg.Channel, cfg.Logger), nil
}

func newRedisSubscriber(
	client redisPublisher,
	channel string,
	logger *slog.Logger,
) *RedisSubscriber {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if channel == "" {
		channel = DefaultRedisChannel
	}
	r := &RedisSubscriber{
		client:  client,
		logger:  logger.With("component", "event", "sink", "redis"),
		queue:   make(chan Event, redisQueueSize),
		done:    make(chan struct{}),
		channel: channel,
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Deliver queues the event for publishing. A full queue drops the event.
func (r *RedisSubscriber) Deliver(evt Event) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRedisSubscriberClosed
	}
	select {
	case r.queue <- evt:
	default:
		r.logger.Warn("redis queue full, dropping event", "type", evt.Type)
	}
	return nil
}

func (r *RedisSubscriber) run() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case evt := <-r.queue:
			r.publish(evt)
		}
	}
}

func (r *RedisSubscriber) publish(evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		r.logger.Error(
			"failed to encode event",
			"type", evt.Type,
			"error", err,
		)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.logger.Error(
			"failed to publish event",
			"type", evt.Type,
			"error", err,
		)
	}
}

// Close stops the publishing goroutine and closes the Redis client
func (r *RedisSubscriber) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()
	r.wg.Wait()
	if err := r.client.Close(); err != nil {
		r.logger.Debug("redis client close failed", "error", err)
	}
}
