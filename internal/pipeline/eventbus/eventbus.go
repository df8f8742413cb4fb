// Package eventbus implements the pipeline's Event Bus (C2): an
// in-process publish/subscribe channel per job with last-event replay
// for late subscribers, non-blocking publish, and slow-consumer
// detection. A Redis-backed variant is provided for cross-process
// delivery, grounded on the same publish/subscribe shape.
package eventbus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/yungbote/novelvideo/internal/pipeline/domain"
	"github.com/yungbote/novelvideo/internal/platform/logger"
)

// Bus is the event bus's public contract. Publish never blocks the
// publisher on a slow subscriber; Subscribe returns a channel that
// immediately receives the last published event (if any) before any
// new ones, so a client that attaches after the job started still
// sees current progress.
type Bus interface {
	Publish(ctx context.Context, evt domain.Event) error
	Subscribe(jobID uuid.UUID) (ch <-chan domain.Event, cancel func())
	Close()
}

const subscriberBuffer = 16

type subscriber struct {
	ch chan domain.Event
}

type jobTopic struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	last        *domain.Event
	seq         uint64
}

// MemoryBus is the default in-process Bus implementation.
type MemoryBus struct {
	mu     sync.Mutex
	topics map[uuid.UUID]*jobTopic
	log    *logger.Logger
}

func NewMemoryBus(log *logger.Logger) *MemoryBus {
	return &MemoryBus{topics: make(map[uuid.UUID]*jobTopic), log: log}
}

func (b *MemoryBus) topicFor(jobID uuid.UUID) *jobTopic {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[jobID]
	if !ok {
		t = &jobTopic{subscribers: make(map[*subscriber]struct{})}
		b.topics[jobID] = t
	}
	return t
}

// Publish assigns the next sequence number for the job and fans the
// event out to every current subscriber without blocking. When a
// subscriber's buffer is full, this one event is discarded for that
// subscriber only and a warning is logged; the subscription itself stays
// open and the subscriber receives no signal that it fell behind.
func (b *MemoryBus) Publish(ctx context.Context, evt domain.Event) error {
	t := b.topicFor(evt.JobID)
	t.mu.Lock()
	t.seq++
	evt.Sequence = t.seq
	t.last = &evt
	subs := make([]*subscriber, 0, len(t.subscribers))
	for s := range t.subscribers {
		subs = append(subs, s)
	}
	t.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- evt:
		default:
			if b.log != nil {
				b.log.Warn("eventbus dropping event for slow subscriber",
					"job_id", evt.JobID.String(), "event_type", string(evt.Type))
			}
		}
	}
	return nil
}

// Subscribe registers a new subscriber for jobID and, if a last event
// exists, delivers it first so the caller can render current state
// immediately. cancel must be called to release the subscription.
func (b *MemoryBus) Subscribe(jobID uuid.UUID) (<-chan domain.Event, func()) {
	t := b.topicFor(jobID)
	s := &subscriber{ch: make(chan domain.Event, subscriberBuffer)}

	t.mu.Lock()
	t.subscribers[s] = struct{}{}
	last := t.last
	t.mu.Unlock()

	if last != nil {
		select {
		case s.ch <- *last:
		default:
		}
	}

	cancel := func() {
		t.mu.Lock()
		delete(t.subscribers, s)
		t.mu.Unlock()
		close(s.ch)
	}
	return s.ch, cancel
}

// Close releases every topic. Subscribers are not individually closed;
// callers are expected to have cancelled their subscriptions as their
// jobs completed.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = make(map[uuid.UUID]*jobTopic)
}

// RedisBus forwards events through a Redis pub/sub channel so multiple
// pipeline processes can share one job's progress stream. It wraps a
// MemoryBus locally so in-process subscribers behave identically
// whether or not Redis is configured.
type RedisBus struct {
	local   *MemoryBus
	rdb     *redis.Client
	channel string
	log     *logger.Logger

	cancelForward context.CancelFunc
}

func NewRedisBus(rdb *redis.Client, channel string, log *logger.Logger) *RedisBus {
	return &RedisBus{
		local:   NewMemoryBus(log),
		rdb:     rdb,
		channel: channel,
		log:     log,
	}
}

func (b *RedisBus) Publish(ctx context.Context, evt domain.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		if b.log != nil {
			b.log.Warn("redis eventbus publish failed", "error", err.Error())
		}
		return err
	}
	return nil
}

func (b *RedisBus) Subscribe(jobID uuid.UUID) (<-chan domain.Event, func()) {
	return b.local.Subscribe(jobID)
}

func (b *RedisBus) Close() {
	if b.cancelForward != nil {
		b.cancelForward()
	}
	b.local.Close()
}

// StartForwarder subscribes to the Redis channel and republishes every
// message into the local in-process bus, so Subscribe's replay and
// fan-out semantics are identical regardless of which process
// published the original event.
func (b *RedisBus) StartForwarder(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	b.cancelForward = cancel
	sub := b.rdb.Subscribe(ctx, b.channel)

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt domain.Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					if b.log != nil {
						b.log.Warn("redis eventbus bad payload", "error", err.Error())
					}
					continue
				}
				_ = b.local.Publish(ctx, evt)
			}
		}
	}()
	return nil
}
