package messaging

import (
	"context"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
)

// Memory is an in-process broker. Each published message is delivered to
// one consumer of every distinct group subscribed to the topic. Nacked
// messages are redelivered once more. Nothing survives a restart.
type Memory struct {
	mu     sync.RWMutex
	subs   map[string][]*memorySub
	seq    atomic.Int64
	closed bool
}

type memorySub struct {
	group string
	ch    chan *memoryMessage
}

// NewMemory returns an empty in-process broker.
func NewMemory() *Memory {
	return &Memory{subs: map[string][]*memorySub{}}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Publish enqueues msg for every group subscribed to destination. It blocks
// while a group's buffer is full, bounded by ctx.
func (m *Memory) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return PublishResult{}, io.ErrClosedPipe
	}
	groups := lo.UniqBy(m.subs[destination], func(s *memorySub) string { return s.group })
	m.mu.RUnlock()

	now := time.Now()
	id := strconv.FormatInt(m.seq.Add(1), 10)
	for _, sub := range groups {
		mm := &memoryMessage{
			id:        id,
			topic:     destination,
			body:      msg.Body,
			key:       msg.Key,
			headers:   msg.Headers,
			at:        now,
			redeliver: sub.ch,
		}
		select {
		case sub.ch <- mm:
		case <-ctx.Done():
			return PublishResult{}, ctx.Err()
		}
	}

	return PublishResult{Topic: destination, Offset: int64(len(groups)), Timestamp: now}, nil
}

// Consume registers a consumer. Consumers sharing a group (queue group,
// channel or consumer group option) share one queue.
func (m *Memory) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if handler == nil {
		return ErrHandlerRequired
	}
	co := newConsumeOptions(opts...)
	group := lo.CoalesceOrEmpty(co.group, co.queueGroup, co.channel)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return io.ErrClosedPipe
	}
	sub, found := lo.Find(m.subs[source], func(s *memorySub) bool { return s.group == group })
	if !found {
		sub = &memorySub{group: group, ch: make(chan *memoryMessage, 64)}
	}
	m.subs[source] = append(m.subs[source], sub)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for {
				select {
				case msg := <-sub.ch:
					dispatch(ctx, DriverMemory, handler, msg, co.autoAck)
				case <-ctx.Done():
					return
				}
			}
		})
	}
	wg.Wait()

	m.mu.Lock()
	if idx := lo.IndexOf(m.subs[source], sub); idx >= 0 {
		m.subs[source] = append(m.subs[source][:idx], m.subs[source][idx+1:]...)
	}
	m.mu.Unlock()

	return ctx.Err()
}

type memoryMessage struct {
	id        string
	topic     string
	body      []byte
	key       []byte
	headers   []Header
	at        time.Time
	redeliver chan *memoryMessage
	attempts  int
	responded atomic.Bool
}

func (m *memoryMessage) Body() []byte         { return m.body }
func (m *memoryMessage) Key() []byte          { return m.key }
func (m *memoryMessage) Headers() []Header    { return m.headers }
func (m *memoryMessage) ID() string           { return m.id }
func (m *memoryMessage) Source() string       { return m.topic }
func (m *memoryMessage) Timestamp() time.Time { return m.at }

func (m *memoryMessage) Ack(context.Context) error {
	m.responded.Store(true)
	return nil
}

func (m *memoryMessage) Nack(ctx context.Context) error {
	if m.responded.Swap(true) || m.attempts > 0 {
		return nil
	}

	again := &memoryMessage{
		id: m.id, topic: m.topic, body: m.body, key: m.key, headers: m.headers,
		at: m.at, redeliver: m.redeliver, attempts: m.attempts + 1,
	}
	select {
	case m.redeliver <- again:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
