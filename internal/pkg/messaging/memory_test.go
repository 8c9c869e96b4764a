package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func consumeAsync(ctx context.Context, t *testing.T, m *Memory, topic string, h Handler, opts ...ConsumeOption) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- m.Consume(ctx, topic, h, opts...) }()

	// wait for registration
	require.Eventually(t, func() bool {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return len(m.subs[topic]) > 0
	}, time.Second, 5*time.Millisecond)
	return done
}

func TestMemory_PublishConsume(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Message, 1)
	done := consumeAsync(ctx, t, m, "otp.issued", func(_ context.Context, msg Message) error {
		got <- msg
		return nil
	}, WithQueueGroup("notification"), WithAutoAck(true))

	_, err := m.Publish(context.Background(), "otp.issued", OutgoingMessage{
		Body:    []byte(`{"email":"a@example.com"}`),
		Headers: []Header{{Key: "cID", Value: []byte("cid-1")}},
	})
	require.NoError(t, err)

	select {
	case msg := <-got:
		assert.JSONEq(t, `{"email":"a@example.com"}`, string(msg.Body()))
		assert.Equal(t, "otp.issued", msg.Source())
		cid, ok := HeaderValue(msg.Headers(), "cID")
		assert.True(t, ok)
		assert.Equal(t, "cid-1", cid)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestMemory_NackRedeliversOnce(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 4)
	consumeAsync(ctx, t, m, "t", func(context.Context, Message) error {
		calls <- struct{}{}
		return errors.New("fail")
	}, WithAutoAck(true))

	_, err := m.Publish(context.Background(), "t", OutgoingMessage{Body: []byte("x")})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(calls) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, calls, 2)
}

func TestMemory_PublishWithoutSubscribers(t *testing.T) {
	m := NewMemory()
	res, err := m.Publish(context.Background(), "nobody", OutgoingMessage{Body: []byte("x")})
	require.NoError(t, err)
	assert.Zero(t, res.Offset)

	require.NoError(t, m.Close())
	_, err = m.Publish(context.Background(), "nobody", OutgoingMessage{})
	assert.Error(t, err)
}

func TestHeaderValue(t *testing.T) {
	headers := []Header{{Key: "a", Value: []byte("1")}, {Key: "a", Value: []byte("2")}}

	v, ok := HeaderValue(headers, "a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok = HeaderValue(headers, "b")
	assert.False(t, ok)
}

func TestNewFromDriver(t *testing.T) {
	m, err := NewFromDriver("memory", FactoryOptions{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, m)

	_, err = NewFromDriver("pigeon", FactoryOptions{})
	assert.ErrorIs(t, err, ErrUnknownDriver)

	_, err = NewFromDriver("kafka", FactoryOptions{})
	assert.ErrorIs(t, err, ErrKafkaBrokersRequired)

	_, err = NewFromDriver("nats", FactoryOptions{})
	assert.ErrorIs(t, err, ErrNATSURLRequired)
}
