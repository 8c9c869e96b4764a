package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/memory"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendOTP(ctx context.Context, d entity.Delivery) error {
	return m.Called(ctx, d).Error(0)
}

// seqCodes hands out a fixed sequence of codes, repeating the last one.
type seqCodes struct {
	mu    sync.Mutex
	codes []string
}

func (s *seqCodes) Generate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := s.codes[0]
	if len(s.codes) > 1 {
		s.codes = s.codes[1:]
	}
	return code, nil
}

func (s *seqCodes) Length() int { return 6 }

// flakyStore fails writes with the configured error a number of times before
// delegating to the wrapped store.
type flakyStore struct {
	repoStore
	mu       sync.Mutex
	failures int
	err      error
	getErr   error
}

func (f *flakyStore) GetRecord(ctx context.Context, key string) (*entity.Record, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.repoStore.GetRecord(ctx, key)
}

func (f *flakyStore) SaveRecord(ctx context.Context, rec entity.Record, v int64) (entity.Record, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return entity.Record{}, f.err
	}
	f.mu.Unlock()
	return f.repoStore.SaveRecord(ctx, rec, v)
}

// memIdempotency mimics the redis state tracker in memory.
type memIdempotency struct {
	mu    sync.Mutex
	state map[string]idempotency.State
}

func (m *memIdempotency) Acquire(context.Context, string, time.Duration) (idempotency.State, error) {
	return idempotency.StateNone, nil
}
func (m *memIdempotency) MarkCompleted(context.Context, string, time.Duration) error { return nil }
func (m *memIdempotency) Release(context.Context, string) error                      { return nil }

func (m *memIdempotency) Exec(ctx context.Context, key string, fn func(context.Context) error, _ ...idempotency.Option) error {
	m.mu.Lock()
	switch m.state[key] {
	case idempotency.StateInProgress:
		m.mu.Unlock()
		return idempotency.ErrAlreadyInProgress
	case idempotency.StateCompleted:
		m.mu.Unlock()
		return idempotency.ErrAlreadyCompleted
	}
	m.state[key] = idempotency.StateInProgress
	m.mu.Unlock()

	err := fn(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		delete(m.state, key)
		return err
	}
	m.state[key] = idempotency.StateCompleted
	return nil
}

type fixture struct {
	uc       *Usecase
	store    repoStore
	notifier *mockNotifier
	clock    *clock.Manual
	codes    *seqCodes
	idemp    *memIdempotency
}

const baseConfig = `
modules:
  otp:
    ttl_seconds: 300
    block_seconds: 900
    max_attempts: 3
    cas_base_delay_ms: 1
`

func newFixture(t *testing.T, extraConfig string, wrap func(repoStore) repoStore) *fixture {
	t.Helper()

	if !strings.Contains(extraConfig, "cas_max_retries") {
		extraConfig += "    cas_max_retries: 200\n"
	}
	cfg, err := config.NewViperFromBytes("yaml", []byte(baseConfig+extraConfig))
	require.NoError(t, err)

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	snow, err := uid.NewSnowflake(1)
	require.NoError(t, err)

	var store repoStore = memory.New()
	if wrap != nil {
		store = wrap(store)
	}

	f := &fixture{
		store:    store,
		notifier: &mockNotifier{},
		clock:    clock.NewManual(start),
		codes:    &seqCodes{codes: []string{"483920"}},
		idemp:    &memIdempotency{state: map[string]idempotency.State{}},
	}

	f.uc = New(Dependency{
		RepoStore:    store,
		RepoNotifier: f.notifier,
		Idempotency:  f.idemp,
		Codes:        f.codes,
		Hash:         hash.NewHMACSHA256("test-secret"),
		Validator:    v,
		Config:       cfg,
		UID:          snow,
		Clock:        f.clock,
		Instrument:   instrument.NewNoop(),
	})

	return f
}

func (f *fixture) expectSend() {
	f.notifier.On("SendOTP", mock.Anything, mock.AnythingOfType("entity.Delivery")).Return(nil)
}

func (f *fixture) record(t *testing.T, email string) *entity.Record {
	t.Helper()
	rec, err := f.store.GetRecord(t.Context(), email)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil
	}
	require.NoError(t, err)
	return rec
}

func requireCode(t *testing.T, err error, code goerror.Code) *goerror.Error {
	t.Helper()
	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, code, gerr.Code(), gerr.String())
	return gerr
}
