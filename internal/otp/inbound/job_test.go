package inbound

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
)

func TestSweeper_Run(t *testing.T) {
	uc := &mockUsecase{}
	swept := make(chan struct{}, 8)
	uc.On("SweepExpired", mock.Anything).Return(int64(2), nil).Run(func(mock.Arguments) {
		select {
		case swept <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- NewSweeper(uc, 10*time.Millisecond).Run(ctx) }()

	select {
	case <-swept:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never ran")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestSweeper_SkipsOverlappingTick(t *testing.T) {
	uc := &mockUsecase{}
	s := NewSweeper(uc, time.Minute)
	s.running.Store(true)

	s.tick(t.Context())

	uc.AssertNotCalled(t, "SweepExpired", mock.Anything)
}

func TestSweeper_ErrorDoesNotStop(t *testing.T) {
	uc := &mockUsecase{}
	uc.On("SweepExpired", mock.Anything).Return(int64(0), errors.New("db down")).Once()

	s := NewSweeper(uc, time.Minute)
	s.tick(t.Context())

	assert.False(t, s.running.Load())
	uc.AssertExpectations(t)
}

func TestRegisterSweeperJob(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		cfg, err := config.NewViperFromBytes("yaml", []byte("modules: {otp: {sweeper: {enabled: false}}}"))
		require.NoError(t, err)

		uc := &mockUsecase{}
		routine := goroutine.NewManager(2)
		RegisterSweeperJob(t.Context(), cfg, routine, uc)
		require.NoError(t, routine.Wait())
		uc.AssertNotCalled(t, "SweepExpired", mock.Anything)
	})

	t.Run("enabled", func(t *testing.T) {
		cfg, err := config.NewViperFromBytes("yaml", []byte("modules: {otp: {sweeper: {enabled: true, interval_seconds: 1}}}"))
		require.NoError(t, err)

		uc := &mockUsecase{}
		swept := make(chan struct{}, 1)
		uc.On("SweepExpired", mock.Anything).Return(int64(0), nil).Run(func(mock.Arguments) {
			select {
			case swept <- struct{}{}:
			default:
			}
		})

		ctx, cancel := context.WithCancel(t.Context())
		routine := goroutine.NewManager(2)
		RegisterSweeperJob(ctx, cfg, routine, uc)

		select {
		case <-swept:
		case <-time.After(3 * time.Second):
			t.Fatal("sweeper job never ran")
		}
		cancel()
		require.NoError(t, routine.Wait())
	})
}
