package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

func TestStore_CompareAndSwap(t *testing.T) {
	ctx := t.Context()
	s := New()

	_, err := s.GetRecord(ctx, "a@b.co")
	require.ErrorIs(t, err, goerror.ErrNotFound)

	saved, err := s.SaveRecord(ctx, entity.Record{ID: 1, Email: "a@b.co", CodeHash: "h"}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)

	_, err = s.SaveRecord(ctx, entity.Record{Email: "a@b.co"}, 0)
	assert.ErrorIs(t, err, goerror.ErrConflict, "insert over an existing record")

	saved.Attempts = 1
	saved, err = s.SaveRecord(ctx, saved, saved.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)

	_, err = s.SaveRecord(ctx, saved, 1)
	assert.ErrorIs(t, err, goerror.ErrConflict, "stale version")

	assert.ErrorIs(t, s.DeleteRecord(ctx, "a@b.co", 1), goerror.ErrConflict)
	require.NoError(t, s.DeleteRecord(ctx, "a@b.co", 2))
	assert.ErrorIs(t, s.DeleteRecord(ctx, "a@b.co", 2), goerror.ErrConflict)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	ctx := t.Context()
	s := New()
	until := time.Now().Add(time.Minute)
	_, err := s.SaveRecord(ctx, entity.Record{Email: "a@b.co", BlockedUntil: &until}, 0)
	require.NoError(t, err)

	got, err := s.GetRecord(ctx, "a@b.co")
	require.NoError(t, err)
	*got.BlockedUntil = time.Time{}

	again, err := s.GetRecord(ctx, "a@b.co")
	require.NoError(t, err)
	assert.Equal(t, until, *again.BlockedUntil)
}

func TestStore_DeleteExpiredKeepsActiveBlocks(t *testing.T) {
	ctx := t.Context()
	s := New()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	blocked := now.Add(time.Minute)

	for _, rec := range []entity.Record{
		{Email: "expired@x.co", ExpiresAt: now.Add(-time.Second)},
		{Email: "live@x.co", ExpiresAt: now.Add(time.Minute)},
		{Email: "blocked@x.co", ExpiresAt: now.Add(-time.Second), BlockedUntil: &blocked},
	} {
		_, err := s.SaveRecord(ctx, rec, 0)
		require.NoError(t, err)
	}

	n, err := s.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetRecord(ctx, "blocked@x.co")
	assert.NoError(t, err)
	_, err = s.GetRecord(ctx, "expired@x.co")
	assert.ErrorIs(t, err, goerror.ErrNotFound)
}

func TestStore_ConcurrentIncrementsWithoutLostUpdates(t *testing.T) {
	ctx := t.Context()
	s := New()
	_, err := s.SaveRecord(ctx, entity.Record{Email: "a@b.co"}, 0)
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for {
				cur, err := s.GetRecord(ctx, "a@b.co")
				if err != nil {
					return
				}
				next := *cur
				next.Attempts++
				if _, err := s.SaveRecord(ctx, next, cur.Version); err == nil {
					return
				}
			}
		})
	}
	wg.Wait()

	got, err := s.GetRecord(ctx, "a@b.co")
	require.NoError(t, err)
	assert.Equal(t, workers, got.Attempts)
}

func TestStore_ProfilesAreSeparateRecords(t *testing.T) {
	ctx := t.Context()
	s := New()

	_, err := s.SaveRecord(ctx, entity.Record{Email: "a@b.co", CodeHash: "plain"}, 0)
	require.NoError(t, err)
	_, err = s.SaveRecord(ctx, entity.Record{Email: "a@b.co", Profile: entity.ProfileMerchant, CodeHash: "merchant"}, 0)
	require.NoError(t, err)

	got, err := s.GetRecord(ctx, "a@b.co|merchant")
	require.NoError(t, err)
	assert.Equal(t, "merchant", got.CodeHash)
	assert.Equal(t, entity.ProfileMerchant, got.Profile)

	require.NoError(t, s.DeleteRecord(ctx, "a@b.co|merchant", 1))
	got, err = s.GetRecord(ctx, "a@b.co")
	require.NoError(t, err)
	assert.Equal(t, "plain", got.CodeHash)
}

func TestStore_ExpiredRecordStaysReadable(t *testing.T) {
	ctx := t.Context()
	s := New()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := s.SaveRecord(ctx, entity.Record{Email: "a@b.co", CodeHash: "h", ExpiresAt: now.Add(5 * time.Minute)}, 0)
	require.NoError(t, err)

	later := now.Add(6 * time.Minute)
	got, err := s.GetRecord(ctx, "a@b.co")
	require.NoError(t, err)

	d := entity.DefaultPolicy().Validate(got, func(string) bool { return true }, later)
	assert.Equal(t, entity.OutcomeExpired, d.Outcome)
	assert.Equal(t, entity.ActionDelete, d.Action)
}
