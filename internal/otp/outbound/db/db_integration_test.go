package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
)

func newPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:17-alpine",
		tcpostgres.WithDatabase("otpgate"),
		tcpostgres.WithUsername("otpgate"),
		tcpostgres.WithPassword("otpgate"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../../../migrations/0001_otp_records.up.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)

	return pool
}

func TestDB_Postgres(t *testing.T) {
	store := NewDB(newPostgres(t), instrument.NewNoop())
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)

	rec := entity.Record{
		ID:        1,
		Email:     "alice@example.com",
		CodeHash:  "hash",
		ExpiresAt: base.Add(5 * time.Minute),
		IssuedAt:  base,
	}

	saved, err := store.SaveRecord(ctx, rec, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)

	_, err = store.SaveRecord(ctx, rec, 0)
	assert.ErrorIs(t, err, goerror.ErrConflict)

	until := base.Add(15 * time.Minute)
	saved.Attempts = 3
	saved.BlockedUntil = &until
	saved, err = store.SaveRecord(ctx, saved, saved.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)

	_, err = store.SaveRecord(ctx, saved, 1)
	assert.ErrorIs(t, err, goerror.ErrConflict)

	got, err := store.GetRecord(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Attempts)
	require.NotNil(t, got.BlockedUntil)
	assert.True(t, until.Equal(*got.BlockedUntil))

	// expired but still locked: kept
	removed, err := store.DeleteExpired(ctx, base.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = store.DeleteExpired(ctx, base.Add(16*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = store.GetRecord(ctx, "alice@example.com")
	assert.ErrorIs(t, err, goerror.ErrNotFound)
	assert.ErrorIs(t, store.DeleteRecord(ctx, "alice@example.com", 2), goerror.ErrConflict)
}

func TestDB_PostgresExpiredAndScoped(t *testing.T) {
	store := NewDB(newPostgres(t), instrument.NewNoop())
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err := store.SaveRecord(ctx, entity.Record{
		ID:        1,
		Email:     "late@example.com",
		CodeHash:  "hash",
		ExpiresAt: now.Add(-time.Minute),
		IssuedAt:  now.Add(-6 * time.Minute),
	}, 0)
	require.NoError(t, err)

	got, err := store.GetRecord(ctx, "late@example.com")
	require.NoError(t, err)
	d := entity.DefaultPolicy().Validate(got, func(string) bool { return true }, now)
	assert.Equal(t, entity.OutcomeExpired, d.Outcome)
	require.NoError(t, store.DeleteRecord(ctx, "late@example.com", got.Version))

	for i, p := range []entity.Profile{entity.ProfileNone, entity.ProfileMerchant} {
		_, err = store.SaveRecord(ctx, entity.Record{
			ID:        int64(10 + i),
			Email:     "shop@example.com",
			Profile:   p,
			CodeHash:  "hash-" + string(p),
			ExpiresAt: now.Add(5 * time.Minute),
			IssuedAt:  now,
		}, 0)
		require.NoError(t, err)
	}

	got, err = store.GetRecord(ctx, "shop@example.com|merchant")
	require.NoError(t, err)
	assert.Equal(t, entity.ProfileMerchant, got.Profile)
	assert.Equal(t, "hash-merchant", got.CodeHash)

	got, err = store.GetRecord(ctx, "shop@example.com")
	require.NoError(t, err)
	assert.Equal(t, entity.ProfileNone, got.Profile)
}
