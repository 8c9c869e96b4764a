package db

import (
	"context"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

// record_key is entity.Record.Key: the email, suffixed with "|profile" for
// scoped records.
const (
	queryGetRecord = `SELECT id, email, profile, code_hash, expires_at, attempts, blocked_until, issued_at, version
FROM otp_records WHERE record_key = $1`

	queryInsertRecord = `INSERT INTO otp_records (id, record_key, email, profile, code_hash, expires_at, attempts, blocked_until, issued_at, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)`

	queryUpdateRecord = `UPDATE otp_records
SET code_hash = $2, expires_at = $3, attempts = $4, blocked_until = $5, issued_at = $6, version = version + 1
WHERE record_key = $1 AND version = $7`

	queryDeleteRecord = `DELETE FROM otp_records WHERE record_key = $1 AND version = $2`

	queryDeleteExpired = `DELETE FROM otp_records
WHERE expires_at <= $1 AND (blocked_until IS NULL OR blocked_until <= $1)`
)

func (s *DB) GetRecord(ctx context.Context, key string) (_ *entity.Record, err error) {
	ctx, span := s.startSpan(ctx, "GetRecord")
	defer func() { s.endSpan(span, err) }()

	var (
		rec          entity.Record
		profile      string
		blockedUntil *time.Time
	)
	err = s.conn.QueryRow(ctx, queryGetRecord, key).Scan(
		&rec.ID,
		&rec.Email,
		&profile,
		&rec.CodeHash,
		&rec.ExpiresAt,
		&rec.Attempts,
		&blockedUntil,
		&rec.IssuedAt,
		&rec.Version,
	)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}

	rec.Profile = entity.Profile(profile)
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	rec.IssuedAt = rec.IssuedAt.UTC()
	if blockedUntil != nil {
		t := blockedUntil.UTC()
		rec.BlockedUntil = &t
	}

	return &rec, nil
}

func (s *DB) SaveRecord(ctx context.Context, rec entity.Record, expectedVersion int64) (_ entity.Record, err error) {
	ctx, span := s.startSpan(ctx, "SaveRecord")
	defer func() { s.endSpan(span, err) }()

	if expectedVersion == 0 {
		_, err = s.conn.Exec(ctx, queryInsertRecord,
			rec.ID, rec.Key(), rec.Email, string(rec.Profile), rec.CodeHash, rec.ExpiresAt, rec.Attempts, rec.BlockedUntil, rec.IssuedAt)
		if err != nil {
			err = s.mapError(err)
			return entity.Record{}, err
		}
	} else {
		tag, execErr := s.conn.Exec(ctx, queryUpdateRecord,
			rec.Key(), rec.CodeHash, rec.ExpiresAt, rec.Attempts, rec.BlockedUntil, rec.IssuedAt, expectedVersion)
		if execErr != nil {
			err = s.mapError(execErr)
			return entity.Record{}, err
		}
		if tag.RowsAffected() == 0 {
			err = goerror.ErrConflict
			return entity.Record{}, err
		}
	}

	rec.Version = expectedVersion + 1
	return rec, nil
}

func (s *DB) DeleteRecord(ctx context.Context, key string, expectedVersion int64) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteRecord")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, queryDeleteRecord, key, expectedVersion)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		err = goerror.ErrConflict
	}

	return err
}

func (s *DB) DeleteExpired(ctx context.Context, now time.Time) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "DeleteExpired")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, queryDeleteExpired, now)
	if err != nil {
		err = s.mapError(err)
		return 0, err
	}

	return tag.RowsAffected(), nil
}
