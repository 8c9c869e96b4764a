// Package memory keeps OTP records in process memory. It serves tests and
// single-instance local runs; records do not survive a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type Store struct {
	mu      sync.Mutex
	records map[string]entity.Record
}

func New() *Store {
	return &Store{records: make(map[string]entity.Record)}
}

func (s *Store) GetRecord(ctx context.Context, key string) (*entity.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	out := rec.Clone()
	return &out, nil
}

func (s *Store) SaveRecord(ctx context.Context, rec entity.Record, expectedVersion int64) (entity.Record, error) {
	if err := ctx.Err(); err != nil {
		return entity.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[rec.Key()]
	switch {
	case expectedVersion == 0 && ok:
		return entity.Record{}, goerror.ErrConflict
	case expectedVersion != 0 && (!ok || cur.Version != expectedVersion):
		return entity.Record{}, goerror.ErrConflict
	}

	rec = rec.Clone()
	rec.Version = expectedVersion + 1
	s.records[rec.Key()] = rec

	return rec.Clone(), nil
}

func (s *Store) DeleteRecord(ctx context.Context, key string, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[key]
	if !ok || cur.Version != expectedVersion {
		return goerror.ErrConflict
	}
	delete(s.records, key)

	return nil
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, rec := range s.records {
		if rec.IsExpired(now) && !rec.IsBlocked(now) {
			delete(s.records, key)
			n++
		}
	}
	return n, nil
}
