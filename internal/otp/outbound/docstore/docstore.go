// Package docstore stores OTP records in a MongoDB collection, one document
// per record key (the email, suffixed with the profile when scoped).
package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const CollectionName = "otp_records"

type document struct {
	Key          string     `bson:"_id"`
	Email        string     `bson:"email"`
	Profile      string     `bson:"profile,omitempty"`
	RecordID     int64      `bson:"record_id"`
	CodeHash     string     `bson:"code_hash"`
	ExpiresAt    time.Time  `bson:"expires_at"`
	Attempts     int        `bson:"attempts"`
	BlockedUntil *time.Time `bson:"blocked_until,omitempty"`
	IssuedAt     time.Time  `bson:"issued_at"`
	Version      int64      `bson:"version"`
}

func fromEntity(rec entity.Record) document {
	return document{
		Key:          rec.Key(),
		Email:        rec.Email,
		Profile:      string(rec.Profile),
		RecordID:     rec.ID,
		CodeHash:     rec.CodeHash,
		ExpiresAt:    rec.ExpiresAt,
		Attempts:     rec.Attempts,
		BlockedUntil: rec.BlockedUntil,
		IssuedAt:     rec.IssuedAt,
		Version:      rec.Version,
	}
}

func (d document) toEntity() entity.Record {
	rec := entity.Record{
		ID:        d.RecordID,
		Email:     d.Email,
		Profile:   entity.Profile(d.Profile),
		CodeHash:  d.CodeHash,
		ExpiresAt: d.ExpiresAt.UTC(),
		Attempts:  d.Attempts,
		IssuedAt:  d.IssuedAt.UTC(),
		Version:   d.Version,
	}
	if d.BlockedUntil != nil {
		t := d.BlockedUntil.UTC()
		rec.BlockedUntil = &t
	}
	return rec
}

type Store struct {
	coll *mongo.Collection
	ins  instrument.Instrumentation
}

func New(db *mongo.Database, ins instrument.Instrumentation) *Store {
	return &Store{coll: db.Collection(CollectionName), ins: ins}
}

func (s *Store) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("otp.outbound.docstore").Start(ctx, name)
}

func (s *Store) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Store) mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return goerror.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return goerror.ErrConflict
	default:
		return err
	}
}

func (s *Store) GetRecord(ctx context.Context, key string) (_ *entity.Record, err error) {
	ctx, span := s.startSpan(ctx, "GetRecord")
	defer func() { s.endSpan(span, err) }()

	var doc document
	if err = s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&doc); err != nil {
		err = s.mapError(err)
		return nil, err
	}

	rec := doc.toEntity()
	return &rec, nil
}

func (s *Store) SaveRecord(ctx context.Context, rec entity.Record, expectedVersion int64) (_ entity.Record, err error) {
	ctx, span := s.startSpan(ctx, "SaveRecord")
	defer func() { s.endSpan(span, err) }()

	rec.Version = expectedVersion + 1
	doc := fromEntity(rec)

	if expectedVersion == 0 {
		if _, err = s.coll.InsertOne(ctx, doc); err != nil {
			err = s.mapError(err)
			return entity.Record{}, err
		}
		return rec, nil
	}

	res, err := s.coll.ReplaceOne(ctx, bson.D{
		{Key: "_id", Value: doc.Key},
		{Key: "version", Value: expectedVersion},
	}, doc)
	if err != nil {
		err = s.mapError(err)
		return entity.Record{}, err
	}
	if res.MatchedCount == 0 {
		err = goerror.ErrConflict
		return entity.Record{}, err
	}

	return rec, nil
}

func (s *Store) DeleteRecord(ctx context.Context, key string, expectedVersion int64) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteRecord")
	defer func() { s.endSpan(span, err) }()

	res, err := s.coll.DeleteOne(ctx, bson.D{
		{Key: "_id", Value: key},
		{Key: "version", Value: expectedVersion},
	})
	if err != nil {
		err = s.mapError(err)
		return err
	}
	if res.DeletedCount == 0 {
		err = goerror.ErrConflict
	}

	return err
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "DeleteExpired")
	defer func() { s.endSpan(span, err) }()

	res, err := s.coll.DeleteMany(ctx, bson.D{
		{Key: "expires_at", Value: bson.D{{Key: "$lte", Value: now}}},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "blocked_until", Value: bson.D{{Key: "$exists", Value: false}}}},
			bson.D{{Key: "blocked_until", Value: bson.D{{Key: "$lte", Value: now}}}},
		}},
	})
	if err != nil {
		err = s.mapError(err)
		return 0, err
	}

	return res.DeletedCount, nil
}
