package otp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/otp/inbound"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/cache"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/db"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/docstore"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/email"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/memory"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/mq"
	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/otpcode"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

const (
	StoreDB       = "db"
	StoreCache    = "cache"
	StoreDocstore = "docstore"
	StoreMemory   = "memory"

	NotifierMail      = "mail"
	NotifierMessaging = "messaging"
)

// Dependency carries the shared clients. Only the ones named by
// modules.otp.store and modules.otp.notifier need to be set.
type Dependency struct {
	Ctx         context.Context
	DBConn      *pgxpool.Pool
	CacheConn   redis.UniversalClient
	MongoDB     *mongo.Database
	Idempotency idempotency.Idempotency
	Mail        mail.Mail
	Messaging   messaging.Messaging

	Goroutine  *goroutine.Manager         `validate:"required"`
	Router     *router.Router             `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	Codes      *otpcode.Generator         `validate:"required"`
	Hash       hash.Hash                  `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	repoStore, err := newStore(dep)
	if err != nil {
		return err
	}

	repoNotifier, err := newNotifier(dep)
	if err != nil {
		return err
	}

	if ttl := dep.Config.GetSecond("modules.otp.ttl_seconds"); ttl > time.Hour {
		slog.Warn("otp ttl is longer than an hour", "ttl", ttl.String())
	}

	uc := usecase.New(usecase.Dependency{
		RepoStore:    repoStore,
		RepoNotifier: repoNotifier,
		Idempotency:  dep.Idempotency,
		Codes:        dep.Codes,
		Hash:         dep.Hash,
		Validator:    dep.Validator,
		Config:       dep.Config,
		UID:          dep.UID,
		Clock:        dep.Clock,
		Instrument:   dep.Instrument,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)
	if dep.Ctx != nil {
		inbound.RegisterSweeperJob(dep.Ctx, dep.Config, dep.Goroutine, uc)
	}

	return nil
}

type store interface {
	GetRecord(ctx context.Context, key string) (*entity.Record, error)
	SaveRecord(ctx context.Context, rec entity.Record, expectedVersion int64) (entity.Record, error)
	DeleteRecord(ctx context.Context, key string, expectedVersion int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type notifier interface {
	SendOTP(ctx context.Context, d entity.Delivery) error
}

func newStore(dep Dependency) (store, error) {
	driver := strings.ToLower(strings.TrimSpace(dep.Config.GetString("modules.otp.store")))

	switch driver {
	case "", StoreDB:
		if dep.DBConn == nil {
			return nil, fmt.Errorf("otp: store %q requires a database connection", StoreDB)
		}
		return db.NewDB(dep.DBConn, dep.Instrument), nil
	case StoreCache:
		if dep.CacheConn == nil {
			return nil, fmt.Errorf("otp: store %q requires a redis connection", StoreCache)
		}
		return cache.New(dep.CacheConn, dep.Instrument, dep.Config.GetSecond("modules.otp.cache_grace_seconds")), nil
	case StoreDocstore:
		if dep.MongoDB == nil {
			return nil, fmt.Errorf("otp: store %q requires a mongodb database", StoreDocstore)
		}
		return docstore.New(dep.MongoDB, dep.Instrument), nil
	case StoreMemory:
		slog.Warn("otp records are kept in memory and are lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("otp: unknown store %q", driver)
	}
}

func newNotifier(dep Dependency) (notifier, error) {
	driver := strings.ToLower(strings.TrimSpace(dep.Config.GetString("modules.otp.notifier")))

	switch driver {
	case "", NotifierMail:
		if dep.Mail == nil {
			return nil, fmt.Errorf("otp: notifier %q requires a mail client", NotifierMail)
		}
		return email.New(dep.Mail, dep.Config, dep.Clock, dep.Instrument), nil
	case NotifierMessaging:
		if dep.Messaging == nil {
			return nil, fmt.Errorf("otp: notifier %q requires a messaging client", NotifierMessaging)
		}
		return mq.NewMessaging(dep.Messaging, dep.Instrument), nil
	default:
		return nil, fmt.Errorf("otp: unknown notifier %q", driver)
	}
}
