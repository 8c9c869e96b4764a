package otp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/otpgate/internal/otp/outbound/memory"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/mq"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/otpcode"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

func newDependency(t *testing.T, yaml string) Dependency {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(yaml))
	require.NoError(t, err)
	v, err := validator.NewV10Validator()
	require.NoError(t, err)
	codes, err := otpcode.New(6)
	require.NoError(t, err)
	snow, err := uid.NewSnowflake(1)
	require.NoError(t, err)

	return Dependency{
		Messaging:  messaging.NewMemory(),
		Goroutine:  goroutine.NewManager(1),
		Router:     router.NewRouter(router.Config{Config: cfg, UUID: uid.NewUUID(), Instrument: instrument.NewNoop()}),
		Config:     cfg,
		Instrument: instrument.NewNoop(),
		Codes:      codes,
		Hash:       hash.NewHMACSHA256("pepper"),
		UID:        snow,
		Clock:      clock.New(),
		Validator:  v,
	}
}

func TestNew(t *testing.T) {
	dep := newDependency(t, "modules:\n  otp:\n    store: memory\n    notifier: messaging\n")

	require.NoError(t, New(dep))
}

func TestNew_MissingDependency(t *testing.T) {
	dep := newDependency(t, "modules:\n  otp:\n    store: memory\n    notifier: messaging\n")
	dep.Hash = nil

	assert.Error(t, New(dep))
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		name    string
		store   string
		wantErr bool
	}{
		{name: "memory", store: "memory"},
		{name: "case insensitive", store: " Memory "},
		{name: "db without pool", store: "db", wantErr: true},
		{name: "default is db", store: "", wantErr: true},
		{name: "cache without redis", store: "cache", wantErr: true},
		{name: "docstore without mongo", store: "docstore", wantErr: true},
		{name: "unknown", store: "etcd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dep := newDependency(t, "modules:\n  otp:\n    store: \""+tt.store+"\"\n")

			s, err := newStore(dep)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, &memory.Store{}, s)
		})
	}
}

func TestNewNotifier(t *testing.T) {
	dep := newDependency(t, "modules:\n  otp:\n    notifier: messaging\n")
	n, err := newNotifier(dep)
	require.NoError(t, err)
	assert.IsType(t, &mq.Messaging{}, n)

	dep = newDependency(t, "modules:\n  otp:\n    notifier: mail\n")
	_, err = newNotifier(dep)
	assert.Error(t, err, "mail client is not configured")

	dep = newDependency(t, "modules:\n  otp:\n    notifier: sms\n")
	_, err = newNotifier(dep)
	assert.Error(t, err)
}
