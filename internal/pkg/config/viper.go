package config

import (
	"bytes"
	"encoding/base64"
	"errors"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// ErrConfigTypeRequired is returned by NewViperFromBytes when no format is given.
var ErrConfigTypeRequired = errors.New("config type is required")

// EnvPrefix is the prefix of environment variables overriding file values,
// e.g. OTPGATE_DATABASE_URL overrides database.url.
const EnvPrefix = "OTPGATE"

// Viper is a Config implementation backed by github.com/spf13/viper.
type Viper struct {
	v *viper.Viper
}

// NewViper loads configuration from the given file path and watches it for changes.
//
// The config file type is inferred by Viper from the filename extension.
func NewViper(pathFile string) (*Viper, error) {
	v := newViper()

	filename := path.Base(pathFile)
	v.AddConfigPath(path.Dir(pathFile))
	v.SetConfigName(strings.TrimSuffix(filename, path.Ext(filename)))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		slog.Info("config reloaded", "path", pathFile, "op", e.Op.String())
	})
	v.WatchConfig()

	return &Viper{v: v}, nil
}

// NewViperFromBytes loads configuration from memory.
// configType should be a format supported by Viper (e.g. "yaml", "json", "toml").
func NewViperFromBytes(configType string, data []byte) (*Viper, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, ErrConfigTypeRequired
	}

	v := newViper()
	v.SetConfigType(configType)

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	return &Viper{v: v}, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func (vc *Viper) GetInt(key string) int         { return vc.v.GetInt(key) }
func (vc *Viper) GetInt32(key string) int32     { return vc.v.GetInt32(key) }
func (vc *Viper) GetInt64(key string) int64     { return vc.v.GetInt64(key) }
func (vc *Viper) GetUint(key string) uint       { return vc.v.GetUint(key) }
func (vc *Viper) GetUint16(key string) uint16   { return uint16(vc.v.GetUint(key)) }
func (vc *Viper) GetUint64(key string) uint64   { return vc.v.GetUint64(key) }
func (vc *Viper) GetFloat64(key string) float64 { return vc.v.GetFloat64(key) }
func (vc *Viper) GetBool(key string) bool       { return vc.v.GetBool(key) }
func (vc *Viper) GetString(key string) string   { return vc.v.GetString(key) }

// GetMillisecond returns the value for key as milliseconds.
func (vc *Viper) GetMillisecond(key string) time.Duration {
	return time.Duration(vc.v.GetInt64(key)) * time.Millisecond
}

// GetSecond returns the value for key as seconds.
func (vc *Viper) GetSecond(key string) time.Duration {
	return time.Duration(vc.v.GetInt64(key)) * time.Second
}

// GetMinute returns the value for key as minutes.
func (vc *Viper) GetMinute(key string) time.Duration {
	return time.Duration(vc.v.GetInt64(key)) * time.Minute
}

// GetHour returns the value for key as hours.
func (vc *Viper) GetHour(key string) time.Duration {
	return time.Duration(vc.v.GetInt64(key)) * time.Hour
}

// GetBinary returns the value for key decoded from base64.
func (vc *Viper) GetBinary(key string) []byte {
	data, err := base64.StdEncoding.DecodeString(vc.v.GetString(key))
	if err != nil {
		return nil
	}

	return data
}

// GetArray returns the list value for key without blank elements.
func (vc *Viper) GetArray(key string) []string {
	var raw []string
	switch val := vc.v.Get(key).(type) {
	case nil:
		return nil
	case []any:
		raw = lo.Map(val, func(item any, _ int) string {
			s, _ := item.(string)
			return s
		})
	case []string:
		raw = val
	default:
		raw = strings.Split(vc.v.GetString(key), ",")
	}

	return lo.Compact(lo.Map(raw, func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}

// GetMap returns the value for key parsed from "k:v,k:v" pairs.
func (vc *Viper) GetMap(key string) map[string]string {
	m := make(map[string]string)
	for _, pair := range strings.Split(vc.v.GetString(key), ",") {
		k, v, ok := strings.Cut(pair, ":")
		if ok && strings.TrimSpace(k) != "" {
			m[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}

	return m
}

// Close implements io.Closer. Viper holds no resources.
func (vc *Viper) Close() error {
	return nil
}
