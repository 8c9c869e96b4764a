package config

import (
	"io"
	"time"
)

// TimeConfig reads integer values and scales them into durations.
//
// A missing key or a value that cannot be converted yields zero; callers
// apply their own defaults.
type TimeConfig interface {
	// GetMillisecond reads key as milliseconds.
	GetMillisecond(key string) time.Duration
	// GetSecond reads key as seconds.
	GetSecond(key string) time.Duration
	// GetMinute reads key as minutes.
	GetMinute(key string) time.Duration
	// GetHour reads key as hours.
	GetHour(key string) time.Duration
}

// NumberConfig reads numeric values.
type NumberConfig interface {
	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64
	GetUint(key string) uint
	GetUint16(key string) uint16
	GetUint64(key string) uint64
	GetFloat64(key string) float64
}

// Config defines a set of methods for retrieving configuration values of various types.
// Implementations handle retrieval and type conversion and return zero values
// for missing keys.
type Config interface {
	io.Closer
	TimeConfig
	NumberConfig

	// GetBool retrieves the value associated with key as a bool.
	GetBool(key string) bool

	// GetString retrieves the value associated with key as a string.
	GetString(key string) string

	// GetBinary retrieves a base64 encoded value associated with key as raw bytes.
	GetBinary(key string) []byte

	// GetArray retrieves a list value. Both YAML sequences and the
	// <element1>,<element2>,... string form are accepted; blank elements are dropped.
	GetArray(key string) []string

	// GetMap retrieves a value stored as <key1>:<value1>,<key2>:<value2>,...
	GetMap(key string) map[string]string
}
