package entity

import (
	"strings"
	"time"
)

// Record is the single outstanding passcode state for one email address
// and profile.
type Record struct {
	ID           int64
	Email        string
	Profile      Profile
	CodeHash     string
	ExpiresAt    time.Time
	Attempts     int
	BlockedUntil *time.Time
	IssuedAt     time.Time
	// Version is the compare-and-swap token. Zero means the record has never
	// been stored.
	Version int64
}

// NormalizeEmail is the key form used by every store.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// Key is the store key of the record, see Owner.Key.
func (r Record) Key() string {
	return RecordKey(r.Email, r.Profile)
}

// IsExpired reports whether the code can no longer be used at now.
func (r Record) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IsBlocked reports whether a lockout is still running at now.
func (r Record) IsBlocked(now time.Time) bool {
	return r.BlockedUntil != nil && now.Before(*r.BlockedUntil)
}

// BlockRemaining is the time left on the lockout, zero when not blocked.
func (r Record) BlockRemaining(now time.Time) time.Duration {
	if !r.IsBlocked(now) {
		return 0
	}
	return r.BlockedUntil.Sub(now)
}

// Clone returns a copy that shares no pointers with r.
func (r Record) Clone() Record {
	if r.BlockedUntil != nil {
		bu := *r.BlockedUntil
		r.BlockedUntil = &bu
	}
	return r
}
