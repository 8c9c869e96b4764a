package entity

import "time"

const (
	DefaultTTL           = 5 * time.Minute
	DefaultBlockDuration = 15 * time.Minute
	DefaultMaxAttempts   = 3
)

// Policy holds the tunable lifecycle rules. The zero value is not usable;
// start from DefaultPolicy.
type Policy struct {
	TTL           time.Duration
	BlockDuration time.Duration
	MaxAttempts   int
	// ConsumeOnSuccess deletes the record after a matching code, so a replay
	// finds nothing. When false the code stays valid until it expires or is
	// replaced.
	ConsumeOnSuccess bool
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		TTL:              DefaultTTL,
		BlockDuration:    DefaultBlockDuration,
		MaxAttempts:      DefaultMaxAttempts,
		ConsumeOnSuccess: true,
	}
}

// Outcome is the caller-visible result of a lifecycle decision.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeBlocked
	OutcomeExpired
	OutcomeTooManyAttempts
	OutcomeInvalidCode
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeExpired:
		return "expired"
	case OutcomeTooManyAttempts:
		return "too_many_attempts"
	case OutcomeInvalidCode:
		return "invalid_code"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Err returns the sentinel for a rejecting outcome and nil for OutcomeOK.
func (o Outcome) Err() error {
	switch o {
	case OutcomeOK:
		return nil
	case OutcomeBlocked:
		return ErrOTPBlocked
	case OutcomeExpired:
		return ErrOTPExpired
	case OutcomeTooManyAttempts:
		return ErrOTPTooManyAttempts
	case OutcomeInvalidCode:
		return ErrOTPInvalidCode
	default:
		return ErrOTPNotFound
	}
}

// Action is the persistence effect a decision asks for.
type Action int

const (
	ActionNone Action = iota
	ActionSave
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionSave:
		return "save"
	case ActionDelete:
		return "delete"
	default:
		return "none"
	}
}

// Decision is the pure result of evaluating a policy against the current record.
type Decision struct {
	Outcome Outcome
	Action  Action
	// Record is the state to persist for ActionSave. For ActionDelete it is
	// the record being removed. Its Version is the one read from the store and
	// must be passed as the expected version.
	Record            Record
	RetryAfter        time.Duration
	AttemptsRemaining int
}

// Issue decides a code request. current is nil when no record exists.
// On success the returned record carries the new code hash with a fresh
// expiry and zero attempts; ID and Version are copied from current so the
// write can be checked against it.
func (p Policy) Issue(current *Record, owner Owner, codeHash string, now time.Time) Decision {
	if current != nil && current.IsBlocked(now) {
		return Decision{
			Outcome:    OutcomeBlocked,
			Action:     ActionNone,
			Record:     current.Clone(),
			RetryAfter: current.BlockRemaining(now),
		}
	}

	next := Record{
		Email:     owner.Email,
		Profile:   owner.Profile,
		CodeHash:  codeHash,
		ExpiresAt: now.Add(p.TTL),
		Attempts:  0,
		IssuedAt:  now,
	}
	if current != nil {
		next.ID = current.ID
		next.Version = current.Version
	}

	return Decision{
		Outcome:           OutcomeOK,
		Action:            ActionSave,
		Record:            next,
		AttemptsRemaining: p.MaxAttempts,
	}
}

// Validate decides a code submission. matches reports whether the submitted
// code corresponds to the stored hash.
func (p Policy) Validate(current *Record, matches func(codeHash string) bool, now time.Time) Decision {
	if current == nil {
		return Decision{Outcome: OutcomeNotFound, Action: ActionNone}
	}

	rec := current.Clone()

	if rec.IsExpired(now) {
		// keep the record while its lockout runs
		if rec.IsBlocked(now) {
			return Decision{Outcome: OutcomeExpired, Action: ActionNone, Record: rec, RetryAfter: rec.BlockRemaining(now)}
		}
		return Decision{Outcome: OutcomeExpired, Action: ActionDelete, Record: rec}
	}

	if rec.Attempts >= p.MaxAttempts {
		return Decision{
			Outcome:    OutcomeTooManyAttempts,
			Action:     ActionNone,
			Record:     rec,
			RetryAfter: rec.BlockRemaining(now),
		}
	}

	if matches(rec.CodeHash) {
		action := ActionNone
		if p.ConsumeOnSuccess {
			action = ActionDelete
		}
		return Decision{
			Outcome:           OutcomeOK,
			Action:            action,
			Record:            rec,
			AttemptsRemaining: p.MaxAttempts - rec.Attempts,
		}
	}

	rec.Attempts++
	d := Decision{
		Outcome:           OutcomeInvalidCode,
		Action:            ActionSave,
		AttemptsRemaining: p.MaxAttempts - rec.Attempts,
	}
	if rec.Attempts >= p.MaxAttempts {
		until := now.Add(p.BlockDuration)
		rec.BlockedUntil = &until
		d.RetryAfter = p.BlockDuration
	}
	d.Record = rec

	return d
}
