package entity

import "time"

// Delivery is what a notifier needs to hand a freshly issued code to its owner.
type Delivery struct {
	Email     string
	Profile   Profile
	Code      string
	ExpiresAt time.Time
	TTL       time.Duration
}
