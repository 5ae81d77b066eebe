package models

import (
	"time"
)

// Session is an authenticated admin session. Sessions authenticate
// administrators, not displays; displays self-register over the heartbeat
// and stream endpoints without credentials.
type Session struct {
	Token        string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	OriginIP     string    `json:"origin_ip,omitempty"`
}

// Expired reports whether the session has outlived the given TTL,
// measured from creation.
func (s *Session) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(s.CreatedAt) > ttl
}
