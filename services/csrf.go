package services

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const CSRFHeaderName = "X-CSRF-Token"

// CSRFManager issues and verifies per-session anti-forgery tokens.
// One live token per session, regenerated on session creation, expiring
// on its own TTL independent of the session TTL. Storage and expiry are
// delegated to a ttlcache keyed by session token.
type CSRFManager struct {
	ttl   time.Duration
	cache *ttlcache.Cache[string, string]
}

// NewCSRFManager creates the manager and starts its cleanup goroutine.
func NewCSRFManager(ttl time.Duration) *CSRFManager {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go cache.Start()

	return &CSRFManager{
		ttl:   ttl,
		cache: cache,
	}
}

// Issue generates a fresh CSRF token for the session, replacing any
// previous one.
func (m *CSRFManager) Issue(sessionToken string) (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate CSRF token: %w", err)
	}
	m.cache.Set(sessionToken, token, m.ttl)
	return token, nil
}

// Verify checks the supplied token against the session's live CSRF
// token. Comparison is constant-time; any length mismatch rejects.
func (m *CSRFManager) Verify(sessionToken, supplied string) bool {
	if sessionToken == "" || supplied == "" {
		return false
	}

	item := m.cache.Get(sessionToken)
	if item == nil {
		return false
	}
	expected := item.Value()

	if len(expected) != len(supplied) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) == 1
}

// Revoke drops the session's CSRF token, if any.
func (m *CSRFManager) Revoke(sessionToken string) {
	m.cache.Delete(sessionToken)
}

// Close stops the cleanup goroutine.
func (m *CSRFManager) Close() {
	m.cache.Stop()
}
