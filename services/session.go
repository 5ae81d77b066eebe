package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"signage-server/models"
)

const SessionHeaderName = "X-Session-Token"

// GenerateToken generates a secure random opaque token.
func GenerateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// TokenPrefix returns a short loggable prefix of a token. Full tokens
// never appear in logs.
func TokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}

// VerifyAdminSecret checks a supplied credential against the configured
// admin secret in constant time. A configured value with a bcrypt prefix
// is treated as a hash; anything else is compared directly.
func VerifyAdminSecret(configured, supplied string) bool {
	if configured == "" {
		return false
	}
	if strings.HasPrefix(configured, "$2a$") || strings.HasPrefix(configured, "$2b$") || strings.HasPrefix(configured, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(supplied)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(supplied)) == 1
}

// SessionStore owns the map of live admin sessions. All access goes
// through its methods; expiry is re-checked lazily on every lookup and
// swept periodically in the background.
type SessionStore struct {
	ttl time.Duration

	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewSessionStore creates an empty session store with the given TTL,
// measured from session creation.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		sessions: make(map[string]*models.Session),
	}
}

// Create issues a new session for a successfully authenticated admin.
func (s *SessionStore) Create(originIP string) (*models.Session, error) {
	token, err := GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now()
	session := &models.Session{
		Token:        token,
		CreatedAt:    now,
		LastAccessed: now,
		OriginIP:     originIP,
	}

	s.mu.Lock()
	s.sessions[token] = session
	s.mu.Unlock()

	slog.Info("Session created", "token", TokenPrefix(token), "ip", originIP)
	return session, nil
}

// Validate returns the session for token, or nil if the token is
// unknown or expired. An expired-but-not-yet-swept session is removed
// here and rejected.
func (s *SessionStore) Validate(token string) *models.Session {
	if token == "" {
		return nil
	}

	s.mu.RLock()
	session, ok := s.sessions[token]
	var snapshot models.Session
	if ok {
		// Snapshot under the read lock; Touch mutates LastAccessed
		// concurrently under the write lock.
		snapshot = *session
	}
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	if snapshot.Expired(s.ttl, time.Now()) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return nil
	}

	return &snapshot
}

// Touch updates the session's last-accessed time. Unknown tokens are a
// no-op.
func (s *SessionStore) Touch(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[token]; ok {
		session.LastAccessed = time.Now()
	}
}

// Logout removes the session immediately. Idempotent.
func (s *SessionStore) Logout(token string) {
	s.mu.Lock()
	_, existed := s.sessions[token]
	delete(s.sessions, token)
	s.mu.Unlock()

	if existed {
		slog.Info("Session destroyed", "token", TokenPrefix(token))
	}
}

// Count returns the number of live (non-expired) sessions.
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	count := 0
	for _, session := range s.sessions {
		if !session.Expired(s.ttl, now) {
			count++
		}
	}
	return count
}

// Sweep removes expired sessions and returns how many were dropped.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for token, session := range s.sessions {
		if session.Expired(s.ttl, now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// StartSweep runs Sweep on a fixed interval until ctx is cancelled.
func (s *SessionStore) StartSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Session sweep stopped")
				return
			case <-ticker.C:
				if removed := s.Sweep(); removed > 0 {
					slog.Info("Swept expired sessions", "count", removed)
				}
			}
		}
	}()
}
