// Package session owns the bearer credential: its in-memory copy, its
// persistence in the durable key-value store, and presence checks.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"stockdesk/internal/store"
)

// TokenKey is the fixed key under which the credential is persisted.
const TokenKey = "token"

// Store holds the current credential. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	kv    store.KV
	token string
	log   *slog.Logger
}

// New creates a Store and loads any persisted credential from kv.
func New(ctx context.Context, kv store.KV, log *slog.Logger) (*Store, error) {
	s := &Store{kv: kv, log: log}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	tok, err := s.kv.Get(ctx, TokenKey)
	if errors.Is(err, store.ErrNotFound) {
		tok = ""
	} else if err != nil {
		return fmt.Errorf("loading credential: %w", err)
	}
	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
	return nil
}

// Credential returns the current bearer token and whether one is present.
func (s *Store) Credential() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// SetCredential persists token and makes it available for the rest of the
// process lifetime.
func (s *Store) SetCredential(ctx context.Context, token string) error {
	if err := s.kv.Set(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("persisting credential: %w", err)
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	s.log.Info("credential stored")
	return nil
}

// Clear removes the persisted and in-memory credential.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	if err := s.kv.Delete(ctx, TokenKey); err != nil {
		return fmt.Errorf("clearing credential: %w", err)
	}
	s.log.Info("credential cleared")
	return nil
}

// Reset drops the in-memory credential and re-reads the persisted one, the
// same state a freshly started process would see.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return s.load(ctx)
}

// Subject returns the "sub" claim of the current credential for display.
// The token is not verified; opaque or malformed tokens yield "".
func (s *Store) Subject() string {
	tok, ok := s.Credential()
	if !ok {
		return ""
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return ""
	}
	return claims.Subject
}
