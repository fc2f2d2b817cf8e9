// Package auth keeps the access token of the client between runs and reads
// the identity carried in its claims. Tokens are verified by the server only.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/shiftgrid/internal/client/storage"
	srvjwt "github.com/iudanet/shiftgrid/internal/server/jwt"
)

// tokenKey - ключ токена в локальном хранилище
const tokenKey = storage.PrefixAuth + "token"

var (
	// ErrNotLoggedIn is returned when no token is stored
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrMalformedToken is returned for a token that is not a shiftgrid JWT
	ErrMalformedToken = errors.New("malformed access token")
)

// Token is an access token together with the identity from its claims
type Token struct {
	ExpiresAt time.Time
	Raw       string
	UserID    string
	UserName  string
	Role      string
}

// Expired reports whether the token has expired at now
func (t *Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// CanWrite reports whether the token allows edits
func (t *Token) CanWrite() bool {
	return t.Role == srvjwt.RoleEditor
}

// Parse reads the claims of raw without checking the signature
func Parse(raw string) (*Token, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMalformedToken
	}

	var claims srvjwt.Claims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrMalformedToken)
	}

	t := &Token{
		Raw:      raw,
		UserID:   claims.UserID,
		UserName: claims.Username,
		Role:     claims.Role,
	}
	if claims.ExpiresAt != nil {
		t.ExpiresAt = claims.ExpiresAt.Time
	}
	if t.UserName == "" {
		t.UserName = t.UserID
	}
	return t, nil
}

// Store сохраняет токен в локальном KV хранилище
type Store struct {
	kv storage.KVStore
}

// NewStore creates a token store on top of kv
func NewStore(kv storage.KVStore) *Store {
	return &Store{kv: kv}
}

// Save parses raw and stores it
func (s *Store) Save(ctx context.Context, raw string) (*Token, error) {
	t, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if err := s.kv.Set(ctx, tokenKey, t.Raw); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	return t, nil
}

// Load returns the stored token
func (s *Store) Load(ctx context.Context) (*Token, error) {
	raw, err := s.kv.Get(ctx, tokenKey)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	return Parse(raw)
}

// Delete removes the stored token
func (s *Store) Delete(ctx context.Context) error {
	if err := s.kv.Remove(ctx, tokenKey); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
