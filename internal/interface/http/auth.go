package http

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"github.com/alem-hub/alem-companion/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// OWNER TOKENS
// HS256 JWTs whose subject is the owner's platform login. The signing key is
// derived from the configured secret, so the raw secret never signs anything.
// ══════════════════════════════════════════════════════════════════════════════

const tokenKeyInfo = "alem-companion owner token v1"

var errTokenSubject = errors.New("token has no subject")

// TokenAuthority issues and verifies owner tokens.
type TokenAuthority struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenAuthority derives the signing key from secret.
func NewTokenAuthority(secret, issuer string, ttl time.Duration) (*TokenAuthority, error) {
	if secret == "" {
		return nil, shared.NewDomainError("auth", "Configure", shared.ErrEmptyValue, "token secret is required")
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), []byte(issuer), []byte(tokenKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}

	return &TokenAuthority{
		key:    key,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue mints a token for owner.
func (a *TokenAuthority) Issue(owner string) (string, error) {
	if strings.TrimSpace(owner) == "" {
		return "", errTokenSubject
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   owner,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
}

// Verify returns the owner of a valid token.
func (a *TokenAuthority) Verify(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return a.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", shared.WrapError("session", "Authenticate", shared.ErrUnauthorized, "invalid token", err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", shared.WrapError("session", "Authenticate", shared.ErrUnauthorized, "invalid token", errTokenSubject)
	}
	return claims.Subject, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

const contextKeyOwner contextKey = "owner"

// requireOwner rejects requests without a valid bearer token.
func (s *Server) requireOwner(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			s.writeError(w, r, shared.NewDomainError("session", "Authenticate", shared.ErrUnauthorized, "missing bearer token"))
			return
		}

		owner, err := s.deps.Auth.Verify(strings.TrimSpace(raw))
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyOwner, owner)
		next(w, r.WithContext(ctx))
	}
}

func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(contextKeyOwner).(string)
	return owner
}
