package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/session-service/internal/domain"
)

const minKeyBytes = 32

// TokenCodec signs and verifies HS256 access and refresh tokens.
type TokenCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Claims is the decoded view of a token.
type Claims struct {
	Subject   string
	Role      domain.Role
	Kind      domain.TokenKind
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	Role string `json:"auth"`
	Kind string `json:"typ"`
	jwt.RegisteredClaims
}

// NewTokenCodec decodes the base64 signing key. Keys shorter than 256 bits
// are rejected.
func NewTokenCodec(secretBase64, issuer string) (*TokenCodec, error) {
	secret, err := base64.StdEncoding.DecodeString(strings.TrimSpace(secretBase64))
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	if len(secret) < minKeyBytes {
		return nil, fmt.Errorf("signing key must be at least %d bytes, got %d", minKeyBytes, len(secret))
	}
	return &TokenCodec{secret: secret, issuer: issuer, now: time.Now}, nil
}

// Mint builds and signs a token for the subject.
func (tc *TokenCodec) Mint(kind domain.TokenKind, subject string, role domain.Role, ttl time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("token subject is empty")
	}
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	// NumericDate has second precision; report what the token actually carries.
	issuedAt := tc.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)
	claims := &tokenClaims{
		Role: string(role),
		Kind: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tc.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Decode verifies the token. An expired but otherwise genuine token returns
// its claims together with ErrExpiredToken.
func (tc *TokenCodec) Decode(token string) (*Claims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.ErrMalformedToken
	}

	parser := jwt.NewParser(
		jwt.WithTimeFunc(tc.now),
		jwt.WithExpirationRequired(),
	)
	raw := &tokenClaims{}
	_, err := parser.ParseWithClaims(token, raw, tc.keyFunc)

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUnsupportedToken), errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, domain.ErrUnsupportedToken.WithCause(err)
	case errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid):
		// signature already checked; only the lifetime is off
		claims, cerr := tc.toClaims(raw)
		if cerr != nil {
			return nil, cerr
		}
		return claims, domain.ErrExpiredToken
	default:
		return nil, domain.ErrMalformedToken.WithCause(err)
	}

	return tc.toClaims(raw)
}

// IsValid reports whether token decodes without any error.
func (tc *TokenCodec) IsValid(token string) bool {
	_, err := tc.Decode(token)
	return err == nil
}

func (tc *TokenCodec) keyFunc(token *jwt.Token) (any, error) {
	if token.Method == nil || token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, domain.ErrUnsupportedToken
	}
	return tc.secret, nil
}

func (tc *TokenCodec) toClaims(raw *tokenClaims) (*Claims, error) {
	if raw.Subject == "" {
		return nil, domain.ErrMalformedToken.WithCause(errors.New("token has no subject"))
	}
	if tc.issuer != "" && raw.Issuer != tc.issuer {
		return nil, domain.ErrMalformedToken.WithCause(fmt.Errorf("unexpected issuer %q", raw.Issuer))
	}
	role, err := domain.ParseRole(raw.Role)
	if err != nil {
		return nil, domain.ErrMalformedToken.WithCause(err)
	}

	claims := &Claims{
		Subject: raw.Subject,
		Role:    role,
		Kind:    domain.TokenKind(raw.Kind),
		ID:      raw.ID,
	}
	if raw.IssuedAt != nil {
		claims.IssuedAt = raw.IssuedAt.Time
	}
	if raw.ExpiresAt != nil {
		claims.ExpiresAt = raw.ExpiresAt.Time
	}
	return claims, nil
}
