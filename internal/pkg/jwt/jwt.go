package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidSigningMethod is returned when the JWT signing method is not supported.
	ErrInvalidSigningMethod = errors.New("invalid JWT signing method")

	// ErrSigningKeyTooShort is returned when the HS512 signing key is less than 64 bytes.
	ErrSigningKeyTooShort = errors.New("HS512 signing key must be at least 64 bytes (512 bits)")

	// ErrTokenExpired is returned when the JWT token has expired.
	ErrTokenExpired = errors.New("JWT token has expired")

	// ErrInvalidToken is returned when the token is malformed or fails validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidSubject is returned when a token is requested without an
	// identity or with an unknown role.
	ErrInvalidSubject = errors.New("token subject needs an identity and a known role")
)

const (
	// RoleUser is granted after both factors passed.
	RoleUser = "user"
	// RoleAdmin is granted by the admin password check.
	RoleAdmin = "admin"
)

// JWT generates and verifies access tokens.
type JWT interface {
	Generate(sub Subject) (string, error)
	Verify(tokenStr string) (Claims, error)
}

type clocker interface {
	Now() time.Time
}

type generator interface {
	Generate() string
}

type jwtContextKey struct{}

// Config defines the inputs for building a JWT implementation.
type Config struct {
	Secret    []byte
	Issuer    string
	Audiences []string
	TTL       time.Duration
	Clock     clocker
	UUID      generator
}

// Subject is what a token is issued for.
type Subject struct {
	Identity string
	Role     string
	// Methods lists the factors that were verified, e.g. otp and face.
	Methods []string
	// SessionID links the token to the verification session that produced it.
	SessionID string
}

// Claims wraps registered claims with the facegate payload.
type Claims struct {
	jwt.RegisteredClaims
	Role      string   `json:"role"`
	Methods   []string `json:"amr,omitempty"`
	SessionID string   `json:"sid,omitempty"`
}

// Identity returns the token subject.
func (c Claims) Identity() string {
	return c.Subject
}

// GetAuth returns the JWT claims stored in the context, if any.
func GetAuth(ctx context.Context) *Claims {
	clm, ok := ctx.Value(jwtContextKey{}).(Claims)
	if !ok {
		return nil
	}

	return &clm
}

// SetAuth stores JWT claims in the context.
func SetAuth(ctx context.Context, clm Claims) context.Context {
	return context.WithValue(ctx, jwtContextKey{}, clm)
}
