package jwt

import (
	"errors"
	"slices"
	"time"

	libJWT "github.com/golang-jwt/jwt/v5"
)

var knownRoles = []string{RoleUser, RoleAdmin}

// Symmetric signs and verifies HS512 tokens with a shared secret.
type Symmetric struct {
	secret    []byte
	issuer    string
	audiences []string
	ttl       time.Duration
	clock     clocker
	uuid      generator
}

func NewHS512(cfg Config) (*Symmetric, error) {
	if len(cfg.Secret) < 64 {
		return nil, ErrSigningKeyTooShort
	}

	return &Symmetric{
		secret:    cfg.Secret,
		issuer:    cfg.Issuer,
		audiences: cfg.Audiences,
		ttl:       cfg.TTL,
		clock:     cfg.Clock,
		uuid:      cfg.UUID,
	}, nil
}

// Generate signs a token for sub. The subject needs an identity and one of
// the known roles.
func (s *Symmetric) Generate(sub Subject) (string, error) {
	if sub.Identity == "" || !slices.Contains(knownRoles, sub.Role) {
		return "", ErrInvalidSubject
	}

	return libJWT.NewWithClaims(libJWT.SigningMethodHS512, s.claimsFor(sub, s.clock.Now())).SignedString(s.secret)
}

func (s *Symmetric) claimsFor(sub Subject, now time.Time) Claims {
	return Claims{
		RegisteredClaims: libJWT.RegisteredClaims{
			ID:        s.uuid.Generate(),
			Subject:   sub.Identity,
			Issuer:    s.issuer,
			Audience:  s.audiences,
			IssuedAt:  libJWT.NewNumericDate(now),
			NotBefore: libJWT.NewNumericDate(now),
			ExpiresAt: libJWT.NewNumericDate(now.Add(s.ttl)),
		},
		Role:      sub.Role,
		Methods:   slices.Clone(sub.Methods),
		SessionID: sub.SessionID,
	}
}

func (s *Symmetric) key(t *libJWT.Token) (any, error) {
	if t.Method != libJWT.SigningMethodHS512 {
		return nil, ErrInvalidSigningMethod
	}
	return s.secret, nil
}

// Verify parses tokenStr and returns its claims once signature, issuer,
// audience, expiry and role all check out.
func (s *Symmetric) Verify(tokenStr string) (Claims, error) {
	var claims Claims

	token, err := libJWT.ParseWithClaims(tokenStr, &claims, s.key,
		libJWT.WithIssuer(s.issuer),
		libJWT.WithAudience(s.audiences...),
		libJWT.WithValidMethods([]string{libJWT.SigningMethodHS512.Alg()}),
		libJWT.WithIssuedAt(),
		libJWT.WithExpirationRequired(),
		libJWT.WithTimeFunc(s.clock.Now),
	)
	switch {
	case errors.Is(err, libJWT.ErrTokenExpired):
		return Claims{}, ErrTokenExpired
	case err != nil:
		return Claims{}, err
	case !token.Valid, !slices.Contains(knownRoles, claims.Role):
		return Claims{}, ErrInvalidToken
	}

	return claims, nil
}
