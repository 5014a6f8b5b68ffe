package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// clockSkew tolerates small clock drift between the identity provider and us.
const clockSkew = 30 * time.Second

var (
	signingMethod = jwt.SigningMethodHS256

	errNoSecret   = errors.New("jwt secret is required")
	errNoIssuer   = errors.New("jwt issuer is required")
	errNoSubject  = errors.New("token missing user id")
	errBadRole    = errors.New("token carries an unknown role")
	ErrNoBearer   = errors.New("missing bearer credentials")
	errBadExpires = errors.New("jwt expiration minutes must be positive")
)

// Identity is who a storefront token speaks for.
type Identity struct {
	UserID uuid.UUID
	Role   enums.UserRole
	Email  string
}

// Claims is the JWT body storefront clients present.
type Claims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	Email  string         `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity drops the registered claims.
func (c *Claims) Identity() Identity {
	return Identity{UserID: c.UserID, Role: c.Role, Email: c.Email}
}

// Verifier checks HS256 tokens from one issuer. Build it once and share it.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(cfg config.JWTConfig) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, errNoSecret
	}
	if cfg.Issuer == "" {
		return nil, errNoIssuer
	}
	return &Verifier{
		secret: []byte(cfg.Secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{signingMethod.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(clockSkew),
		),
	}, nil
}

// Verify returns the claims of a valid token carrying a user id and a known
// role.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return nil, err
	}
	switch {
	case claims.UserID == uuid.Nil:
		return nil, errNoSubject
	case !claims.Role.IsValid():
		return nil, errBadRole
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value. A bare
// token without the scheme is accepted.
func BearerToken(header string) (string, error) {
	token := strings.TrimSpace(header)
	if scheme, rest, ok := strings.Cut(token, " "); ok && strings.EqualFold(scheme, "bearer") {
		token = strings.TrimSpace(rest)
	}
	if token == "" || strings.EqualFold(token, "bearer") {
		return "", ErrNoBearer
	}
	return token, nil
}

// Mint signs a token for who. Sign-in lives with the identity provider; this
// serves tooling and tests.
func Mint(cfg config.JWTConfig, now time.Time, who Identity) (string, error) {
	if _, err := NewVerifier(cfg); err != nil {
		return "", err
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", errBadExpires
	}
	if who.UserID == uuid.Nil {
		return "", errNoSubject
	}
	if !who.Role.IsValid() {
		return "", fmt.Errorf("%w: %q", errBadRole, who.Role)
	}

	claims := Claims{
		UserID: who.UserID,
		Role:   who.Role,
		Email:  who.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   who.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}
