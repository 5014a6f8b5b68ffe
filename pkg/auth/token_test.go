package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 30}
}

func mustVerifier(t *testing.T, cfg config.JWTConfig) *Verifier {
	t.Helper()
	v, err := NewVerifier(cfg)
	require.NoError(t, err)
	return v
}

func TestMintThenVerify(t *testing.T) {
	cfg := testJWTConfig()
	who := Identity{UserID: uuid.New(), Role: enums.UserRoleOperator, Email: "ops@example.com"}

	token, err := Mint(cfg, time.Now(), who)
	require.NoError(t, err)

	claims, err := mustVerifier(t, cfg).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, who, claims.Identity())
	assert.Equal(t, cfg.Issuer, claims.Issuer)
	assert.Equal(t, who.UserID.String(), claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestMintRejectsBadInput(t *testing.T) {
	cfg := testJWTConfig()
	_, err := Mint(cfg, time.Now(), Identity{UserID: uuid.New(), Role: enums.UserRole("owner")})
	assert.ErrorIs(t, err, errBadRole)

	_, err = Mint(cfg, time.Now(), Identity{Role: enums.UserRoleCustomer})
	assert.ErrorIs(t, err, errNoSubject)

	noTTL := cfg
	noTTL.ExpirationMinutes = 0
	_, err = Mint(noTTL, time.Now(), Identity{UserID: uuid.New(), Role: enums.UserRoleCustomer})
	assert.ErrorIs(t, err, errBadExpires)
}

func TestVerifyRejects(t *testing.T) {
	cfg := testJWTConfig()
	v := mustVerifier(t, cfg)
	customer := Identity{UserID: uuid.New(), Role: enums.UserRoleCustomer}

	expired, err := Mint(cfg, time.Now().Add(-2*time.Hour), customer)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	other := cfg
	other.Issuer = "someone-else"
	foreign, err := Mint(other, time.Now(), customer)
	require.NoError(t, err)
	_, err = v.Verify(foreign)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	wrongKey := cfg
	wrongKey.Secret = "other-secret"
	forged, err := Mint(wrongKey, time.Now(), customer)
	require.NoError(t, err)
	_, err = v.Verify(forged)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	noExpiry, err := jwt.NewWithClaims(signingMethod, Claims{
		UserID:           customer.UserID,
		Role:             customer.Role,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer},
	}).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)
	_, err = v.Verify(noExpiry)
	assert.ErrorIs(t, err, jwt.ErrTokenRequiredClaimMissing)
}

func TestVerifyRejectsUnknownRoleClaim(t *testing.T) {
	cfg := testJWTConfig()
	raw, err := jwt.NewWithClaims(signingMethod, Claims{
		UserID: uuid.New(),
		Role:   enums.UserRole("owner"),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)

	_, err = mustVerifier(t, cfg).Verify(raw)
	assert.ErrorIs(t, err, errBadRole)
}

func TestNewVerifierNeedsSecretAndIssuer(t *testing.T) {
	_, err := NewVerifier(config.JWTConfig{Issuer: "storefront"})
	assert.ErrorIs(t, err, errNoSecret)
	_, err = NewVerifier(config.JWTConfig{Secret: "s"})
	assert.ErrorIs(t, err, errNoIssuer)
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc.def":   "abc.def",
		"bearer  abc.def ": "abc.def",
		"abc.def":          "abc.def",
	}
	for header, want := range cases {
		got, err := BearerToken(header)
		require.NoError(t, err, header)
		assert.Equal(t, want, got)
	}
	for _, header := range []string{"", "   ", "Bearer ", "bearer"} {
		_, err := BearerToken(header)
		assert.ErrorIs(t, err, ErrNoBearer, header)
	}
}
