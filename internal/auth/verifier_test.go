package auth_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agromano/identity-gate/internal/auth"
)

const (
	testDomain   = "tenant.example.com"
	testAudience = "https://api.agromano.com"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	return key
}

func baseClaims(sub string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   sub,
		"iss":   auth.Issuer(testDomain),
		"aud":   []string{testAudience, "https://" + testDomain + "/userinfo"},
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
		"email": "ana@agromano.com",
	}
}

func sign(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "k1"

	raw, err := tok.SignedString(key)
	require.NoError(t, err)

	return raw
}

func TestVerify(t *testing.T) {
	key := newKey(t)
	other := newKey(t)

	v := auth.NewVerifierWithKeySet(testDomain, testAudience, &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{key.Public()}})

	with := func(mutate func(c jwt.MapClaims)) jwt.MapClaims {
		c := baseClaims("auth0|abc")
		mutate(c)

		return c
	}

	hs256, err := jwt.NewWithClaims(jwt.SigningMethodHS256, baseClaims("auth0|abc")).SignedString([]byte("shared"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", sign(t, key, baseClaims("auth0|abc")), false},
		{"wrong audience", sign(t, key, with(func(c jwt.MapClaims) { c["aud"] = "https://other.api" })), true},
		{"wrong issuer", sign(t, key, with(func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com/" })), true},
		{"issuer without trailing slash", sign(t, key, with(func(c jwt.MapClaims) { c["iss"] = "https://" + testDomain })), true},
		{"expired", sign(t, key, with(func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Minute).Unix() })), true},
		{"missing exp", sign(t, key, with(func(c jwt.MapClaims) { delete(c, "exp") })), true},
		{"empty subject", sign(t, key, with(func(c jwt.MapClaims) { c["sub"] = "" })), true},
		{"foreign key", sign(t, other, baseClaims("auth0|abc")), true},
		{"hs256", hs256, true},
		{"garbage", "not.a.jwt", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.Verify(context.Background(), tt.raw)

			if tt.wantErr {
				assert.ErrorIs(t, err, auth.ErrTokenInvalid)
				assert.Nil(t, claims)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "auth0|abc", claims.Subject)
			assert.Equal(t, "ana@agromano.com", claims.Email)
			assert.Contains(t, claims.Audience, testAudience)
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		err    error
	}{
		{"Bearer abc", "abc", nil},
		{"bearer  abc ", "abc", nil},
		{"Basic abc", "", auth.ErrTokenMissing},
		{"Bearer", "", auth.ErrTokenMissing},
		{"", "", auth.ErrTokenMissing},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := auth.BearerToken(tt.header)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}
