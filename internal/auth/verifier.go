package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/agromano/identity-gate/internal/config"
)

// Claims are the token claims this service uses.
type Claims struct {
	Subject  string   `json:"sub"`
	Audience []string `json:"-"`
	Email    string   `json:"email,omitempty"`
	Name     string   `json:"name,omitempty"`
	Scope    string   `json:"scope,omitempty"`
}

// TokenVerifier verifies a raw bearer token.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*Claims, error)
}

// Verifier checks RS256 access tokens issued by the provider tenant.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// Issuer returns the expected issuer of a tenant domain.
func Issuer(domain string) string {
	return "https://" + domain + "/"
}

// NewVerifier builds a verifier fetching keys from the tenant's JWKS endpoint.
func NewVerifier(idpCfg config.IdP, jwksCfg config.JWKS) *Verifier {
	base := strings.TrimRight(idpCfg.ManagementURL, "/")
	if base == "" {
		base = "https://" + idpCfg.Domain
	}

	client := NewJWKSClient(jwksCfg.RequestsPerMinute, idpCfg.CallTimeout)
	keySet := NewCachingKeySet(base+"/.well-known/jwks.json", jwksCfg.CacheTTL, jwksCfg.CacheEnabled, client)

	return NewVerifierWithKeySet(idpCfg.Domain, idpCfg.Audience, keySet)
}

// NewVerifierWithKeySet builds a verifier on an explicit key set.
func NewVerifierWithKeySet(domain, audience string, keySet oidc.KeySet) *Verifier {
	return &Verifier{
		verifier: oidc.NewVerifier(Issuer(domain), keySet, &oidc.Config{
			ClientID:             audience,
			SupportedSigningAlgs: []string{oidc.RS256},
		}),
	}
}

// Verify checks signature, audience, issuer and expiry.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	token, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	var claims Claims
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrTokenInvalid)
	}

	claims.Audience = token.Audience

	return &claims, nil
}

// BearerToken extracts the token of an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrTokenMissing
	}

	return strings.TrimSpace(token), nil
}
