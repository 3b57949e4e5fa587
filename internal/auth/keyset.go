package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/time/rate"
)

// rateLimitedTransport refuses JWKS fetches beyond the configured rate
// instead of queueing them behind the provider's limits.
type rateLimitedTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.limiter.Allow() {
		return nil, fmt.Errorf("%s: %w", req.URL.Host, ErrJWKSRateLimited)
	}

	return t.next.RoundTrip(req) //nolint:wrapcheck
}

// NewJWKSClient returns an HTTP client allowing at most perMinute requests per minute.
func NewJWKSClient(perMinute int, timeout time.Duration) *http.Client {
	if perMinute < 1 {
		perMinute = 1
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &rateLimitedTransport{
			next:    http.DefaultTransport,
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		},
	}
}

// CachingKeySet is an oidc.KeySet over a remote JWKS document. The remote set
// refreshes itself when it sees an unknown key id; on top of that the whole
// cache is dropped after ttl so rotated-out keys stop verifying.
type CachingKeySet struct {
	url    string
	ttl    time.Duration
	cache  bool
	client *http.Client
	now    func() time.Time

	mu      sync.Mutex
	current *oidc.RemoteKeySet
	created time.Time
}

// NewCachingKeySet creates the key set. With cache disabled every
// verification fetches the document, still subject to the client's rate limit.
func NewCachingKeySet(jwksURL string, ttl time.Duration, cache bool, client *http.Client) *CachingKeySet {
	return &CachingKeySet{
		url:    jwksURL,
		ttl:    ttl,
		cache:  cache,
		client: client,
		now:    time.Now,
	}
}

// VerifySignature implements oidc.KeySet.
func (k *CachingKeySet) VerifySignature(ctx context.Context, jwt string) ([]byte, error) {
	return k.remote().VerifySignature(ctx, jwt) //nolint:wrapcheck
}

func (k *CachingKeySet) remote() *oidc.RemoteKeySet {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()

	if k.current == nil || !k.cache || (k.ttl > 0 && now.Sub(k.created) >= k.ttl) {
		// the set outlives any single request, so it gets its own context
		ctx := oidc.ClientContext(context.Background(), k.client)
		k.current = oidc.NewRemoteKeySet(ctx, k.url)
		k.created = now
	}

	return k.current
}
