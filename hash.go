package packsync

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// errNotReachable marks pack urls the hasher cannot read, such as unknown schemes.
var errNotReachable = errors.New("packsync: pack url is not locally reachable")

// Hasher computes SHA-1 digests of pack files reachable through file:// or http(s) urls.
// A url that failed is not fetched again until the backoff passes, and downloads are
// rate limited.
type Hasher struct {
	client   *http.Client
	limiter  *rate.Limiter
	failures *ttlcache.Cache[string, error]
}

// HasherOption configures a Hasher.
type HasherOption func(*hasherOptions)

type hasherOptions struct {
	client  *http.Client
	limit   rate.Limit
	burst   int
	backoff time.Duration
}

func defaultHasherOptions() hasherOptions {
	return hasherOptions{
		client:  &http.Client{Timeout: 30 * time.Second},
		limit:   rate.Limit(2),
		burst:   4,
		backoff: 5 * time.Minute,
	}
}

// WithHTTPClient sets the client used for http(s) downloads.
func WithHTTPClient(c *http.Client) HasherOption {
	return func(o *hasherOptions) {
		o.client = c
	}
}

// WithDownloadRate sets the sustained downloads per second and the burst size.
func WithDownloadRate(perSecond float64, burst int) HasherOption {
	return func(o *hasherOptions) {
		o.limit = rate.Limit(perSecond)
		o.burst = burst
	}
}

// WithFailureBackoff sets how long a failed url is skipped.
func WithFailureBackoff(d time.Duration) HasherOption {
	return func(o *hasherOptions) {
		o.backoff = d
	}
}

// NewHasher creates a Hasher. Close releases its cache.
func NewHasher(opts ...HasherOption) *Hasher {
	o := defaultHasherOptions()
	for _, opt := range opts {
		opt(&o)
	}

	failures := ttlcache.New[string, error](
		ttlcache.WithTTL[string, error](o.backoff),
		ttlcache.WithDisableTouchOnHit[string, error](),
	)
	go failures.Start()

	return &Hasher{
		client:   o.client,
		limiter:  rate.NewLimiter(o.limit, o.burst),
		failures: failures,
	}
}

// Close stops the failure cache.
func (h *Hasher) Close() {
	h.failures.Stop()
}

// Digest returns the SHA-1 of the bytes behind rawURL.
func (h *Hasher) Digest(ctx context.Context, rawURL string) ([sha1.Size]byte, error) {
	var sum [sha1.Size]byte

	u, err := url.Parse(rawURL)
	if err != nil {
		return sum, fmt.Errorf("%w: %v", errNotReachable, err)
	}

	switch u.Scheme {
	case "file":
		f, err := os.Open(u.Path)
		if err != nil {
			return sum, &NetworkUnavailableError{URL: rawURL, Err: err}
		}
		defer f.Close()
		sum, err = digest(f)
		if err != nil {
			return sum, &NetworkUnavailableError{URL: rawURL, Err: err}
		}
		return sum, nil
	case "http", "https":
		if item := h.failures.Get(rawURL); item != nil {
			return sum, &NetworkUnavailableError{URL: rawURL, Err: fmt.Errorf("recently failed: %w", item.Value())}
		}
		sum, err = h.download(ctx, rawURL)
		if err != nil {
			h.failures.Set(rawURL, err, ttlcache.DefaultTTL)
			return sum, &NetworkUnavailableError{URL: rawURL, Err: err}
		}
		return sum, nil
	default:
		return sum, errNotReachable
	}
}

func (h *Hasher) download(ctx context.Context, rawURL string) ([sha1.Size]byte, error) {
	var sum [sha1.Size]byte
	if err := h.limiter.Wait(ctx); err != nil {
		return sum, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return sum, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return sum, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sum, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return digest(resp.Body)
}

func digest(r io.Reader) ([sha1.Size]byte, error) {
	var sum [sha1.Size]byte
	h := sha1.New()
	if _, err := io.Copy(h, r); err != nil {
		return sum, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}
