package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goarticle/internal/cache"
)

// DefaultMaxBodyBytes caps how much of a page body is read.
const DefaultMaxBodyBytes int64 = 5 << 20

// Response is what the fetch capability hands back. Non-2xx statuses are
// returned as responses, not errors; only transport failures are errors.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// Client wraps http.Client with per-request timeouts, a redirect cap, an
// optional concurrency limit and an optional on-disk page cache. It never
// retries.
type Client struct {
	HTTPClient *http.Client
	// UserAgent is used when the caller passes an empty user agent.
	UserAgent string
	// PerRequestTimeout bounds each request. Zero means no extra bound.
	PerRequestTimeout time.Duration
	// MaxBodyBytes caps the body read. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
	// Optional on-disk cache for GET bodies and validators.
	Cache *cache.HTTPCache
	// If true, skip conditional headers but still save the latest response.
	BypassCache bool
	// StrictContentType rejects bodies that are not HTML or plain text.
	StrictContentType bool

	// RedirectMaxHops caps redirect following to avoid loops. Zero means default (5).
	RedirectMaxHops int
	// MaxConcurrent limits concurrent in-flight requests per client instance.
	// Zero means unlimited.
	MaxConcurrent int

	limiter     chan struct{}
	limiterOnce sync.Once
}

// ErrUnsupportedScheme is returned for anything other than http and https.
var ErrUnsupportedScheme = errors.New("unsupported URL scheme")

func (c *Client) getHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach our redirect policy without mutating caller's client
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{Timeout: c.PerRequestTimeout, CheckRedirect: c.checkRedirectFunc()}
}

// Fetch issues a GET for rawURL with the given user agent.
func (c *Client) Fetch(ctx context.Context, rawURL string, userAgent string) (Response, error) {
	var etag, lastMod string
	if c.Cache != nil && !c.BypassCache {
		if meta, err := c.Cache.LoadMeta(ctx, rawURL); err == nil && meta != nil {
			etag = meta.ETag
			lastMod = meta.LastModified
		}
	}

	resp, err := c.do(ctx, rawURL, userAgent, etag, lastMod)
	if err != nil {
		return Response{}, err
	}

	if resp.StatusCode == http.StatusNotModified && c.Cache != nil {
		if cached, err := c.Cache.LoadBody(ctx, rawURL); err == nil {
			log.Debug().Str("url", rawURL).Msg("page cache revalidated")
			resp.StatusCode = http.StatusOK
			resp.Body = cached
			return resp, nil
		}
	}
	if c.Cache != nil && resp.StatusCode == http.StatusOK {
		if err := c.Cache.Save(ctx, rawURL, resp.Header.Get("Content-Type"), resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), resp.Body); err != nil {
			log.Warn().Err(err).Str("url", rawURL).Msg("page cache save failed")
		}
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, rawURL, userAgent, etag, lastMod string) (Response, error) {
	c.acquire()
	defer c.release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Response{}, fmt.Errorf("new request: %w", err)
	}
	if req.URL == nil || !isHTTPScheme(req.URL) {
		return Response{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, rawURL)
	}
	ua := userAgent
	if ua == "" {
		ua = c.UserAgent
	}
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	httpClient := c.getHTTPClient()
	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(req.Context(), c.PerRequestTimeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	out := Response{StatusCode: resp.StatusCode, Header: resp.Header}
	if resp.StatusCode == http.StatusNotModified {
		return out, nil
	}
	if out.OK() && c.StrictContentType && !isAllowedContentType(resp.Header.Get("Content-Type")) {
		return Response{}, fmt.Errorf("unsupported content type: %s", resp.Header.Get("Content-Type"))
	}

	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return Response{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(b)) > limit {
		b = b[:limit]
		log.Warn().Str("url", rawURL).Int64("limit", limit).Msg("page body truncated")
	}
	out.Body = b
	return out, nil
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		if req.URL == nil || !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func isAllowedContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if ct == "" {
		return true
	}
	return strings.HasPrefix(ct, "text/html") ||
		strings.HasPrefix(ct, "application/xhtml+xml") ||
		strings.HasPrefix(ct, "text/plain")
}

func (c *Client) acquire() {
	if c.MaxConcurrent <= 0 {
		return
	}
	c.limiterOnce.Do(func() {
		c.limiter = make(chan struct{}, c.MaxConcurrent)
	})
	c.limiter <- struct{}{}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
	}
}
