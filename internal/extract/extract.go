// Package extract turns a URL or pasted text into candidate article content
// and flags pages that sit behind a subscription barrier.
package extract

import (
    "context"
    "errors"
    "fmt"
    "net/url"
    "strings"
    "time"
    "unicode/utf8"

    "github.com/rs/zerolog/log"

    "github.com/hyperifyio/goarticle/internal/fetch"
    "github.com/hyperifyio/goarticle/internal/htmldoc"
    "github.com/hyperifyio/goarticle/internal/metrics"
    "github.com/hyperifyio/goarticle/internal/paywall"
)

// MinViableChars is the length, in runes, below which extracted content is
// treated as unreliable.
const MinViableChars = 200

// DefaultTimeout bounds a single page fetch.
const DefaultTimeout = 20 * time.Second

// DefaultUserAgent is a browser-like user agent. Many publishers serve a
// stripped page to unknown clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ContentSelectors are tried in order; the first match of each is a candidate.
var ContentSelectors = []string{
    "article",
    `[role="article"]`,
    ".article-content",
    ".post-content",
    ".entry-content",
    ".content",
    "main",
}

// StripSelectors are removed before falling back to the whole body.
const StripSelectors = "script, style, nav, footer, header, aside"

// ErrInvalidURL is returned when the input is not an absolute http(s) URL.
var ErrInvalidURL = errors.New("invalid article url")

// Result is the outcome of one extraction. Content may be empty when
// RequiresSubscription is true.
type Result struct {
    Content              string
    RequiresSubscription bool
}

// FetchError reports a transport failure or a non-2xx response.
type FetchError struct {
    URL        string
    StatusCode int
    Err        error
}

func (e *FetchError) Error() string {
    if e.Err != nil {
        return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
    }
    return fmt.Sprintf("fetch %s: http %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves a page. Non-2xx statuses are responses, not errors.
type Fetcher interface {
    Fetch(ctx context.Context, rawURL string, userAgent string) (fetch.Response, error)
}

// Extractor selects readable article content from fetched pages.
type Extractor struct {
    Fetcher Fetcher
    // Parser defaults to htmldoc.GoqueryParser.
    Parser htmldoc.Parser
    // UserAgent defaults to DefaultUserAgent.
    UserAgent string
    // Timeout defaults to DefaultTimeout.
    Timeout time.Duration
}

// FromText wraps text the user pasted. It is returned verbatim; a paste is
// never behind a paywall.
func (e *Extractor) FromText(text string) Result {
    metrics.RecordExtraction("text", metrics.OutcomeOK)
    return Result{Content: text}
}

// FromURL fetches rawURL and extracts its main content.
func (e *Extractor) FromURL(ctx context.Context, rawURL string) (Result, error) {
    rawURL = strings.TrimSpace(rawURL)
    if err := validateURL(rawURL); err != nil {
        metrics.RecordExtraction("url", metrics.OutcomeError)
        return Result{}, err
    }
    knownSite := paywall.KnownSubscriptionSite(rawURL)

    resp, err := e.fetch(ctx, rawURL)
    if err == nil && !resp.OK() {
        err = &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
    }
    if err != nil {
        if knownSite {
            log.Info().Str("url", rawURL).Err(err).Msg("fetch failed on subscription site; asking for manual paste")
            metrics.RecordExtraction("url", metrics.OutcomePaywalled)
            metrics.RecordPaywall(string(paywall.SignalDomain))
            return Result{RequiresSubscription: true}, nil
        }
        var fe *FetchError
        if !errors.As(err, &fe) {
            err = &FetchError{URL: rawURL, Err: err}
        }
        log.Warn().Str("url", rawURL).Err(err).Msg("fetch failed")
        metrics.RecordExtraction("url", metrics.OutcomeError)
        return Result{}, err
    }

    parser := e.Parser
    if parser == nil {
        parser = htmldoc.GoqueryParser{}
    }
    doc, err := parser.Parse(resp.Body)
    if err != nil {
        metrics.RecordExtraction("url", metrics.OutcomeError)
        return Result{}, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
    }

    res, signal := extractDocument(doc, rawURL)
    if res.RequiresSubscription {
        log.Info().Str("url", rawURL).Str("signal", string(signal)).Int("chars", utf8.RuneCountInString(res.Content)).Msg("subscription barrier suspected")
        metrics.RecordExtraction("url", metrics.OutcomePaywalled)
        metrics.RecordPaywall(string(signal))
    } else {
        log.Debug().Str("url", rawURL).Int("chars", utf8.RuneCountInString(res.Content)).Msg("content extracted")
        metrics.RecordExtraction("url", metrics.OutcomeOK)
    }
    return res, nil
}

func (e *Extractor) fetch(ctx context.Context, rawURL string) (fetch.Response, error) {
    f := e.Fetcher
    if f == nil {
        f = &fetch.Client{}
    }
    ua := e.UserAgent
    if ua == "" {
        ua = DefaultUserAgent
    }
    timeout := e.Timeout
    if timeout <= 0 {
        timeout = DefaultTimeout
    }
    ctx, cancel := context.WithTimeout(ctx, timeout)
    defer cancel()
    return f.Fetch(ctx, rawURL, ua)
}

// extractDocument classifies doc and selects its content region. The
// classifier sees the document before any nodes are removed.
func extractDocument(doc htmldoc.Document, rawURL string) (Result, paywall.Signal) {
    verdict := paywall.Classify(doc, rawURL)

    content, ok := selectRegion(doc)
    signal := verdict.Signal
    requires := verdict.Paywalled
    if !ok {
        doc.Remove(StripSelectors)
        content = Normalize(doc.BodyText())
        // Short free articles also land here.
        if utf8.RuneCountInString(content) < MinViableChars && !requires {
            requires = true
            signal = paywall.SignalSparse
        }
    }
    return Result{Content: content, RequiresSubscription: requires}, signal
}

func selectRegion(doc htmldoc.Document) (string, bool) {
    for _, sel := range ContentSelectors {
        text, ok := doc.FirstText(sel)
        if !ok {
            continue
        }
        text = Normalize(text)
        if utf8.RuneCountInString(text) > MinViableChars {
            return text, true
        }
    }
    return "", false
}

func validateURL(rawURL string) error {
    if rawURL == "" {
        return fmt.Errorf("%w: empty", ErrInvalidURL)
    }
    u, err := url.Parse(rawURL)
    if err != nil {
        return fmt.Errorf("%w: %v", ErrInvalidURL, err)
    }
    scheme := strings.ToLower(u.Scheme)
    if (scheme != "http" && scheme != "https") || u.Host == "" {
        return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
    }
    return nil
}
