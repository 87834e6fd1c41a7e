package extract

import (
    "context"
    "errors"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"
    "unicode/utf8"

    "github.com/hyperifyio/goarticle/internal/fetch"
    "github.com/hyperifyio/goarticle/internal/htmldoc"
)

type fakeFetcher struct {
    status  int
    body    string
    err     error
    calls   int
    gotUA   string
    gotURL  string
    blockOn bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string, userAgent string) (fetch.Response, error) {
    f.calls++
    f.gotUA = userAgent
    f.gotURL = rawURL
    if f.blockOn {
        <-ctx.Done()
        return fetch.Response{}, ctx.Err()
    }
    if f.err != nil {
        return fetch.Response{}, f.err
    }
    status := f.status
    if status == 0 {
        status = http.StatusOK
    }
    return fetch.Response{StatusCode: status, Header: http.Header{}, Body: []byte(f.body)}, nil
}

func longText(word string) string {
    return strings.TrimSpace(strings.Repeat(word+" ", 60))
}

func TestFromText_ReturnedVerbatim(t *testing.T) {
    text := strings.Repeat("a", 199)
    e := &Extractor{}
    res := e.FromText(text)
    if res.Content != text {
        t.Fatalf("expected verbatim content")
    }
    if res.RequiresSubscription {
        t.Fatalf("pasted text must never require a subscription")
    }
}

func TestFromURL_PrefersArticle(t *testing.T) {
    body := `<html><body>
      <nav>Site navigation</nav>
      <article><h1>Title</h1><p>` + longText("story") + `</p><p>Second paragraph.</p></article>
      <footer>Footer</footer>
    </body></html>`
    f := &fakeFetcher{body: body}
    e := &Extractor{Fetcher: f}
    res, err := e.FromURL(context.Background(), "https://example.com/post")
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if res.RequiresSubscription {
        t.Fatalf("did not expect subscription flag")
    }
    if !strings.HasPrefix(res.Content, "Title\n\nstory story") {
        t.Fatalf("unexpected content start: %q", res.Content[:40])
    }
    if !strings.HasSuffix(res.Content, "story\n\nSecond paragraph.") {
        t.Fatalf("expected paragraph break to survive, got tail %q", res.Content[len(res.Content)-40:])
    }
    if strings.Contains(res.Content, "Site navigation") || strings.Contains(res.Content, "Footer") {
        t.Fatalf("content must come from the article region only")
    }
    if f.gotUA != DefaultUserAgent {
        t.Fatalf("expected default user agent, got %q", f.gotUA)
    }
}

func TestFromURL_SkipsShortCandidates(t *testing.T) {
    body := `<html><body>
      <article>Teaser only</article>
      <div class="content"><p>` + longText("body") + `</p></div>
    </body></html>`
    e := &Extractor{Fetcher: &fakeFetcher{body: body}}
    res, err := e.FromURL(context.Background(), "https://example.com/post")
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if strings.Contains(res.Content, "Teaser") {
        t.Fatalf("short article candidate must be skipped")
    }
    if !strings.HasPrefix(res.Content, "body body") {
        t.Fatalf("expected .content region, got %q", res.Content)
    }
}

func TestFromURL_FallbackStripsChrome(t *testing.T) {
    body := `<html><body>
      <header>Masthead</header>
      <nav>Menu</nav>
      <p>` + longText("plain") + `</p>
      <aside>Related links</aside>
      <script>var x = 1;</script>
      <footer>Copyright</footer>
    </body></html>`
    e := &Extractor{Fetcher: &fakeFetcher{body: body}}
    res, err := e.FromURL(context.Background(), "https://example.com/post")
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if res.RequiresSubscription {
        t.Fatalf("long fallback body must not be flagged")
    }
    for _, bad := range []string{"Masthead", "Menu", "Related links", "var x", "Copyright"} {
        if strings.Contains(res.Content, bad) {
            t.Fatalf("expected %q to be stripped, got %q", bad, res.Content)
        }
    }
    if res.Content != longText("plain") {
        t.Fatalf("unexpected content %q", res.Content)
    }
}

func TestFromURL_SparsePageFlagged(t *testing.T) {
    body := `<html><body><p>Only a short teaser is visible here.</p></body></html>`
    e := &Extractor{Fetcher: &fakeFetcher{body: body}}
    res, err := e.FromURL(context.Background(), "https://example.com/post")
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if !res.RequiresSubscription {
        t.Fatalf("sparse page must be flagged")
    }
    if res.Content != "Only a short teaser is visible here." {
        t.Fatalf("unexpected content %q", res.Content)
    }
}

func TestExtractDocument_ConsentClassedArticleKept(t *testing.T) {
    para := strings.Repeat("x", 600)
    doc, err := htmldoc.Parse([]byte(`<div><article class="post consent-aware"><p>` + para + `</p></article></div>`))
    if err != nil {
        t.Fatalf("parse: %v", err)
    }
    res, signal := extractDocument(doc, "https://example.com/post")
    if res.RequiresSubscription {
        t.Fatalf("long free article flagged, signal=%q", signal)
    }
    if res.Content != para {
        t.Fatalf("unexpected content length %d", len(res.Content))
    }
}

func TestFromURL_PaywallMarkupFlagged(t *testing.T) {
    body := `<html><body><article><p>` + longText("lead") + `</p></article><div class="paywall">Subscribe</div></body></html>`
    e := &Extractor{Fetcher: &fakeFetcher{body: body}}
    res, err := e.FromURL(context.Background(), "https://example.com/post")
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if !res.RequiresSubscription {
        t.Fatalf("expected paywall flag")
    }
    if res.Content == "" {
        t.Fatalf("content should still be extracted")
    }
}

func TestFromURL_KnownDomainFetchFailure(t *testing.T) {
    for _, f := range []*fakeFetcher{
        {err: errors.New("connection reset")},
        {status: http.StatusForbidden},
    } {
        e := &Extractor{Fetcher: f}
        res, err := e.FromURL(context.Background(), "https://www.nytimes.com/2024/01/01/story.html")
        if err != nil {
            t.Fatalf("known subscription site must not error, got %v", err)
        }
        if !res.RequiresSubscription || res.Content != "" {
            t.Fatalf("expected empty flagged result, got %+v", res)
        }
    }
}

func TestFromURL_KnownDomainFlaggedEvenWhenLong(t *testing.T) {
    body := `<html><body><article>` + longText("free") + `</article></body></html>`
    e := &Extractor{Fetcher: &fakeFetcher{body: body}}
    res, err := e.FromURL(context.Background(), "https://www.wsj.com/articles/x")
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if !res.RequiresSubscription {
        t.Fatalf("known domain must be flagged")
    }
}

func TestFromURL_Non2xxIsFetchError(t *testing.T) {
    e := &Extractor{Fetcher: &fakeFetcher{status: http.StatusNotFound}}
    _, err := e.FromURL(context.Background(), "https://example.com/missing")
    var fe *FetchError
    if !errors.As(err, &fe) {
        t.Fatalf("expected FetchError, got %v", err)
    }
    if fe.StatusCode != http.StatusNotFound || fe.URL != "https://example.com/missing" {
        t.Fatalf("unexpected fetch error: %+v", fe)
    }
}

func TestFromURL_TransportErrorWrapped(t *testing.T) {
    cause := errors.New("dial tcp: refused")
    e := &Extractor{Fetcher: &fakeFetcher{err: cause}}
    _, err := e.FromURL(context.Background(), "https://example.com/")
    var fe *FetchError
    if !errors.As(err, &fe) {
        t.Fatalf("expected FetchError, got %v", err)
    }
    if !errors.Is(err, cause) {
        t.Fatalf("expected cause to be wrapped")
    }
}

func TestFromURL_InvalidURL(t *testing.T) {
    for _, raw := range []string{"", "not a url", "ftp://example.com/x", "/relative/path", "https://"} {
        f := &fakeFetcher{}
        e := &Extractor{Fetcher: f}
        _, err := e.FromURL(context.Background(), raw)
        if !errors.Is(err, ErrInvalidURL) {
            t.Fatalf("%q: expected ErrInvalidURL, got %v", raw, err)
        }
        if f.calls != 0 {
            t.Fatalf("%q: fetcher must not be called", raw)
        }
    }
}

func TestFromURL_Timeout(t *testing.T) {
    e := &Extractor{Fetcher: &fakeFetcher{blockOn: true}, Timeout: 20 * time.Millisecond}
    start := time.Now()
    _, err := e.FromURL(context.Background(), "https://example.com/slow")
    if !errors.Is(err, context.DeadlineExceeded) {
        t.Fatalf("expected deadline exceeded, got %v", err)
    }
    if time.Since(start) > 2*time.Second {
        t.Fatalf("timeout not honored")
    }
}

func TestFromURL_WithHTTPClient(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "text/html; charset=utf-8")
        _, _ = w.Write([]byte(`<html><body><main><p>` + longText("served") + `</p></main></body></html>`))
    }))
    defer srv.Close()

    e := &Extractor{Fetcher: &fetch.Client{HTTPClient: srv.Client()}, UserAgent: "goarticle-test"}
    res, err := e.FromURL(context.Background(), srv.URL)
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if res.RequiresSubscription || !strings.HasPrefix(res.Content, "served") {
        t.Fatalf("unexpected result %+v", res)
    }
}

func TestNormalize(t *testing.T) {
    in := "  Cafe\u0301  \t menu  \n\n\n\n  next   line \r\n\n"
    got := Normalize(in)
    want := "Caf\u00e9 menu\n\nnext line"
    if got != want {
        t.Fatalf("got %q want %q", got, want)
    }
}

func TestNormalize_LengthInRunes(t *testing.T) {
    text := strings.Repeat("\u5b57", MinViableChars+1)
    if utf8.RuneCountInString(Normalize(text)) <= MinViableChars {
        t.Fatalf("rune length must exceed the threshold")
    }
}
