package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/hyperifyio/goarticle/internal/extract"
	"github.com/hyperifyio/goarticle/internal/fetch"
	"github.com/hyperifyio/goarticle/internal/generate"
	"github.com/hyperifyio/goarticle/internal/llm"
	"github.com/hyperifyio/goarticle/internal/quota"
	"github.com/hyperifyio/goarticle/internal/store"
	"github.com/hyperifyio/goarticle/internal/style"
)

type pageFetcher struct {
	status int
	body   string
	err    error
}

func (f *pageFetcher) Fetch(ctx context.Context, rawURL, ua string) (fetch.Response, error) {
	if f.err != nil {
		return fetch.Response{}, f.err
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return fetch.Response{StatusCode: status, Body: []byte(f.body)}, nil
}

// stageGenerator answers translation and commentary prompts differently.
type stageGenerator struct {
	configured  bool
	translation string
	commentary  string
	err         error
	calls       int
}

func (g *stageGenerator) Configured() bool { return g.configured }

func (g *stageGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	if strings.Contains(req.System, "translator") {
		return g.translation, nil
	}
	return g.commentary, nil
}

type failingMeter struct {
	Meter
	consumeErr error
	checkErrOn int
	checks     int
}

func (m *failingMeter) Consume(ctx context.Context, id string, tokens uint64) error {
	return m.consumeErr
}

func (m *failingMeter) CheckLimit(ctx context.Context, id string) (quota.UsageReport, error) {
	m.checks++
	if m.checks == m.checkErrOn {
		return quota.UsageReport{}, errors.New("store down")
	}
	return m.Meter.CheckLimit(ctx, id)
}

var article = strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)

func newFixture(t *testing.T, acct quota.Account) (*Processor, *store.Memory, *stageGenerator, *pageFetcher) {
	t.Helper()
	mem := store.NewMemory()
	if err := mem.Create(context.Background(), acct); err != nil {
		t.Fatalf("seed: %v", err)
	}
	f := &pageFetcher{body: "<html><body><article><p>" + article + "</p></article></body></html>"}
	g := &stageGenerator{configured: true, translation: "敏捷的棕色狐狸跳过了懒狗。", commentary: "### 观点\n\n评论正文"}
	p := &Processor{
		Extractor:    &extract.Extractor{Fetcher: f},
		Ledger:       &quota.Ledger{Store: mem},
		Orchestrator: &generate.Orchestrator{Generator: g},
	}
	return p, mem, g, f
}

func trial(id string) quota.Account {
	return quota.Account{ID: id, Tier: quota.TierTrial, TokenLimit: quota.TrialTokenLimit}
}

func TestProcess_URLHappyPath(t *testing.T) {
	p, mem, _, _ := newFixture(t, trial("u"))
	res, err := p.Process(context.Background(), Request{AccountID: "u", URL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.RequestID == "" || res.Source != "https://example.com/a" {
		t.Fatalf("unexpected meta %+v", res)
	}
	if res.Style != style.WarmBookish {
		t.Fatalf("expected default style, got %s", res.Style)
	}
	if res.Commentary != "观点\n\n评论正文" {
		t.Fatalf("commentary must be sanitized, got %q", res.Commentary)
	}
	want := quota.EstimateTokens(res.Content) + quota.EstimateTokens(res.Translation) + quota.EstimateTokens(res.Commentary)
	if res.TokensCharged != want || want == 0 {
		t.Fatalf("charged %d want %d", res.TokensCharged, want)
	}
	acct, _ := mem.FindByID(context.Background(), "u")
	if acct.TokensUsed != want {
		t.Fatalf("stored usage %d want %d", acct.TokensUsed, want)
	}
	if res.Usage.TokensUsed != want || res.Usage.TokensRemaining != quota.TrialTokenLimit-want {
		t.Fatalf("unexpected usage %+v", res.Usage)
	}
}

func TestProcess_TextPath(t *testing.T) {
	p, _, _, _ := newFixture(t, trial("u"))
	res, err := p.Process(context.Background(), Request{AccountID: "u", Text: article, Style: style.Science})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Source != "text" || res.Style != style.Science {
		t.Fatalf("unexpected %+v", res)
	}
}

func TestProcess_InvalidInput(t *testing.T) {
	p, _, _, _ := newFixture(t, trial("u"))
	for _, req := range []Request{
		{AccountID: "u"},
		{AccountID: "u", URL: "https://x.com", Text: "both"},
		{URL: "https://x.com"},
	} {
		_, err := p.Process(context.Background(), req)
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%+v: expected ErrInvalidInput, got %v", req, err)
		}
	}
}

func TestProcess_SubscriptionRequired(t *testing.T) {
	p, mem, g, f := newFixture(t, trial("u"))
	f.body = `<html><body><p>Short teaser.</p></body></html>`
	_, err := p.Process(context.Background(), Request{AccountID: "u", URL: "https://example.com/a"})
	var sre *SubscriptionRequiredError
	if !errors.As(err, &sre) || !errors.Is(err, ErrSubscriptionRequired) {
		t.Fatalf("expected SubscriptionRequiredError, got %v", err)
	}
	if sre.Result.Content != "Short teaser." {
		t.Fatalf("partial content must be carried, got %q", sre.Result.Content)
	}
	if g.calls != 0 {
		t.Fatalf("no generation for paywalled pages")
	}
	acct, _ := mem.FindByID(context.Background(), "u")
	if acct.TokensUsed != 0 {
		t.Fatalf("nothing may be charged")
	}
}

func TestProcess_ContentTooShort(t *testing.T) {
	p, _, _, _ := newFixture(t, trial("u"))
	_, err := p.Process(context.Background(), Request{AccountID: "u", Text: strings.Repeat("a", 199)})
	if !errors.Is(err, ErrContentTooShort) {
		t.Fatalf("expected ErrContentTooShort, got %v", err)
	}
	p.MinContentChars = 10
	if _, err := p.Process(context.Background(), Request{AccountID: "u", Text: strings.Repeat("a", 199)}); err != nil {
		t.Fatalf("lower threshold should pass: %v", err)
	}
}

func TestProcess_QuotaExceeded(t *testing.T) {
	acct := trial("u")
	acct.TokensUsed = quota.TrialTokenLimit
	p, _, g, _ := newFixture(t, acct)
	_, err := p.Process(context.Background(), Request{AccountID: "u", Text: article})
	var qe *QuotaExceededError
	if !errors.As(err, &qe) || !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected QuotaExceededError, got %v", err)
	}
	if qe.Report.Allowed || qe.Report.TokensRemaining != 0 {
		t.Fatalf("unexpected report %+v", qe.Report)
	}
	if g.calls != 0 {
		t.Fatalf("no generation when blocked")
	}
}

func TestProcess_GenerationErrorsNotCharged(t *testing.T) {
	p, mem, g, _ := newFixture(t, trial("u"))
	g.err = errors.New("upstream")
	_, err := p.Process(context.Background(), Request{AccountID: "u", Text: article})
	if !errors.Is(err, generate.ErrFailed) {
		t.Fatalf("expected ErrFailed, got %v", err)
	}
	acct, _ := mem.FindByID(context.Background(), "u")
	if acct.TokensUsed != 0 {
		t.Fatalf("failed requests must not be charged")
	}
}

func TestProcess_ConsumeFailureStillReturns(t *testing.T) {
	p, _, _, _ := newFixture(t, trial("u"))
	fm := &failingMeter{Meter: p.Ledger, consumeErr: errors.New("write failed"), checkErrOn: 2}
	p.Ledger = fm
	res, err := p.Process(context.Background(), Request{AccountID: "u", Text: article})
	if err != nil {
		t.Fatalf("consume failure must not fail the request: %v", err)
	}
	if res.Usage.TokensUsed != res.TokensCharged {
		t.Fatalf("fallback usage must apply the charge: %+v", res.Usage)
	}
	if res.Usage.TokensRemaining != quota.TrialTokenLimit-res.TokensCharged {
		t.Fatalf("unexpected remaining %d", res.Usage.TokensRemaining)
	}
}

func TestProcess_UnknownStyleAndAccount(t *testing.T) {
	p, _, _, _ := newFixture(t, trial("u"))
	if _, err := p.Process(context.Background(), Request{AccountID: "u", Text: article, Style: "haiku"}); !errors.Is(err, style.ErrUnknownStyle) {
		t.Fatalf("expected ErrUnknownStyle, got %v", err)
	}
	if _, err := p.Process(context.Background(), Request{AccountID: "ghost", Text: article}); !errors.Is(err, quota.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	cases := []struct {
		err  error
		code string
		want int
	}{
		{nil, CodeOK, 200},
		{&SubscriptionRequiredError{}, CodeSubscriptionRequired, 402},
		{&QuotaExceededError{}, CodeTokenLimitReached, 403},
		{fmt.Errorf("wrap: %w", extract.ErrInvalidURL), CodeInvalidURL, 400},
		{&extract.FetchError{URL: "u", StatusCode: 500}, CodeContentExtractionFailed, 400},
		{fmt.Errorf("%w: 3 chars", ErrContentTooShort), CodeEmptyContent, 400},
		{generate.ErrUnavailable, CodeGenerationUnavailable, 503},
		{fmt.Errorf("%w: x", generate.ErrFailed), CodeGenerationFailed, 502},
		{fmt.Errorf("%w: y", style.ErrUnknownStyle), CodeUnknownStyle, 400},
		{fmt.Errorf("%w: z", quota.ErrAccountNotFound), CodeAccountNotFound, 404},
		{ErrInvalidInput, CodeInvalidInput, 400},
		{context.DeadlineExceeded, CodeNetworkError, 503},
		{errors.New("mystery"), CodeUnknownError, 500},
	}
	for _, tc := range cases {
		got := Describe(tc.err)
		if got.Code != tc.code || got.Status != tc.want {
			t.Fatalf("Describe(%v) = %+v, want %s/%d", tc.err, got, tc.code, tc.want)
		}
		if tc.err != nil && got.Message == "" {
			t.Fatalf("%s needs a message", got.Code)
		}
	}
}
