// Package pipeline runs one article request end to end: extract, gate on
// quota, translate, comment, charge.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goarticle/internal/extract"
	"github.com/hyperifyio/goarticle/internal/metrics"
	"github.com/hyperifyio/goarticle/internal/quota"
	"github.com/hyperifyio/goarticle/internal/style"
)

// ContentSource produces article content.
type ContentSource interface {
	FromURL(ctx context.Context, rawURL string) (extract.Result, error)
	FromText(text string) extract.Result
}

// Meter gates and records token usage.
type Meter interface {
	CheckLimit(ctx context.Context, id string) (quota.UsageReport, error)
	Consume(ctx context.Context, id string, tokens uint64) error
}

// Writer runs the generation stages.
type Writer interface {
	Translate(ctx context.Context, text string) (string, error)
	Commentary(ctx context.Context, translated string, archetype style.Archetype) (string, error)
}

// Request names exactly one source, URL or Text.
type Request struct {
	AccountID string
	URL       string
	Text      string
	Style     style.Archetype
}

// Result is a finished request.
type Result struct {
	RequestID     string
	Source        string
	Content       string
	Translation   string
	Commentary    string
	Style         style.Archetype
	TokensCharged uint64
	Usage         quota.UsageReport
}

// Processor wires the stages together.
type Processor struct {
	Extractor    ContentSource
	Ledger       Meter
	Orchestrator Writer
	// MinContentChars defaults to extract.MinViableChars.
	MinContentChars int
}

// Process runs req. Errors are from the taxonomy Describe understands.
func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	id := uuid.NewString()
	logger := log.With().Str("request_id", id).Str("account", req.AccountID).Logger()
	res, err := p.process(ctx, req, logger)
	res.RequestID = id
	code := Describe(err).Code
	metrics.RecordRequest(code)
	if err != nil {
		logger.Info().Err(err).Str("code", code).Msg("request ended")
	} else {
		logger.Info().Uint64("charged", res.TokensCharged).Uint64("remaining", res.Usage.TokensRemaining).Msg("request done")
	}
	return res, err
}

func (p *Processor) process(ctx context.Context, req Request, logger zerolog.Logger) (Result, error) {
	rawURL := strings.TrimSpace(req.URL)
	hasURL := rawURL != ""
	hasText := strings.TrimSpace(req.Text) != ""
	if hasURL == hasText {
		return Result{}, fmt.Errorf("%w: exactly one of url or text is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.AccountID) == "" {
		return Result{}, fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	archetype := req.Style
	if archetype == "" {
		archetype = style.Default()
	}
	if _, err := style.Get(archetype); err != nil {
		return Result{}, err
	}

	// Extract
	var (
		ext    extract.Result
		source = "text"
	)
	if hasURL {
		source = rawURL
		var err error
		ext, err = p.Extractor.FromURL(ctx, rawURL)
		if err != nil {
			return Result{}, err
		}
	} else {
		ext = p.Extractor.FromText(req.Text)
	}
	if ext.RequiresSubscription {
		return Result{}, &SubscriptionRequiredError{Result: ext}
	}
	content := strings.TrimSpace(ext.Content)
	minChars := p.MinContentChars
	if minChars <= 0 {
		minChars = extract.MinViableChars
	}
	if n := utf8.RuneCountInString(content); n < minChars {
		return Result{}, fmt.Errorf("%w: %d characters, need %d", ErrContentTooShort, n, minChars)
	}
	logger.Debug().Str("source", source).Int("chars", utf8.RuneCountInString(content)).Msg("content ready")

	// Gate
	before, err := p.Ledger.CheckLimit(ctx, req.AccountID)
	if err != nil {
		return Result{}, err
	}
	if !before.Allowed {
		return Result{}, &QuotaExceededError{Report: before}
	}

	// Generate
	translation, err := p.Orchestrator.Translate(ctx, content)
	if err != nil {
		return Result{}, err
	}
	commentary, err := p.Orchestrator.Commentary(ctx, translation, archetype)
	if err != nil {
		return Result{}, err
	}

	// Charge
	charged := quota.EstimateTokens(content) + quota.EstimateTokens(translation) + quota.EstimateTokens(commentary)
	if err := p.Ledger.Consume(ctx, req.AccountID, charged); err != nil {
		logger.Error().Err(err).Uint64("tokens", charged).Msg("recording token usage failed")
	}
	usage, err := p.Ledger.CheckLimit(ctx, req.AccountID)
	if err != nil {
		logger.Warn().Err(err).Msg("usage refresh failed")
		usage = applyCharge(before, charged)
	}

	return Result{
		Source:        source,
		Content:       content,
		Translation:   translation,
		Commentary:    commentary,
		Style:         archetype,
		TokensCharged: charged,
		Usage:         usage,
	}, nil
}

func applyCharge(r quota.UsageReport, tokens uint64) quota.UsageReport {
	r.TokensUsed += tokens
	if tokens >= r.TokensRemaining {
		r.TokensRemaining = 0
	} else {
		r.TokensRemaining -= tokens
	}
	r.Allowed = r.Allowed && r.TokensRemaining > 0
	return r
}
