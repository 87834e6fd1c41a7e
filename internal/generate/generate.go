// Package generate runs the two generation stages: translation into
// Simplified Chinese, then commentary in a chosen writing style.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goarticle/internal/cache"
	"github.com/hyperifyio/goarticle/internal/llm"
	"github.com/hyperifyio/goarticle/internal/metrics"
	"github.com/hyperifyio/goarticle/internal/sanitize"
	"github.com/hyperifyio/goarticle/internal/style"
)

// Default models per stage.
const (
	DefaultTranslationModel = "gpt-4o-mini"
	DefaultCommentaryModel  = "gpt-4o"
)

// Translation call parameters.
const (
	TranslationTemperature float32 = 0.3
	TranslationMaxTokens           = 4000
)

var (
	// ErrUnavailable means no generation backend is configured. It is a
	// setup problem, not a transient failure.
	ErrUnavailable = errors.New("generation unavailable")
	// ErrFailed means the backend errored or produced no usable text. The
	// whole request can be retried.
	ErrFailed = errors.New("generation failed")
)

const (
	stageTranslate  = "translate"
	stageCommentary = "commentary"
)

// Orchestrator sequences the generation stages and sanitizes their output.
type Orchestrator struct {
	Generator        llm.Generator
	TranslationModel string
	CommentaryModel  string
	// Cache, when set, memoizes sanitized translations by model and prompt.
	Cache *cache.LLMCache
}

func (o *Orchestrator) configured() bool {
	return o != nil && o.Generator != nil && o.Generator.Configured()
}

// Translate renders text in Simplified Chinese.
func (o *Orchestrator) Translate(ctx context.Context, text string) (string, error) {
	if !o.configured() {
		metrics.RecordGeneration(stageTranslate, metrics.OutcomeUnavailable, 0)
		return "", ErrUnavailable
	}
	model := o.TranslationModel
	if model == "" {
		model = DefaultTranslationModel
	}
	req := llm.Request{
		Model:       model,
		System:      translationSystemPrompt,
		User:        buildTranslationUser(text),
		Temperature: TranslationTemperature,
		MaxTokens:   TranslationMaxTokens,
	}

	key := cache.KeyFrom(model, req.System+"\n\n"+req.User)
	if o.Cache != nil {
		if raw, ok, _ := o.Cache.Get(ctx, key); ok {
			var memo struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(raw, &memo); err == nil && strings.TrimSpace(memo.Text) != "" {
				log.Debug().Str("model", model).Msg("translation cache hit")
				metrics.RecordGeneration(stageTranslate, metrics.OutcomeCached, 0)
				return memo.Text, nil
			}
		}
	}

	out, err := o.run(ctx, stageTranslate, req, sanitize.Translation)
	if err != nil {
		return "", err
	}
	if o.Cache != nil {
		payload, _ := json.Marshal(map[string]string{"text": out})
		if err := o.Cache.Save(ctx, key, payload); err != nil {
			log.Warn().Err(err).Msg("translation cache save failed")
		}
	}
	return out, nil
}

// Commentary writes an interpretation of translated text in the archetype's
// voice.
func (o *Orchestrator) Commentary(ctx context.Context, translated string, archetype style.Archetype) (string, error) {
	if !o.configured() {
		metrics.RecordGeneration(stageCommentary, metrics.OutcomeUnavailable, 0)
		return "", ErrUnavailable
	}
	cfg, err := style.Get(archetype)
	if err != nil {
		return "", err
	}
	model := o.CommentaryModel
	if model == "" {
		model = DefaultCommentaryModel
	}
	req := llm.Request{
		Model:       model,
		System:      buildCommentarySystem(cfg),
		User:        buildCommentaryUser(translated, cfg),
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxOutputTokens,
	}
	return o.run(ctx, stageCommentary, req, sanitize.Commentary)
}

// run calls the backend once and sanitizes. Empty raw or sanitized output is
// a failure.
func (o *Orchestrator) run(ctx context.Context, stage string, req llm.Request, clean func(string) string) (string, error) {
	start := time.Now()
	raw, err := o.Generator.Generate(ctx, req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			metrics.RecordGeneration(stage, metrics.OutcomeUnavailable, elapsed)
			return "", ErrUnavailable
		}
		metrics.RecordGeneration(stage, metrics.OutcomeError, elapsed)
		log.Warn().Err(err).Str("stage", stage).Str("model", req.Model).Msg("generation call failed")
		return "", fmt.Errorf("%w: %s: %w", ErrFailed, stage, err)
	}
	if strings.TrimSpace(raw) == "" {
		metrics.RecordGeneration(stage, metrics.OutcomeEmptyContent, elapsed)
		return "", fmt.Errorf("%w: %s: empty response", ErrFailed, stage)
	}
	out := clean(raw)
	if out == "" {
		metrics.RecordGeneration(stage, metrics.OutcomeEmptyContent, elapsed)
		return "", fmt.Errorf("%w: %s: nothing left after cleanup", ErrFailed, stage)
	}
	metrics.RecordGeneration(stage, metrics.OutcomeOK, elapsed)
	log.Debug().Str("stage", stage).Str("model", req.Model).Int("raw_len", len(raw)).Int("clean_len", len(out)).Msg("generation done")
	return out, nil
}
