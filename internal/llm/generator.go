package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Request is one system+user generation call.
type Request struct {
	Model       string
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Generator is the text-generation capability. Callers check Configured
// before Generate so an unset backend fails fast.
type Generator interface {
	Configured() bool
	Generate(ctx context.Context, req Request) (string, error)
}

// ErrNotConfigured is returned by Generate on a generator without a client.
var ErrNotConfigured = errors.New("generation backend not configured")

// ChatGenerator adapts a chat Client to Generator. It never retries.
type ChatGenerator struct {
	Client Client
	// Limiter, when set, paces calls (requests per second with burst).
	Limiter *rate.Limiter
	// Timeout bounds each call. Zero means no extra bound.
	Timeout time.Duration
}

// NewRateLimiter converts a requests-per-minute budget to a limiter. A
// non-positive rpm disables limiting.
func NewRateLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
}

func (g *ChatGenerator) Configured() bool {
	return g != nil && g.Client != nil
}

// Generate returns the first choice's content. An empty completion is
// returned as "" without error; judging emptiness is the caller's job.
func (g *ChatGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	if g.Limiter != nil {
		if err := g.Limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	chatReq := openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		N:           1,
	}
	start := time.Now()
	resp, err := g.Client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	log.Debug().Str("model", req.Model).Dur("took", time.Since(start)).
		Int("prompt_tokens", resp.Usage.PromptTokens).Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("chat completion")
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
