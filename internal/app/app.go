package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goarticle/internal/cache"
	"github.com/hyperifyio/goarticle/internal/extract"
	"github.com/hyperifyio/goarticle/internal/fetch"
	"github.com/hyperifyio/goarticle/internal/generate"
	"github.com/hyperifyio/goarticle/internal/llm"
	"github.com/hyperifyio/goarticle/internal/metrics"
	"github.com/hyperifyio/goarticle/internal/pipeline"
	"github.com/hyperifyio/goarticle/internal/quota"
	"github.com/hyperifyio/goarticle/internal/store"
	"github.com/hyperifyio/goarticle/internal/style"
)

// App owns the long-lived pieces of one CLI invocation.
type App struct {
	cfg       Config
	accounts  store.Accounts
	ledger    *quota.Ledger
	processor *pipeline.Processor
	now       func() time.Time
}

func New(ctx context.Context, cfg Config) (*App, error) {
	ApplyDefaults(&cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	policy, err := quota.ParsePolicy(cfg.ConsumePolicy)
	if err != nil {
		return nil, err
	}

	httpCache, llmCache := openCaches(cfg)

	accounts, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ledger := &quota.Ledger{Store: accounts, Policy: policy}

	fetcher := &fetch.Client{
		HTTPClient:        newHTTPClient(cfg.FetchTimeout),
		UserAgent:         cfg.FetchUserAgent,
		PerRequestTimeout: cfg.FetchTimeout,
		MaxBodyBytes:      cfg.FetchMaxBody,
		Cache:             httpCache,
		BypassCache:       cfg.CacheClear,
		RedirectMaxHops:   5,
		MaxConcurrent:     4,
	}
	extractor := &extract.Extractor{
		Fetcher:   fetcher,
		UserAgent: cfg.FetchUserAgent,
		Timeout:   cfg.FetchTimeout,
	}

	gen := &llm.ChatGenerator{
		Limiter: llm.NewRateLimiter(cfg.LLMRPM),
		Timeout: cfg.LLMTimeout,
	}
	if cfg.LLMConfigured() {
		provider := llm.NewOpenAIProvider(cfg.LLMBaseURL, cfg.LLMAPIKey, newHTTPClient(cfg.LLMTimeout))
		gen.Client = provider
		preflight(ctx, provider)
	} else {
		log.Warn().Msg("no LLM backend configured; set LLM_BASE_URL or LLM_API_KEY")
	}

	return &App{
		cfg:      cfg,
		accounts: accounts,
		ledger:   ledger,
		processor: &pipeline.Processor{
			Extractor: extractor,
			Ledger:    ledger,
			Orchestrator: &generate.Orchestrator{
				Generator:        gen,
				TranslationModel: cfg.TranslateModel,
				CommentaryModel:  cfg.CommentaryModel,
				Cache:            llmCache,
			},
			MinContentChars: cfg.MinContentChars,
		},
		now: time.Now,
	}, nil
}

// openCaches applies the invalidation controls and returns the page and
// generation caches. Failures only disable or degrade caching.
func openCaches(cfg Config) (*cache.HTTPCache, *cache.LLMCache) {
	if cfg.CacheDir == "" {
		return nil, nil
	}
	pages := &cache.HTTPCache{Dir: filepath.Join(cfg.CacheDir, "http"), StrictPerms: cfg.CacheStrictPerms}
	gens := &cache.LLMCache{Dir: filepath.Join(cfg.CacheDir, "llm"), StrictPerms: cfg.CacheStrictPerms}
	if cfg.CacheClear {
		if err := pages.Clear(); err != nil {
			log.Warn().Err(err).Str("dir", pages.Dir).Msg("page cache clear failed")
		}
		if err := gens.Clear(); err != nil {
			log.Warn().Err(err).Str("dir", gens.Dir).Msg("generation cache clear failed")
		}
		return pages, gens
	}
	if n, err := pages.PurgeOlderThan(cfg.CacheMaxAge); err != nil {
		log.Warn().Err(err).Msg("page cache purge failed")
	} else if n > 0 {
		log.Debug().Int("removed", n).Msg("page cache purged")
	}
	if n, err := gens.PurgeOlderThan(cfg.CacheMaxAge); err != nil {
		log.Warn().Err(err).Msg("generation cache purge failed")
	} else if n > 0 {
		log.Debug().Int("removed", n).Msg("generation cache purged")
	}
	return pages, gens
}

func openStore(ctx context.Context, cfg Config) (store.Accounts, error) {
	switch cfg.StoreDriver {
	case "", "memory":
		return store.NewMemory(), nil
	case "sqlite":
		s, err := store.OpenSQLite(cfg.StoreDSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case "redis":
		addr := cfg.RedisAddr
		if cfg.StoreDSN != "" {
			addr = cfg.StoreDSN
		}
		r, err := store.OpenRedis(ctx, store.RedisConfig{
			Addr:        addr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			DialTimeout: 5 * time.Second,
			Timeout:     3 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return r, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// preflight lists models to surface connectivity problems early. It never
// fails the run.
func preflight(ctx context.Context, lister llm.ModelLister) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	models, err := lister.ListModels(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("LLM model list failed; continuing")
		return
	}
	if len(models.Models) > 0 {
		log.Info().Int("count", len(models.Models)).Msg("LLM models available")
	} else {
		log.Warn().Msg("LLM returned zero models")
	}
}

func (a *App) Close() error {
	if a == nil || a.accounts == nil {
		return nil
	}
	return a.accounts.Close()
}

// EnsureAccount seeds the configured account when AccountCreate names a
// tier and the account does not exist yet.
func (a *App) EnsureAccount(ctx context.Context) error {
	if a.cfg.AccountCreate == "" {
		return nil
	}
	existing, err := a.accounts.FindByID(ctx, a.cfg.AccountID)
	if err != nil {
		return fmt.Errorf("look up account: %w", err)
	}
	if existing != nil {
		return nil
	}
	tier := quota.Tier(a.cfg.AccountCreate)
	acct := quota.Account{ID: a.cfg.AccountID, Tier: tier, TokenLimit: quota.CanonicalLimit(tier)}
	if err := a.accounts.Create(ctx, acct); err != nil && !errors.Is(err, store.ErrAccountExists) {
		return fmt.Errorf("create account: %w", err)
	}
	log.Info().Str("account", acct.ID).Str("tier", string(tier)).Uint64("limit", acct.TokenLimit).Msg("account created")
	return nil
}

// Run processes the configured input and writes the outputs.
func (a *App) Run(ctx context.Context) (pipeline.Result, error) {
	if err := a.EnsureAccount(ctx); err != nil {
		return pipeline.Result{}, err
	}
	req, err := a.request()
	if err != nil {
		return pipeline.Result{}, err
	}
	res, err := a.processor.Process(ctx, req)
	if err != nil {
		return res, err
	}

	md := renderMarkdown(res, a.now())
	if err := writeFile(a.cfg.OutputPath, []byte(md)); err != nil {
		return res, fmt.Errorf("write output: %w", err)
	}
	log.Info().Str("out", a.cfg.OutputPath).Msg("wrote output")
	if a.cfg.OutputPDFPath != "" {
		if err := writePDF(md, a.cfg.OutputPDFPath, a.cfg.PDFFontPath); err != nil {
			return res, fmt.Errorf("write pdf: %w", err)
		}
		log.Info().Str("out", a.cfg.OutputPDFPath).Msg("wrote pdf")
	}
	return res, nil
}

func (a *App) request() (pipeline.Request, error) {
	req := pipeline.Request{
		AccountID: a.cfg.AccountID,
		URL:       a.cfg.URL,
		Text:      a.cfg.Text,
	}
	if a.cfg.TextFile != "" {
		b, err := os.ReadFile(a.cfg.TextFile)
		if err != nil {
			return req, fmt.Errorf("read text file: %w", err)
		}
		req.Text = string(b)
	}
	if strings.TrimSpace(a.cfg.Style) != "" {
		archetype, err := style.Parse(a.cfg.Style)
		if err != nil {
			return req, err
		}
		req.Style = archetype
	}
	return req, nil
}

// Usage reports the configured account's standing.
func (a *App) Usage(ctx context.Context) (quota.UsageReport, error) {
	if err := a.EnsureAccount(ctx); err != nil {
		return quota.UsageReport{}, err
	}
	return a.ledger.CheckLimit(ctx, a.cfg.AccountID)
}

// Migrate reconciles every stored account to the canonical tier limits.
func (a *App) Migrate(ctx context.Context, concurrency int) (quota.MigrationSummary, error) {
	return quota.MigrateAll(ctx, a.accounts, concurrency)
}

// PushMetrics sends the process metrics to the configured Pushgateway.
func (a *App) PushMetrics(ctx context.Context) error {
	return metrics.Push(ctx, a.cfg.MetricsPushURL, "goarticle")
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
