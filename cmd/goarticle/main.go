package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goarticle/internal/app"
	"github.com/hyperifyio/goarticle/internal/pipeline"
	"github.com/hyperifyio/goarticle/internal/style"
)

// Exit codes.
const (
	exitOK           = 0
	exitFailure      = 1
	exitNeedsPaste   = 2
	exitQuotaReached = 3
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

type options struct {
	cfg         app.Config
	configPath  string
	envFiles    string
	migrate     bool
	concurrency int
	listStyles  bool
	showUsage   bool
	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("goarticle", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := &o.cfg

	fs.StringVar(&c.URL, "url", "", "Article URL to fetch")
	fs.StringVar(&c.Text, "text", "", "Article text to process instead of a URL")
	fs.StringVar(&c.TextFile, "text.file", "", "Path to a file with article text")
	fs.StringVar(&c.Style, "style", "", "Commentary style (see -styles; default warmBookish)")
	fs.StringVar(&c.AccountID, "account", "", "Account id (default "+app.DefaultAccountID+")")
	fs.StringVar(&c.AccountCreate, "account.create", "", "Create the account with this tier if missing: trial or paid")
	fs.StringVar(&c.OutputPath, "output", "", "Markdown output path (default "+app.DefaultOutputPath+")")
	fs.StringVar(&c.OutputPDFPath, "output.pdf", "", "Optional PDF output path")
	fs.StringVar(&c.PDFFontPath, "pdf.font", "", "UTF-8 TrueType font for PDF output")
	fs.StringVar(&c.LLMBaseURL, "llm.base", "", "OpenAI-compatible base URL")
	fs.StringVar(&c.LLMAPIKey, "llm.key", "", "API key for the OpenAI-compatible server")
	fs.StringVar(&c.TranslateModel, "llm.translateModel", "", "Model for translation")
	fs.StringVar(&c.CommentaryModel, "llm.commentaryModel", "", "Model for commentary")
	fs.DurationVar(&c.LLMTimeout, "llm.timeout", 0, "Per-call generation timeout (default 60s)")
	fs.IntVar(&c.LLMRPM, "llm.rpm", 0, "Generation requests per minute; 0 disables limiting")
	fs.DurationVar(&c.FetchTimeout, "fetch.timeout", 0, "Page fetch timeout (default 20s)")
	fs.StringVar(&c.FetchUserAgent, "fetch.ua", "", "User-Agent for page fetches")
	fs.Int64Var(&c.FetchMaxBody, "fetch.maxBody", 0, "Maximum page body bytes (default 5 MiB)")
	fs.StringVar(&c.CacheDir, "cache.dir", "", "Cache directory path (default "+app.DefaultCacheDir+")")
	fs.DurationVar(&c.CacheMaxAge, "cache.maxAge", 0, "Max age for cache entries before purge (e.g. 24h); 0 disables")
	fs.BoolVar(&c.CacheClear, "cache.clear", false, "Clear cache directory before run")
	fs.BoolVar(&c.CacheStrictPerms, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	fs.StringVar(&c.StoreDriver, "store", "", "Account store: memory, sqlite or redis (default memory)")
	fs.StringVar(&c.StoreDSN, "store.dsn", "", "SQLite path or Redis address")
	fs.StringVar(&c.RedisAddr, "redis.addr", "", "Redis address (default "+app.DefaultRedisAddr+")")
	fs.StringVar(&c.RedisPassword, "redis.password", "", "Redis password")
	fs.IntVar(&c.RedisDB, "redis.db", 0, "Redis database number")
	fs.StringVar(&c.ConsumePolicy, "consume.policy", "", "Usage recording policy: allow or clamp (default allow)")
	fs.IntVar(&c.MinContentChars, "min.contentChars", 0, "Minimum characters of content to process (default 200)")
	fs.StringVar(&c.MetricsPushURL, "metrics.push", "", "Prometheus Pushgateway URL")
	fs.BoolVar(&c.Verbose, "v", false, "Verbose logging")
	fs.BoolVar(&o.migrate, "migrate", false, "Reconcile stored accounts to the tier limits and exit")
	fs.IntVar(&o.concurrency, "migrate.concurrency", 8, "Concurrent account updates during -migrate")
	fs.BoolVar(&o.listStyles, "styles", false, "List commentary styles and exit")
	fs.BoolVar(&o.showUsage, "usage", false, "Print the account's token usage and exit")
	fs.BoolVar(&o.showVersion, "version", false, "Print version and exit")
	fs.StringVar(&o.configPath, "config", "", "YAML or JSON config file")
	fs.StringVar(&o.envFiles, "env", ".env", "Comma-separated dotenv files")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, nil
}

// loadConfig layers flags over env over file, then fills defaults.
func loadConfig(o options) (app.Config, error) {
	cfg := o.cfg
	if err := app.LoadEnvFiles(strings.Split(o.envFiles, ",")...); err != nil {
		return cfg, fmt.Errorf("load env: %w", err)
	}
	app.ApplyEnvToConfig(&cfg)
	if strings.TrimSpace(o.configPath) != "" {
		fc, err := app.LoadConfigFile(o.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyDefaults(&cfg)
	return cfg, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) int {
	o, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitFailure
	}
	if o.showVersion {
		fmt.Fprintln(stdout, app.VersionString())
		return exitOK
	}
	if o.listStyles {
		printStyles(stdout)
		return exitOK
	}

	cfg, err := loadConfig(o)
	if err != nil {
		log.Error().Err(err).Msg("configuration failed")
		return exitFailure
	}
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("init app")
		return exitFailure
	}
	defer a.Close()
	defer func() {
		if err := a.PushMetrics(context.Background()); err != nil {
			log.Warn().Err(err).Msg("metrics push failed")
		}
	}()

	switch {
	case o.migrate:
		sum, err := a.Migrate(ctx, o.concurrency)
		if err != nil {
			log.Error().Err(err).Msg("migration failed")
			return exitFailure
		}
		fmt.Fprintf(stdout, "scanned %d, migrated %d, failed %d\n", sum.Scanned, sum.Migrated, sum.Failed)
		if sum.Failed > 0 {
			return exitFailure
		}
		return exitOK
	case o.showUsage:
		rep, err := a.Usage(ctx)
		if err != nil {
			return report(stdout, err)
		}
		fmt.Fprintf(stdout, "tier %s: %d of %d tokens used, %d remaining, allowed=%t\n",
			rep.Tier, rep.TokensUsed, rep.Limit, rep.TokensRemaining, rep.Allowed)
		return exitOK
	}

	res, err := a.Run(ctx)
	if err != nil {
		return report(stdout, err)
	}
	fmt.Fprintf(stdout, "wrote %s (%d tokens charged, %d remaining)\n", cfg.OutputPath, res.TokensCharged, res.Usage.TokensRemaining)
	return exitOK
}

// report prints the user-facing problem for err and returns the exit code.
func report(w io.Writer, err error) int {
	p := pipeline.Describe(err)
	log.Debug().Err(err).Str("code", p.Code).Msg("request failed")
	fmt.Fprintf(w, "%s: %s %s\n", p.Code, p.Message, p.Action)
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, pipeline.ErrSubscriptionRequired), errors.Is(err, pipeline.ErrContentTooShort):
		return exitNeedsPaste
	case errors.Is(err, pipeline.ErrQuotaExceeded):
		return exitQuotaReached
	default:
		return exitFailure
	}
}

func printStyles(w io.Writer) {
	for _, a := range style.Archetypes() {
		cfg, err := style.Get(a)
		if err != nil {
			continue
		}
		marker := " "
		if a == style.Default() {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-15s %s (%s): %s\n", marker, a, cfg.DisplayName, cfg.DisplayNameEn, cfg.Description)
	}
}
