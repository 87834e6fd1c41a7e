package app

import (
	"time"

	"github.com/hyperifyio/goarticle/internal/extract"
	"github.com/hyperifyio/goarticle/internal/fetch"
	"github.com/hyperifyio/goarticle/internal/generate"
)

// Config holds runtime configuration for the application.
type Config struct {
	// Input: exactly one of URL, Text or TextFile
	URL      string
	Text     string
	TextFile string
	Style    string

	// Account
	AccountID     string
	AccountCreate string // "", "trial" or "paid"

	// Output
	OutputPath    string
	OutputPDFPath string
	PDFFontPath   string

	// LLM
	LLMBaseURL      string
	LLMAPIKey       string
	TranslateModel  string
	CommentaryModel string
	LLMTimeout      time.Duration
	LLMRPM          int

	// Fetch
	FetchTimeout   time.Duration
	FetchUserAgent string
	FetchMaxBody   int64

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool

	// Store
	StoreDriver   string // memory, sqlite or redis
	StoreDSN      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Quota and pipeline
	ConsumePolicy   string
	MinContentChars int

	MetricsPushURL string
	Verbose        bool
}

// Defaults for fields left unset by flags, env and config file.
const (
	DefaultOutputPath  = "article.md"
	DefaultAccountID   = "local"
	DefaultCacheDir    = ".goarticle-cache"
	DefaultStoreDriver = "memory"
	DefaultSQLitePath  = "goarticle.db"
	DefaultRedisAddr   = "localhost:6379"
	DefaultLLMTimeout  = 60 * time.Second
)

// ApplyDefaults fills every still-zero field with its default. It runs last,
// after flags, env and file.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = DefaultOutputPath
	}
	if cfg.AccountID == "" {
		cfg.AccountID = DefaultAccountID
	}
	if cfg.TranslateModel == "" {
		cfg.TranslateModel = generate.DefaultTranslationModel
	}
	if cfg.CommentaryModel == "" {
		cfg.CommentaryModel = generate.DefaultCommentaryModel
	}
	if cfg.LLMTimeout == 0 {
		cfg.LLMTimeout = DefaultLLMTimeout
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = extract.DefaultTimeout
	}
	if cfg.FetchUserAgent == "" {
		cfg.FetchUserAgent = extract.DefaultUserAgent
	}
	if cfg.FetchMaxBody == 0 {
		cfg.FetchMaxBody = fetch.DefaultMaxBodyBytes
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultCacheDir
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = DefaultStoreDriver
	}
	if cfg.StoreDriver == "sqlite" && cfg.StoreDSN == "" {
		cfg.StoreDSN = DefaultSQLitePath
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = DefaultRedisAddr
	}
	if cfg.ConsumePolicy == "" {
		cfg.ConsumePolicy = "allow"
	}
	if cfg.MinContentChars == 0 {
		cfg.MinContentChars = extract.MinViableChars
	}
}

// LLMConfigured reports whether a generation backend is set up. A local
// OpenAI-compatible server needs only a base URL.
func (c Config) LLMConfigured() bool {
	return c.LLMBaseURL != "" || c.LLMAPIKey != ""
}
