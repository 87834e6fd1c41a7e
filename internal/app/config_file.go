package app

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    yaml "gopkg.in/yaml.v3"

    "github.com/hyperifyio/goarticle/internal/quota"
    "github.com/hyperifyio/goarticle/internal/style"
)

// FileConfig represents the single-file configuration schema.
// Nested sections map onto the dotted flag names.
type FileConfig struct {
    URL      string `yaml:"url" json:"url"`
    TextFile string `yaml:"textFile" json:"textFile"`
    Style    string `yaml:"style" json:"style"`

    Account struct {
        ID     string `yaml:"id" json:"id"`
        Create string `yaml:"create" json:"create"`
    } `yaml:"account" json:"account"`

    Output struct {
        Markdown string `yaml:"markdown" json:"markdown"`
        PDF      string `yaml:"pdf" json:"pdf"`
        PDFFont  string `yaml:"pdfFont" json:"pdfFont"`
    } `yaml:"output" json:"output"`

    LLM struct {
        BaseURL         string        `yaml:"base" json:"base"`
        APIKey          string        `yaml:"key" json:"key"`
        TranslateModel  string        `yaml:"translateModel" json:"translateModel"`
        CommentaryModel string        `yaml:"commentaryModel" json:"commentaryModel"`
        Timeout         time.Duration `yaml:"timeout" json:"timeout"`
        RPM             int           `yaml:"rpm" json:"rpm"`
    } `yaml:"llm" json:"llm"`

    Fetch struct {
        Timeout   time.Duration `yaml:"timeout" json:"timeout"`
        UserAgent string        `yaml:"ua" json:"ua"`
        MaxBody   int64         `yaml:"maxBody" json:"maxBody"`
    } `yaml:"fetch" json:"fetch"`

    Cache struct {
        Dir         string        `yaml:"dir" json:"dir"`
        MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
        Clear       bool          `yaml:"clear" json:"clear"`
        StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
    } `yaml:"cache" json:"cache"`

    Store struct {
        Driver string `yaml:"driver" json:"driver"`
        DSN    string `yaml:"dsn" json:"dsn"`
    } `yaml:"store" json:"store"`

    Redis struct {
        Addr     string `yaml:"addr" json:"addr"`
        Password string `yaml:"password" json:"password"`
        DB       int    `yaml:"db" json:"db"`
    } `yaml:"redis" json:"redis"`

    Consume struct {
        Policy string `yaml:"policy" json:"policy"`
    } `yaml:"consume" json:"consume"`

    Min struct {
        ContentChars int `yaml:"contentChars" json:"contentChars"`
    } `yaml:"min" json:"min"`

    Metrics struct {
        Push string `yaml:"push" json:"push"`
    } `yaml:"metrics" json:"metrics"`

    Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
    var fc FileConfig
    b, err := os.ReadFile(path)
    if err != nil {
        return fc, err
    }
    switch ext := strings.ToLower(filepath.Ext(path)); ext {
    case ".yaml", ".yml":
        if err := yaml.Unmarshal(b, &fc); err != nil {
            return fc, fmt.Errorf("parse yaml: %w", err)
        }
    case ".json":
        if err := json.Unmarshal(b, &fc); err != nil {
            return fc, fmt.Errorf("parse json: %w", err)
        }
    default:
        // Try YAML then JSON
        if err := yaml.Unmarshal(b, &fc); err != nil {
            if jerr := json.Unmarshal(b, &fc); jerr != nil {
                return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
            }
        }
    }
    return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into cfg for any fields that
// are still unset. Flags and env have already been applied, so the file only
// supplies what neither of them did.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
    if cfg == nil { return }

    fill := func(dst *string, v string) {
        if *dst == "" && v != "" { *dst = v }
    }
    fill(&cfg.URL, fc.URL)
    fill(&cfg.TextFile, fc.TextFile)
    fill(&cfg.Style, fc.Style)
    fill(&cfg.AccountID, fc.Account.ID)
    fill(&cfg.AccountCreate, fc.Account.Create)
    fill(&cfg.OutputPath, fc.Output.Markdown)
    fill(&cfg.OutputPDFPath, fc.Output.PDF)
    fill(&cfg.PDFFontPath, fc.Output.PDFFont)
    fill(&cfg.LLMBaseURL, fc.LLM.BaseURL)
    fill(&cfg.LLMAPIKey, fc.LLM.APIKey)
    fill(&cfg.TranslateModel, fc.LLM.TranslateModel)
    fill(&cfg.CommentaryModel, fc.LLM.CommentaryModel)
    fill(&cfg.FetchUserAgent, fc.Fetch.UserAgent)
    fill(&cfg.CacheDir, fc.Cache.Dir)
    fill(&cfg.StoreDriver, fc.Store.Driver)
    fill(&cfg.StoreDSN, fc.Store.DSN)
    fill(&cfg.RedisAddr, fc.Redis.Addr)
    fill(&cfg.RedisPassword, fc.Redis.Password)
    fill(&cfg.ConsumePolicy, fc.Consume.Policy)
    fill(&cfg.MetricsPushURL, fc.Metrics.Push)

    if cfg.LLMTimeout == 0 && fc.LLM.Timeout > 0 { cfg.LLMTimeout = fc.LLM.Timeout }
    if cfg.LLMRPM == 0 && fc.LLM.RPM > 0 { cfg.LLMRPM = fc.LLM.RPM }
    if cfg.FetchTimeout == 0 && fc.Fetch.Timeout > 0 { cfg.FetchTimeout = fc.Fetch.Timeout }
    if cfg.FetchMaxBody == 0 && fc.Fetch.MaxBody > 0 { cfg.FetchMaxBody = fc.Fetch.MaxBody }
    if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 { cfg.CacheMaxAge = fc.Cache.MaxAge }
    if cfg.RedisDB == 0 && fc.Redis.DB > 0 { cfg.RedisDB = fc.Redis.DB }
    if cfg.MinContentChars == 0 && fc.Min.ContentChars > 0 { cfg.MinContentChars = fc.Min.ContentChars }

    if !cfg.CacheClear && fc.Cache.Clear { cfg.CacheClear = true }
    if !cfg.CacheStrictPerms && fc.Cache.StrictPerms { cfg.CacheStrictPerms = true }
    if !cfg.Verbose && fc.Verbose { cfg.Verbose = true }
}

// ValidateConfig checks settings that do not depend on the run mode. Input
// selection is checked by the pipeline.
func ValidateConfig(cfg Config) error {
    if strings.TrimSpace(cfg.OutputPath) == "" {
        return errors.New("config: output path is required")
    }
    if cfg.OutputPDFPath != "" && strings.TrimSpace(cfg.PDFFontPath) == "" {
        return errors.New("config: pdf.font is required with output.pdf (a UTF-8 TTF font)")
    }
    if cfg.Text != "" && cfg.TextFile != "" {
        return errors.New("config: text and text.file are mutually exclusive")
    }
    if cfg.Style != "" {
        if _, err := style.Parse(cfg.Style); err != nil {
            return fmt.Errorf("config: %w", err)
        }
    }
    switch cfg.AccountCreate {
    case "", string(quota.TierTrial), string(quota.TierPaid):
    default:
        return fmt.Errorf("config: account.create must be trial or paid, got %q", cfg.AccountCreate)
    }
    switch cfg.StoreDriver {
    case "", "memory", "sqlite", "redis":
    default:
        return fmt.Errorf("config: unknown store driver %q", cfg.StoreDriver)
    }
    if cfg.ConsumePolicy != "" {
        if _, err := quota.ParsePolicy(cfg.ConsumePolicy); err != nil {
            return fmt.Errorf("config: %w", err)
        }
    }
    if cfg.LLMRPM < 0 || cfg.FetchMaxBody < 0 || cfg.MinContentChars < 0 || cfg.RedisDB < 0 {
        return errors.New("config: negative limits are not allowed")
    }
    return nil
}
