package app

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
    if cfg == nil { return }

    setString := func(dst *string, envKey string) {
        if *dst != "" { return }
        *dst = strings.TrimSpace(os.Getenv(envKey))
    }
    setString(&cfg.LLMBaseURL, "LLM_BASE_URL")
    setString(&cfg.LLMAPIKey, "LLM_API_KEY")
    setString(&cfg.TranslateModel, "LLM_TRANSLATE_MODEL")
    setString(&cfg.CommentaryModel, "LLM_COMMENTARY_MODEL")
    setString(&cfg.FetchUserAgent, "FETCH_USER_AGENT")
    setString(&cfg.CacheDir, "CACHE_DIR")
    setString(&cfg.StoreDriver, "STORE_DRIVER")
    setString(&cfg.StoreDSN, "STORE_DSN")
    setString(&cfg.RedisAddr, "REDIS_ADDR")
    setString(&cfg.RedisPassword, "REDIS_PASSWORD")
    setString(&cfg.ConsumePolicy, "CONSUME_POLICY")
    setString(&cfg.MetricsPushURL, "METRICS_PUSH_URL")

    // Optional durations
    setDuration := func(dst *time.Duration, envKey string) {
        if *dst != 0 { return }
        if s := strings.TrimSpace(os.Getenv(envKey)); s != "" {
            if d, err := time.ParseDuration(s); err == nil {
                *dst = d
            }
        }
    }
    setDuration(&cfg.LLMTimeout, "LLM_TIMEOUT")
    setDuration(&cfg.FetchTimeout, "FETCH_TIMEOUT")
    setDuration(&cfg.CacheMaxAge, "CACHE_MAX_AGE")

    setInt := func(dst *int, envKey string) {
        if *dst != 0 { return }
        if s := strings.TrimSpace(os.Getenv(envKey)); s != "" {
            if n, err := strconv.Atoi(s); err == nil {
                *dst = n
            }
        }
    }
    setInt(&cfg.LLMRPM, "LLM_RPM")
    setInt(&cfg.RedisDB, "REDIS_DB")

    // Booleans
    setBool := func(dst *bool, envKey string) {
        if *dst { return }
        switch strings.ToLower(strings.TrimSpace(os.Getenv(envKey))) {
        case "1", "true", "yes", "on":
            *dst = true
        }
    }
    setBool(&cfg.CacheClear, "CACHE_CLEAR")
    setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
    setBool(&cfg.Verbose, "VERBOSE")
}
