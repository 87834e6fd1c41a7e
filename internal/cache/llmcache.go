package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// LLMCache stores sanitized generation outputs keyed by model and prompt
// digest, so repeat translations of the same article skip the model call.
type LLMCache struct {
	Dir         string
	StrictPerms bool
}

// KeyFrom builds a cache key from model and prompt digest.
func KeyFrom(model string, prompt string) string {
	h := sha256.Sum256([]byte(model + "\n\n" + prompt))
	return hex.EncodeToString(h[:])
}

func (c *LLMCache) pathFor(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

// Get returns cached bytes if present. A miss is not an error.
func (c *LLMCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if c == nil || c.Dir == "" {
		return nil, false, errors.New("cache dir not configured")
	}
	p := c.pathFor(key)
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, false, nil
	}
	// Touch mtime so age-based purge keeps entries that are still in use.
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return b, true, nil
}

// Save writes bytes to the cache through a temp file, so a reader never sees
// a partial generation.
func (c *LLMCache) Save(_ context.Context, key string, data []byte) error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	if err := ensureDir(c.Dir, c.StrictPerms); err != nil {
		return err
	}
	p := c.pathFor(key)
	tmp := p + tmpSuffix
	if err := os.WriteFile(tmp, data, fileMode(c.StrictPerms)); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}
