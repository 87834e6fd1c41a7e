package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	metaSuffix = ".meta.json"
	bodySuffix = ".body"
	tmpSuffix  = ".tmp"
)

// orphanGrace protects files a concurrent Save is still writing: the body
// lands before its metadata, and metadata goes through a temp file.
const orphanGrace = time.Minute

// Clear empties the page cache directory.
func (c *HTTPCache) Clear() error {
	if c == nil || strings.TrimSpace(c.Dir) == "" {
		return errors.New("cache dir not configured")
	}
	return resetDir(c.Dir, c.StrictPerms)
}

// Clear empties the generation cache directory.
func (c *LLMCache) Clear() error {
	if c == nil || strings.TrimSpace(c.Dir) == "" {
		return errors.New("cache dir not configured")
	}
	return resetDir(c.Dir, c.StrictPerms)
}

func resetDir(dir string, strict bool) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return ensureDir(dir, strict)
}

// PurgeOlderThan drops pages saved more than maxAge ago, along with metadata
// that no longer decodes. Interrupted saves are swept whatever maxAge is: a
// body without metadata or a leftover temp file older than a minute. A
// non-positive maxAge keeps every complete entry. It returns the number of
// keys removed.
func (c *HTTPCache) PurgeOlderThan(maxAge time.Duration) (int, error) {
	if c == nil || c.Dir == "" {
		return 0, errors.New("cache dir not configured")
	}
	entries, err := readDirIfExists(c.Dir)
	if err != nil || len(entries) == 0 {
		return 0, err
	}

	now := time.Now().UTC()
	hasMeta := make(map[string]bool)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, metaSuffix) {
			continue
		}
		key := strings.TrimSuffix(name, metaSuffix)
		meta, ok := readMeta(filepath.Join(c.Dir, name))
		if ok && (maxAge <= 0 || now.Sub(meta.SavedAt) <= maxAge) {
			hasMeta[key] = true
			continue
		}
		_ = os.Remove(filepath.Join(c.Dir, name))
		_ = os.Remove(c.bodyPath(key))
		removed++
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		var orphan bool
		switch {
		case strings.HasSuffix(name, tmpSuffix):
			orphan = true
		case strings.HasSuffix(name, bodySuffix):
			key := strings.TrimSuffix(name, bodySuffix)
			_, statErr := os.Stat(c.metaPath(key))
			orphan = !hasMeta[key] && errors.Is(statErr, fs.ErrNotExist)
		}
		if orphan && stale(e, now) {
			if os.Remove(filepath.Join(c.Dir, name)) == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// PurgeOlderThan drops generations not read or written within maxAge and
// sweeps temp files left by interrupted saves. A non-positive maxAge keeps
// every generation. It returns the number of files removed.
func (c *LLMCache) PurgeOlderThan(maxAge time.Duration) (int, error) {
	if c == nil || c.Dir == "" {
		return 0, errors.New("cache dir not configured")
	}
	entries, err := readDirIfExists(c.Dir)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		var drop bool
		switch {
		case strings.HasSuffix(name, tmpSuffix):
			drop = stale(e, now)
		case strings.HasSuffix(name, ".json") && maxAge > 0:
			info, err := e.Info()
			drop = err == nil && now.Sub(info.ModTime().UTC()) > maxAge
		}
		if drop && os.Remove(filepath.Join(c.Dir, name)) == nil {
			removed++
		}
	}
	return removed, nil
}

func readDirIfExists(dir string) ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return entries, err
}

func readMeta(path string) (HTTPEntry, bool) {
	var e HTTPEntry
	b, err := os.ReadFile(path)
	if err != nil {
		return e, false
	}
	if err := json.Unmarshal(b, &e); err != nil {
		return e, false
	}
	return e, true
}

func stale(e fs.DirEntry, now time.Time) bool {
	info, err := e.Info()
	return err == nil && now.Sub(info.ModTime().UTC()) > orphanGrace
}
