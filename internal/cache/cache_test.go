package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLLMCache_SaveGet(t *testing.T) {
	c := &LLMCache{Dir: t.TempDir()}
	key := KeyFrom("model", "prompt")
	data := []byte(`{"text":"译文"}`)
	if err := c.Save(context.Background(), key, data); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := c.Get(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("get: %v ok=%v", err, ok)
	}
	if string(got) != string(data) {
		t.Fatalf("mismatch: %q", got)
	}
	if _, ok, _ := c.Get(context.Background(), KeyFrom("model", "other")); ok {
		t.Fatalf("expected miss for a different prompt")
	}
}

func TestKeyFrom_ModelScoped(t *testing.T) {
	if KeyFrom("a", "p") == KeyFrom("b", "p") {
		t.Fatalf("keys must differ per model")
	}
}

func TestHTTPCache_RoundTrip(t *testing.T) {
	c := &HTTPCache{Dir: t.TempDir()}
	url := "https://example.com/article"
	if err := c.Save(context.Background(), url, "text/html", `"e1"`, "Mon, 01 Jan 2024 00:00:00 GMT", []byte("<p>x</p>")); err != nil {
		t.Fatalf("save: %v", err)
	}
	meta, err := c.LoadMeta(context.Background(), url)
	if err != nil {
		t.Fatalf("load meta: %v", err)
	}
	if meta.ETag != `"e1"` || meta.URL != url {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	body, err := c.LoadBody(context.Background(), url)
	if err != nil || string(body) != "<p>x</p>" {
		t.Fatalf("load body: %v %q", err, body)
	}
}

func TestHTTPCache_StrictPerms(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "http")
	c := &HTTPCache{Dir: dir, StrictPerms: true}
	url := "https://example.com/x"
	if err := c.Save(context.Background(), url, "text/html", "etag", "", []byte("hello")); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if got := info.Mode() & 0o777; got != 0o700 {
		t.Fatalf("dir mode = %o, want 0700", got)
	}
	key := c.key(url)
	for _, f := range []string{filepath.Join(dir, key+".body"), filepath.Join(dir, key+".meta.json")} {
		finfo, err := os.Stat(f)
		if err != nil {
			t.Fatalf("stat %s: %v", f, err)
		}
		if got := finfo.Mode() & 0o777; got != 0o600 {
			t.Fatalf("%s mode = %o, want 0600", f, got)
		}
	}
}

func TestHTTPCache_PurgeOlderThan(t *testing.T) {
	c := &HTTPCache{Dir: t.TempDir()}
	if err := c.Save(context.Background(), "https://a.com/1", "text/html", "", "", []byte("x")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if n, err := c.PurgeOlderThan(time.Hour); err != nil || n != 0 {
		t.Fatalf("fresh entry must survive: n=%d err=%v", n, err)
	}
	time.Sleep(20 * time.Millisecond)
	n, err := c.PurgeOlderThan(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 removal, got %d", n)
	}
	if _, err := c.LoadBody(context.Background(), "https://a.com/1"); err == nil {
		t.Fatalf("expected body removed with meta")
	}
}

// An interrupted Save can leave a body without metadata or a temp meta file.
// Both are swept once they are past the grace period, even without a max age.
func TestHTTPCache_PurgeSweepsInterruptedSaves(t *testing.T) {
	dir := t.TempDir()
	c := &HTTPCache{Dir: dir}
	ctx := context.Background()
	if err := c.Save(ctx, "https://a.com/kept", "text/html", "", "", []byte("kept")); err != nil {
		t.Fatalf("save: %v", err)
	}
	orphanBody := c.bodyPath(c.key("https://a.com/lost"))
	leftoverTmp := c.metaPath(c.key("https://a.com/tmp")) + ".tmp"
	freshBody := c.bodyPath(c.key("https://a.com/in-flight"))
	old := time.Now().Add(-time.Hour)
	for _, p := range []string{orphanBody, leftoverTmp, freshBody} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	for _, p := range []string{orphanBody, leftoverTmp} {
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	n, err := c.PurgeOlderThan(0)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 removals, got %d", n)
	}
	for _, p := range []string{orphanBody, leftoverTmp} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed, stat err=%v", p, err)
		}
	}
	if _, err := os.Stat(freshBody); err != nil {
		t.Fatalf("body of an in-flight save must survive: %v", err)
	}
	if body, err := c.LoadBody(ctx, "https://a.com/kept"); err != nil || string(body) != "kept" {
		t.Fatalf("complete entry must survive: %v %q", err, body)
	}
}

func TestHTTPCache_PurgeDropsUndecodableMeta(t *testing.T) {
	c := &HTTPCache{Dir: t.TempDir()}
	key := c.key("https://a.com/bad")
	if err := os.WriteFile(c.metaPath(key), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write meta: %v", err)
	}
	if err := os.WriteFile(c.bodyPath(key), []byte("x"), 0o644); err != nil {
		t.Fatalf("write body: %v", err)
	}
	n, err := c.PurgeOlderThan(time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 removal, got n=%d err=%v", n, err)
	}
	if _, err := os.Stat(c.bodyPath(key)); !os.IsNotExist(err) {
		t.Fatalf("expected body removed with bad meta, stat err=%v", err)
	}
}

func TestLLMCache_PurgeOlderThan(t *testing.T) {
	c := &LLMCache{Dir: t.TempDir()}
	oldKey := KeyFrom("m", "p")
	fresh := KeyFrom("m", "q")
	for _, k := range []string{oldKey, fresh} {
		if err := c.Save(context.Background(), k, []byte("{}")); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(c.pathFor(oldKey), old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	tmp := c.pathFor(KeyFrom("m", "r")) + ".tmp"
	if err := os.WriteFile(tmp, []byte("{"), 0o644); err != nil {
		t.Fatalf("write tmp: %v", err)
	}
	if err := os.Chtimes(tmp, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	n, err := c.PurgeOlderThan(24 * time.Hour)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 removals, got n=%d err=%v", n, err)
	}
	if _, ok, _ := c.Get(context.Background(), fresh); !ok {
		t.Fatalf("recent generation must survive")
	}
	if n, err := c.PurgeOlderThan(0); err != nil || n != 0 {
		t.Fatalf("zero max age must keep generations: n=%d err=%v", n, err)
	}
}

func TestPurge_MissingDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	if n, err := (&HTTPCache{Dir: missing}).PurgeOlderThan(time.Hour); err != nil || n != 0 {
		t.Fatalf("missing dir should be a no-op: n=%d err=%v", n, err)
	}
	if n, err := (&LLMCache{Dir: missing}).PurgeOlderThan(time.Hour); err != nil || n != 0 {
		t.Fatalf("missing dir should be a no-op: n=%d err=%v", n, err)
	}
}

func TestClear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "http")
	c := &HTTPCache{Dir: dir, StrictPerms: true}
	if err := c.Save(context.Background(), "https://a.com/1", "text/html", "", "", []byte("x")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty dir, got %v err=%v", entries, err)
	}
	info, err := os.Stat(dir)
	if err != nil || info.Mode()&0o777 != 0o700 {
		t.Fatalf("cleared dir must keep strict perms: %v %v", info, err)
	}
	if err := (&LLMCache{Dir: "  "}).Clear(); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}
