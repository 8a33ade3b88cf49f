package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dlyoglab/ipcheck/internal/providers"
)

func TestCache_PutGet(t *testing.T) {
	dir := t.TempDir()
	c, err := New(true, dir, 86400)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	key := "test-key"
	value := `{"summary":"ok","verdict":"clear"}`

	if _, ok := c.Get(key); ok {
		t.Error("Expected cache miss before put")
	}
	if err := c.Put(key, value); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	got, ok := c.Get(key)
	if !ok {
		t.Fatal("Expected cache hit after put")
	}
	if got != value {
		t.Errorf("Got = %q, want %q", got, value)
	}
}

func TestCache_TTLExpiration(t *testing.T) {
	dir := t.TempDir()
	c, err := New(true, dir, 60)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Put("expire-test", "data"); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if _, ok := c.Get("expire-test"); !ok {
		t.Error("Expected cache hit before expiration")
	}

	now = now.Add(61 * time.Second)
	stats, err := c.GetStats()
	if err != nil {
		t.Fatalf("GetStats error: %v", err)
	}
	if stats.Expired != 1 {
		t.Errorf("Expired = %d, want 1", stats.Expired)
	}
	if _, ok := c.Get("expire-test"); ok {
		t.Error("Expected cache miss after TTL expiration")
	}
	if _, err := os.Stat(c.entryPath("expire-test")); !os.IsNotExist(err) {
		t.Error("Expired entry should be removed on read")
	}
}

func TestCache_Disabled(t *testing.T) {
	c, err := New(false, "", 0)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if c.Enabled() {
		t.Error("Cache should be disabled")
	}
	if err := c.Put("key", "value"); err != nil {
		t.Errorf("Put on disabled cache should not error: %v", err)
	}
	if _, ok := c.Get("key"); ok {
		t.Error("Get on disabled cache should always miss")
	}
	if n, err := c.Clear(); err != nil || n != 0 {
		t.Errorf("Clear on disabled cache = %d, %v", n, err)
	}
}

func TestCache_Clear(t *testing.T) {
	dir := t.TempDir()
	c, err := New(true, dir, 86400)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := c.Put(string(rune('a'+i)), "data"); err != nil {
			t.Fatalf("Put error: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := c.Clear()
	if err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if n != 5 {
		t.Errorf("Clear removed %d entries, want 5", n)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "notes.txt" {
		t.Errorf("Clear should only remove cache entries, left %v", entries)
	}
}

func TestCache_GetStats(t *testing.T) {
	dir := t.TempDir()
	c, err := New(true, dir, 86400)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	stats, err := c.GetStats()
	if err != nil {
		t.Fatalf("GetStats error: %v", err)
	}
	if stats.Entries != 0 || !stats.Enabled {
		t.Errorf("stats = %+v, want empty and enabled", stats)
	}

	_ = c.Put("key1", "value1")
	_ = c.Put("key2", "value2")

	stats, err = c.GetStats()
	if err != nil {
		t.Fatalf("GetStats error: %v", err)
	}
	if stats.Entries != 2 {
		t.Errorf("Entries = %d, want 2", stats.Entries)
	}
	if stats.TotalBytes <= 0 {
		t.Error("TotalBytes should be > 0")
	}
	if stats.Dir != dir {
		t.Errorf("Dir = %q, want %q", stats.Dir, dir)
	}
}

func TestHashKey(t *testing.T) {
	h1 := HashKey("test")
	h2 := HashKey("test")
	h3 := HashKey("other")

	if h1 != h2 {
		t.Error("Same input should produce same hash")
	}
	if h1 == h3 {
		t.Error("Different input should produce different hash")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length = %d, want 64", len(h1))
	}
}

func TestBuildCacheKey(t *testing.T) {
	k1 := BuildCacheKey("perplexity", "sonar-pro", "sys", "file content")
	k2 := BuildCacheKey("perplexity", "sonar-pro", "sys", "file content")
	k3 := BuildCacheKey("openai", "gpt-4.1-mini", "sys", "file content")
	k4 := BuildCacheKey("perplexity", "sonar-pro", "sysfile", " content")

	if k1 != k2 {
		t.Error("Same inputs should produce same cache key")
	}
	if k1 == k3 {
		t.Error("Different provider should produce different cache key")
	}
	if k1 == k4 {
		t.Error("Prompt boundary should be part of the key")
	}
}

type countingAnalyzer struct {
	calls int
	err   error
}

func (a *countingAnalyzer) Analyze(_ context.Context, req providers.Request) (providers.Response, error) {
	a.calls++
	if a.err != nil {
		return providers.Response{}, a.err
	}
	return providers.Response{Content: "answer for " + req.UserPrompt}, nil
}

func (a *countingAnalyzer) Name() string  { return "counting" }
func (a *countingAnalyzer) Model() string { return "m1" }

func TestWrap_ServesRepeatsFromCache(t *testing.T) {
	c, err := New(true, t.TempDir(), 0)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	inner := &countingAnalyzer{}
	a := Wrap(c, inner)
	req := providers.Request{SystemPrompt: "sys", UserPrompt: "u1"}

	first, err := a.Analyze(context.Background(), req)
	if err != nil || first.Cached {
		t.Fatalf("first call = %+v, %v", first, err)
	}
	second, err := a.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("second call error: %v", err)
	}
	if !second.Cached || second.Content != first.Content {
		t.Errorf("second call = %+v, want cached copy of %q", second, first.Content)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
	if a.Name() != "counting" || a.Model() != "m1" {
		t.Error("Wrap should keep the analyzer identity")
	}
}

func TestWrap_DoesNotStoreFailures(t *testing.T) {
	c, err := New(true, t.TempDir(), 0)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	inner := &countingAnalyzer{err: errors.New("down")}
	a := Wrap(c, inner)
	req := providers.Request{UserPrompt: "u"}

	for i := 0; i < 2; i++ {
		if _, err := a.Analyze(context.Background(), req); err == nil {
			t.Fatal("expected error")
		}
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
}

func TestWrap_DisabledPassesThrough(t *testing.T) {
	c, _ := New(false, "", 0)
	inner := &countingAnalyzer{}
	if got := Wrap(c, inner); got != providers.Analyzer(inner) {
		t.Error("disabled cache should return the analyzer unchanged")
	}
	if got := Wrap(nil, inner); got != providers.Analyzer(inner) {
		t.Error("nil cache should return the analyzer unchanged")
	}
}
