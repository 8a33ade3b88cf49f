package cache

import (
	"context"

	"github.com/dlyoglab/ipcheck/internal/providers"
)

type cachedAnalyzer struct {
	cache *Cache
	next  providers.Analyzer
}

// Wrap returns an Analyzer that answers repeated prompts from c. Only
// successful responses are stored. A nil or disabled cache returns next
// unchanged.
func Wrap(c *Cache, next providers.Analyzer) providers.Analyzer {
	if c == nil || !c.Enabled() {
		return next
	}
	return &cachedAnalyzer{cache: c, next: next}
}

func (a *cachedAnalyzer) Analyze(ctx context.Context, req providers.Request) (providers.Response, error) {
	key := BuildCacheKey(a.next.Name(), a.next.Model(), req.SystemPrompt, req.UserPrompt)
	if content, ok := a.cache.Get(key); ok {
		return providers.Response{Content: content, Cached: true}, nil
	}
	resp, err := a.next.Analyze(ctx, req)
	if err != nil {
		return resp, err
	}
	// Write errors are ignored; the next call misses.
	_ = a.cache.Put(key, resp.Content)
	return resp, nil
}

func (a *cachedAnalyzer) Name() string  { return a.next.Name() }
func (a *cachedAnalyzer) Model() string { return a.next.Model() }
