package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// Request contains the data sent to the analysis service for one unit.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	// Timeout bounds the whole call; zero means no per-call limit.
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// Response contains the raw textual result of one call.
type Response struct {
	Content    string
	TokensUsed int
	Cached     bool
}

// Analyzer is the analysis service abstraction. Implementations perform a
// single request/response and never retry.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (Response, error)
	Name() string
	Model() string
}

// Preset describes an OpenAI-compatible chat completions endpoint.
type Preset struct {
	Name         string
	URL          string
	KeyEnv       string
	DefaultModel string
	Models       []string
	KeyRequired  bool
}

// Presets lists the known providers, default first.
var Presets = []Preset{
	{
		Name:         "perplexity",
		URL:          "https://api.perplexity.ai/chat/completions",
		KeyEnv:       "PERPLEXITY_API_KEY",
		DefaultModel: "sonar-pro",
		Models:       []string{"sonar-pro", "sonar", "sonar-reasoning-pro", "sonar-deep-research"},
		KeyRequired:  true,
	},
	{
		Name:         "openai",
		URL:          "https://api.openai.com/v1/chat/completions",
		KeyEnv:       "OPENAI_API_KEY",
		DefaultModel: "gpt-4.1-mini",
		Models:       []string{"gpt-4.1-mini", "gpt-4.1", "o3-mini"},
		KeyRequired:  true,
	},
	{
		Name:         "ollama",
		URL:          "http://localhost:11434/v1/chat/completions",
		KeyEnv:       "IPCHECK_OLLAMA_API_KEY",
		DefaultModel: "llama3.3",
		Models:       []string{"llama3.3", "llama3.2", "qwen2.5"},
	},
}

// LookupPreset finds a preset by name ("lmstudio" is an alias for ollama).
func LookupPreset(name string) (Preset, bool) {
	if name == "lmstudio" {
		name = "ollama"
	}
	for _, p := range Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// Options configures New. Empty fields fall back to the preset.
type Options struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

// New creates an analyzer for the named provider.
func New(opts Options) (*ChatClient, error) {
	preset, ok := LookupPreset(opts.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", opts.Provider)
	}
	key := opts.APIKey
	if key == "" && preset.KeyEnv != "" {
		key = os.Getenv(preset.KeyEnv)
	}
	if key == "" && preset.KeyRequired {
		return nil, fmt.Errorf("%s environment variable is not set", preset.KeyEnv)
	}
	model := opts.Model
	if model == "" {
		model = preset.DefaultModel
	}
	url := preset.URL
	if opts.BaseURL != "" {
		url = normalizeURL(opts.BaseURL)
	}
	return NewChatClient(preset.Name, url, key, model), nil
}

// normalizeURL accepts a bare host, a /v1 base or a full completions URL.
func normalizeURL(base string) string {
	base = strings.TrimRight(base, "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	if strings.HasSuffix(base, "/v1") || strings.HasSuffix(base, "api.perplexity.ai") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}
