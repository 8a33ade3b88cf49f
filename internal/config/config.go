package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dlyoglab/ipcheck/internal/providers"
)

// Config is the effective ipcheck configuration.
type Config struct {
	Provider string `yaml:"provider" json:"provider" validate:"required"`
	Model    string `yaml:"model,omitempty" json:"model,omitempty"`
	BaseURL  string `yaml:"baseURL,omitempty" json:"baseURL,omitempty" validate:"omitempty,url"`
	// APIKey is only read from the environment.
	APIKey string `yaml:"-" json:"-"`

	Chunking ChunkingConfig `yaml:"chunking" json:"chunking"`
	Budget   BudgetConfig   `yaml:"budget" json:"budget"`
	Mail     MailConfig     `yaml:"mail" json:"mail"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Cache    CacheConfig    `yaml:"cache" json:"cache"`
	Privacy  PrivacyConfig  `yaml:"privacy" json:"privacy"`
	Output   OutputConfig   `yaml:"output" json:"output"`
	Select   SelectConfig   `yaml:"select" json:"select"`
}

// ChunkingConfig controls how bundles become units.
type ChunkingConfig struct {
	Mode         string `yaml:"mode" json:"mode" validate:"omitempty,oneof=auto per-file fixed-slice"`
	MaxUnits     int    `yaml:"maxUnits" json:"maxUnits" validate:"gte=0"`
	MaxUnitChars int    `yaml:"maxUnitChars" json:"maxUnitChars" validate:"gt=0"`
}

// BudgetConfig controls time accounting for a run.
type BudgetConfig struct {
	MarginSeconds      int `yaml:"marginSeconds" json:"marginSeconds" validate:"gt=0"`
	CallTimeoutSeconds int `yaml:"callTimeoutSeconds" json:"callTimeoutSeconds" validate:"gt=0"`
	// InvocationSeconds is the total budget when the caller has no deadline.
	InvocationSeconds int `yaml:"invocationSeconds" json:"invocationSeconds" validate:"gt=0"`
	MaxRetries        int `yaml:"maxRetries" json:"maxRetries" validate:"gte=0,lte=10"`
	BackoffMillis     int `yaml:"backoffMillis" json:"backoffMillis" validate:"gte=0"`
}

// Margin returns the safety margin as a duration.
func (b BudgetConfig) Margin() time.Duration { return time.Duration(b.MarginSeconds) * time.Second }

// CallTimeout returns the per-call timeout as a duration.
func (b BudgetConfig) CallTimeout() time.Duration {
	return time.Duration(b.CallTimeoutSeconds) * time.Second
}

// Invocation returns the fallback total budget as a duration.
func (b BudgetConfig) Invocation() time.Duration {
	return time.Duration(b.InvocationSeconds) * time.Second
}

// Backoff returns the base retry delay as a duration.
func (b BudgetConfig) Backoff() time.Duration {
	return time.Duration(b.BackoffMillis) * time.Millisecond
}

// MailConfig addresses the emailed report.
type MailConfig struct {
	// Addresses are passed to the mail client as given.
	To   []string `yaml:"to,omitempty" json:"to,omitempty"`
	From string   `yaml:"from,omitempty" json:"from,omitempty"`
	Host string   `yaml:"host,omitempty" json:"host,omitempty"`
	Port int      `yaml:"port,omitempty" json:"port,omitempty" validate:"gte=0,lte=65535"`
	User string   `yaml:"user,omitempty" json:"user,omitempty"`
	// Password is only read from the environment.
	Password string `yaml:"-" json:"-"`
}

// StorageConfig locates uploaded bundles.
type StorageConfig struct {
	Bucket string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Region string `yaml:"region,omitempty" json:"region,omitempty"`
}

// CacheConfig controls response caching.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Dir        string `yaml:"dir,omitempty" json:"dir,omitempty"`
	TTLSeconds int    `yaml:"ttlSeconds" json:"ttlSeconds" validate:"gte=0"`
}

// PrivacyConfig controls redaction before content leaves the machine.
type PrivacyConfig struct {
	RedactSecrets bool     `yaml:"redactSecrets" json:"redactSecrets"`
	RedactPaths   []string `yaml:"redactPaths,omitempty" json:"redactPaths,omitempty"`
}

// OutputConfig controls local report output.
type OutputConfig struct {
	Format string `yaml:"format" json:"format" validate:"omitempty,oneof=markdown md html json"`
}

// SelectConfig controls which files `ipcheck bundle` picks up.
type SelectConfig struct {
	Include  []string `yaml:"include,omitempty" json:"include,omitempty"`
	Exclude  []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	MaxFiles int      `yaml:"maxFiles" json:"maxFiles" validate:"gte=0"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Provider: "perplexity",
		Chunking: ChunkingConfig{
			Mode:         "auto",
			MaxUnits:     10,
			MaxUnitChars: 3500,
		},
		Budget: BudgetConfig{
			MarginSeconds:      60,
			CallTimeoutSeconds: 180,
			InvocationSeconds:  900,
			MaxRetries:         2,
			BackoffMillis:      1000,
		},
		Mail: MailConfig{Port: 587},
		Cache: CacheConfig{
			TTLSeconds: 86400,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/*secrets*", "**/*.pem", "**/id_rsa*"},
		},
		Output: OutputConfig{Format: "markdown"},
		Select: SelectConfig{
			Include: []string{"**/*"},
			Exclude: []string{"vendor/**", "node_modules/**", "**/dist/**"},
		},
	}
}

// ConfigDir returns the platform config directory for ipcheck.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "ipcheck")
}

// ConfigPath returns the config file path. IPCHECK_CONFIG overrides the
// default location.
func ConfigPath() string {
	if p := os.Getenv("IPCHECK_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LoadFile decodes the config file at path over base. A missing file
// returns base unchanged. Only keys present in the file are replaced, so
// an explicit false or 0 overrides a default.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return base, fmt.Errorf("reading config file: %w", err)
	}
	cfg := base
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return base, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to the config file.
func Save(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// The overrides map comes from CLI flags (only non-zero values should be set).
func Load(overrides map[string]string) (Config, error) {
	cfg, err := LoadFile(ConfigPath(), Default())
	if err != nil {
		return Config{}, err
	}
	if err := mergeEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	resolveAPIKey(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envBindings maps environment variables to config keys.
var envBindings = []struct{ env, key string }{
	{"IPCHECK_PROVIDER", "provider"},
	{"IPCHECK_MODEL", "model"},
	{"IPCHECK_BASE_URL", "baseURL"},
	{"IPCHECK_CHUNK_MODE", "chunking.mode"},
	{"IPCHECK_MAX_UNITS", "chunking.maxUnits"},
	{"IPCHECK_MAX_UNIT_CHARS", "chunking.maxUnitChars"},
	{"IPCHECK_MARGIN_SECONDS", "budget.marginSeconds"},
	{"IPCHECK_CALL_TIMEOUT_SECONDS", "budget.callTimeoutSeconds"},
	{"IPCHECK_MAX_RETRIES", "budget.maxRetries"},
	{"TO_EMAIL", "mail.to"},
	{"FROM_EMAIL", "mail.from"},
	{"SMTP_HOST", "mail.host"},
	{"SMTP_PORT", "mail.port"},
	{"SMTP_USER", "mail.user"},
	{"AWS_REGION", "storage.region"},
	{"IPCHECK_BUCKET", "storage.bucket"},
	{"IPCHECK_FORMAT", "output.format"},
}

func mergeEnv(cfg *Config) error {
	for _, b := range envBindings {
		v := os.Getenv(b.env)
		if v == "" {
			continue
		}
		if err := SetField(cfg, b.key, v); err != nil {
			return fmt.Errorf("%s: %w", b.env, err)
		}
	}
	cfg.Mail.Password = os.Getenv("SMTP_PASSWORD")
	if v := os.Getenv("IPCHECK_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	return nil
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	for key, v := range overrides {
		if v == "" {
			continue
		}
		if err := SetField(cfg, key, v); err != nil {
			return err
		}
	}
	return nil
}

// resolveAPIKey falls back to the provider's own key variable.
func resolveAPIKey(cfg *Config) {
	if cfg.APIKey != "" {
		return
	}
	if p, ok := providers.LookupPreset(cfg.Provider); ok && p.KeyEnv != "" {
		cfg.APIKey = os.Getenv(p.KeyEnv)
	}
}

// Keys lists the names accepted by SetField.
func Keys() []string {
	return []string{
		"provider", "model", "baseURL",
		"chunking.mode", "chunking.maxUnits", "chunking.maxUnitChars",
		"budget.marginSeconds", "budget.callTimeoutSeconds", "budget.invocationSeconds",
		"budget.maxRetries", "budget.backoffMillis",
		"mail.to", "mail.from", "mail.host", "mail.port", "mail.user",
		"storage.bucket", "storage.region",
		"cache.enabled", "cache.dir", "cache.ttlSeconds",
		"privacy.redactSecrets", "privacy.redactPaths",
		"output.format",
		"select.include", "select.exclude", "select.maxFiles",
	}
}

// SetField sets a single config field by key name. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "provider":
		cfg.Provider = value
	case "model":
		cfg.Model = value
	case "baseURL":
		cfg.BaseURL = value
	case "chunking.mode":
		cfg.Chunking.Mode = value
	case "chunking.maxUnits":
		return setInt(&cfg.Chunking.MaxUnits, key, value)
	case "chunking.maxUnitChars":
		return setInt(&cfg.Chunking.MaxUnitChars, key, value)
	case "budget.marginSeconds":
		return setInt(&cfg.Budget.MarginSeconds, key, value)
	case "budget.callTimeoutSeconds":
		return setInt(&cfg.Budget.CallTimeoutSeconds, key, value)
	case "budget.invocationSeconds":
		return setInt(&cfg.Budget.InvocationSeconds, key, value)
	case "budget.maxRetries":
		return setInt(&cfg.Budget.MaxRetries, key, value)
	case "budget.backoffMillis":
		return setInt(&cfg.Budget.BackoffMillis, key, value)
	case "mail.to":
		cfg.Mail.To = splitList(value)
	case "mail.from":
		cfg.Mail.From = value
	case "mail.host":
		cfg.Mail.Host = value
	case "mail.port":
		return setInt(&cfg.Mail.Port, key, value)
	case "mail.user":
		cfg.Mail.User = value
	case "storage.bucket":
		cfg.Storage.Bucket = value
	case "storage.region":
		cfg.Storage.Region = value
	case "cache.enabled":
		return setBool(&cfg.Cache.Enabled, key, value)
	case "cache.dir":
		cfg.Cache.Dir = value
	case "cache.ttlSeconds":
		return setInt(&cfg.Cache.TTLSeconds, key, value)
	case "privacy.redactSecrets":
		return setBool(&cfg.Privacy.RedactSecrets, key, value)
	case "privacy.redactPaths":
		cfg.Privacy.RedactPaths = splitList(value)
	case "output.format":
		cfg.Output.Format = value
	case "select.include":
		cfg.Select.Include = splitList(value)
	case "select.exclude":
		cfg.Select.Exclude = splitList(value)
	case "select.maxFiles":
		return setInt(&cfg.Select.MaxFiles, key, value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s must be true or false: %w", key, err)
	}
	*dst = b
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that the provider is known.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, ok := providers.LookupPreset(c.Provider); !ok {
		return fmt.Errorf("invalid configuration: unknown provider %q", c.Provider)
	}
	return nil
}

// ConfigurationError reports required settings that are absent.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "not configured: missing " + strings.Join(e.Missing, ", ")
}

// RequireAnalysis checks the settings needed to call the analysis service.
func (c Config) RequireAnalysis() error {
	var missing []string
	if p, ok := providers.LookupPreset(c.Provider); ok && p.KeyRequired && c.APIKey == "" {
		missing = append(missing, p.KeyEnv)
	}
	return missingErr(missing)
}

// RequireDelivery checks the settings needed to email a report.
func (c Config) RequireDelivery() error {
	var missing []string
	if len(c.Mail.To) == 0 {
		missing = append(missing, "TO_EMAIL")
	}
	if c.Mail.Host == "" {
		missing = append(missing, "SMTP_HOST")
	}
	if c.Mail.User == "" {
		missing = append(missing, "SMTP_USER")
	}
	if c.Mail.Password == "" {
		missing = append(missing, "SMTP_PASSWORD")
	}
	return missingErr(missing)
}

func missingErr(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return &ConfigurationError{Missing: missing}
}
