package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolate points the config file at a temp dir and clears env bindings.
func isolate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("IPCHECK_CONFIG", path)
	for _, b := range envBindings {
		t.Setenv(b.env, "")
	}
	for _, k := range []string{"SMTP_PASSWORD", "IPCHECK_API_KEY", "PERPLEXITY_API_KEY", "OPENAI_API_KEY"} {
		t.Setenv(k, "")
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Provider != "perplexity" {
		t.Errorf("Default provider = %q, want %q", cfg.Provider, "perplexity")
	}
	if cfg.Chunking.MaxUnits != 10 || cfg.Chunking.MaxUnitChars != 3500 {
		t.Errorf("Default chunking = %+v", cfg.Chunking)
	}
	if cfg.Budget.Margin().Seconds() != 60 {
		t.Errorf("Default margin = %s, want 60s", cfg.Budget.Margin())
	}
	if cfg.Budget.CallTimeout().Seconds() != 180 {
		t.Errorf("Default call timeout = %s, want 180s", cfg.Budget.CallTimeout())
	}
	if cfg.Budget.MaxRetries != 2 || cfg.Budget.Backoff().Milliseconds() != 1000 {
		t.Errorf("Default retry = %d / %s", cfg.Budget.MaxRetries, cfg.Budget.Backoff())
	}
	if !cfg.Privacy.RedactSecrets {
		t.Error("Default redactSecrets should be true")
	}
	if cfg.Cache.Enabled {
		t.Error("Default cache should be disabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestMergeEnv(t *testing.T) {
	isolate(t)
	t.Setenv("IPCHECK_PROVIDER", "openai")
	t.Setenv("IPCHECK_MODEL", "gpt-4.1")
	t.Setenv("IPCHECK_MAX_UNITS", "5")
	t.Setenv("TO_EMAIL", "a@example.com, b@example.com")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SMTP_USER", "bot@example.com")
	t.Setenv("SMTP_PASSWORD", "hunter2")
	t.Setenv("IPCHECK_API_KEY", "key-1")

	cfg := Default()
	if err := mergeEnv(&cfg); err != nil {
		t.Fatalf("mergeEnv error: %v", err)
	}

	if cfg.Provider != "openai" || cfg.Model != "gpt-4.1" {
		t.Errorf("Provider/Model = %q/%q", cfg.Provider, cfg.Model)
	}
	if cfg.Chunking.MaxUnits != 5 {
		t.Errorf("MaxUnits = %d, want 5", cfg.Chunking.MaxUnits)
	}
	if len(cfg.Mail.To) != 2 || cfg.Mail.To[1] != "b@example.com" {
		t.Errorf("Mail.To = %v", cfg.Mail.To)
	}
	if cfg.Mail.Port != 2525 || cfg.Mail.Password != "hunter2" {
		t.Errorf("Mail = %+v", cfg.Mail)
	}
	if cfg.APIKey != "key-1" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
}

func TestMergeEnv_InvalidInt(t *testing.T) {
	isolate(t)
	t.Setenv("SMTP_PORT", "submission")

	cfg := Default()
	err := mergeEnv(&cfg)
	if err == nil || !strings.Contains(err.Error(), "SMTP_PORT") {
		t.Errorf("mergeEnv error = %v, want one naming SMTP_PORT", err)
	}
}

func TestMergeOverrides(t *testing.T) {
	cfg := Default()
	err := mergeOverrides(&cfg, map[string]string{
		"chunking.mode":        "fixed-slice",
		"budget.marginSeconds": "30",
		"model":                "",
	})
	if err != nil {
		t.Fatalf("mergeOverrides error: %v", err)
	}
	if cfg.Chunking.Mode != "fixed-slice" || cfg.Budget.MarginSeconds != 30 {
		t.Errorf("overrides not applied: %+v %+v", cfg.Chunking, cfg.Budget)
	}
	if cfg.Model != "" {
		t.Error("empty override should be ignored")
	}
	if err := mergeOverrides(&cfg, nil); err != nil {
		t.Errorf("nil overrides: %v", err)
	}
}

func TestSetField(t *testing.T) {
	cfg := Default()
	for _, key := range Keys() {
		value := "x"
		switch {
		case strings.HasSuffix(key, "enabled"), strings.HasSuffix(key, "redactSecrets"):
			value = "false"
		case strings.Contains(key, "Seconds"), strings.Contains(key, "max"), strings.Contains(key, "Max"),
			strings.HasSuffix(key, "port"), strings.HasSuffix(key, "Millis"):
			value = "7"
		}
		if err := SetField(&cfg, key, value); err != nil {
			t.Errorf("SetField(%q, %q) error: %v", key, value, err)
		}
	}
	if cfg.Mail.Port != 7 || cfg.Select.MaxFiles != 7 {
		t.Errorf("numeric fields not set: %+v", cfg)
	}
	if cfg.Privacy.RedactSecrets {
		t.Error("redactSecrets should be false")
	}
}

func TestSetField_UnknownKey(t *testing.T) {
	cfg := Default()
	if err := SetField(&cfg, "nonexistent", "value"); err == nil {
		t.Error("Expected error for unknown key")
	}
}

func TestSetField_InvalidValues(t *testing.T) {
	cfg := Default()
	if err := SetField(&cfg, "chunking.maxUnits", "abc"); err == nil {
		t.Error("Expected error for non-integer value")
	}
	if err := SetField(&cfg, "cache.enabled", "maybe"); err == nil {
		t.Error("Expected error for non-boolean value")
	}
}

func TestLoadFile_YAMLKeepsUnsetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "provider: openai\ncache:\n  enabled: true\nprivacy:\n  redactSecrets: false\nchunking:\n  maxUnits: 3\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path, Default())
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if cfg.Provider != "openai" || !cfg.Cache.Enabled || cfg.Privacy.RedactSecrets {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Chunking.MaxUnits != 3 || cfg.Chunking.MaxUnitChars != 3500 {
		t.Errorf("Chunking = %+v, want maxUnits from file and maxUnitChars default", cfg.Chunking)
	}
	if cfg.Cache.TTLSeconds != 86400 {
		t.Errorf("TTLSeconds = %d, want default", cfg.Cache.TTLSeconds)
	}
}

func TestLoadFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"provider":"ollama","output":{"format":"html"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path, Default())
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if cfg.Provider != "ollama" || cfg.Output.Format != "html" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadFile_NoFile(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), Default())
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if cfg.Provider != "perplexity" {
		t.Errorf("missing file should return base, got provider %q", cfg.Provider)
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("provider: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path, Default()); err == nil {
		t.Error("Expected parse error")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := isolate(t)

	cfg := Default()
	cfg.Provider = "openai"
	cfg.Model = "gpt-4.1"
	cfg.Chunking.MaxUnits = 25
	cfg.Mail.Password = "never-saved"

	if err := Save(cfg); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved config: %v", err)
	}
	if strings.Contains(string(data), "never-saved") {
		t.Error("secrets must not be written to the config file")
	}

	loaded, err := Load(nil)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if loaded.Provider != "openai" || loaded.Model != "gpt-4.1" || loaded.Chunking.MaxUnits != 25 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := isolate(t)
	if err := os.WriteFile(path, []byte("provider: openai\nmodel: from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IPCHECK_MODEL", "from-env")

	cfg, err := Load(map[string]string{"provider": "ollama"})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Provider != "ollama" {
		t.Errorf("Provider = %q, want override", cfg.Provider)
	}
	if cfg.Model != "from-env" {
		t.Errorf("Model = %q, want env value", cfg.Model)
	}
}

func TestLoad_ResolvesProviderKey(t *testing.T) {
	isolate(t)
	t.Setenv("PERPLEXITY_API_KEY", "pplx-key")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.APIKey != "pplx-key" {
		t.Errorf("APIKey = %q, want provider key", cfg.APIKey)
	}
	if err := cfg.RequireAnalysis(); err != nil {
		t.Errorf("RequireAnalysis: %v", err)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	isolate(t)
	if _, err := Load(map[string]string{"chunking.mode": "lines"}); err == nil {
		t.Error("Expected validation error for unknown chunk mode")
	}
	if _, err := Load(map[string]string{"provider": "acme"}); err == nil {
		t.Error("Expected validation error for unknown provider")
	}
	_, err := Load(map[string]string{"mail.port": "70000"})
	if err == nil || !strings.Contains(err.Error(), "Mail.Port") {
		t.Errorf("error = %v, want one naming Mail.Port", err)
	}
}

func TestLoad_ZeroMarginRejected(t *testing.T) {
	isolate(t)
	_, err := Load(map[string]string{"budget.marginSeconds": "0"})
	if err == nil || !strings.Contains(err.Error(), "MarginSeconds") {
		t.Errorf("error = %v, want one naming MarginSeconds", err)
	}
}

func TestLoad_DisplayNameRecipient(t *testing.T) {
	isolate(t)
	t.Setenv("TO_EMAIL", "IP Desk <ip@example.com>")
	t.Setenv("FROM_EMAIL", "Bot <bot@example.com>")
	t.Setenv("SMTP_HOST", "smtp.example.com")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(cfg.Mail.To) != 1 || cfg.Mail.To[0] != "IP Desk <ip@example.com>" {
		t.Errorf("Mail.To = %q", cfg.Mail.To)
	}
	if cfg.Mail.From != "Bot <bot@example.com>" {
		t.Errorf("Mail.From = %q", cfg.Mail.From)
	}
}

func TestRequireAnalysis(t *testing.T) {
	cfg := Default()
	err := cfg.RequireAnalysis()
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want ConfigurationError", err)
	}
	if len(ce.Missing) != 1 || ce.Missing[0] != "PERPLEXITY_API_KEY" {
		t.Errorf("Missing = %v", ce.Missing)
	}

	cfg.Provider = "ollama"
	if err := cfg.RequireAnalysis(); err != nil {
		t.Errorf("ollama needs no key: %v", err)
	}
}

func TestRequireDelivery(t *testing.T) {
	cfg := Default()
	err := cfg.RequireDelivery()
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want ConfigurationError", err)
	}
	if got := strings.Join(ce.Missing, ","); got != "TO_EMAIL,SMTP_HOST,SMTP_USER,SMTP_PASSWORD" {
		t.Errorf("Missing = %s", got)
	}
	if !strings.HasPrefix(err.Error(), "not configured") {
		t.Errorf("Error() = %q", err.Error())
	}

	cfg.Mail = MailConfig{To: []string{"a@example.com"}, Host: "smtp.example.com", User: "u", Password: "p"}
	if err := cfg.RequireDelivery(); err != nil {
		t.Errorf("complete mail config: %v", err)
	}
}
