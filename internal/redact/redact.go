package redact

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dlyoglab/ipcheck/internal/bundle"
)

const placeholder = "[REDACTED]"

// PathNotice replaces the whole content of a file withheld by path.
const PathNotice = placeholder + " (file content withheld by path policy)\n"

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`),
	regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`),
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`),
	// JWT
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`),
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`),
	// Perplexity
	regexp.MustCompile(`pplx-[A-Za-z0-9]{20,}`),
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
	// SMTP and database URLs with inline credentials
	regexp.MustCompile(`(?i)\b[a-z][a-z0-9+.-]*://[^\s:/@]+:[^\s@/]+@`),
	regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`),
}

// Secrets replaces detected secrets in text with [REDACTED].
func Secrets(text string) string {
	result := text
	for _, pat := range secretPatterns {
		result = pat.ReplaceAllLiteralString(result, placeholder)
	}
	return result
}

// ShouldRedactPath reports whether path matches any pattern. A leading
// "**/" also matches the base name in any directory.
func ShouldRedactPath(path string, patterns []string) bool {
	path = filepath.ToSlash(path)
	for _, pattern := range patterns {
		if matched, err := filepath.Match(pattern, path); err == nil && matched {
			return true
		}
		if clean, ok := strings.CutPrefix(pattern, "**/"); ok {
			if matched, err := filepath.Match(clean, filepath.Base(path)); err == nil && matched {
				return true
			}
		}
	}
	return false
}

// Content withholds the content of a file matching redactPaths and scrubs
// secrets from everything else.
func Content(content, path string, redactPaths []string) string {
	if ShouldRedactPath(path, redactPaths) {
		return PathNotice
	}
	return Secrets(content)
}

// Policy selects which redactions apply to a bundle.
type Policy struct {
	Secrets bool
	Paths   []string
}

// Enabled reports whether the policy changes anything.
func (p Policy) Enabled() bool {
	return p.Secrets || len(p.Paths) > 0
}

// Bundle applies p to every entry and returns the new bundle with the
// number of entries whose content changed. Entry names are kept.
func Bundle(b bundle.Bundle, p Policy) (bundle.Bundle, int) {
	if !p.Enabled() {
		return b, 0
	}
	changed := 0
	out := b.Map(func(name, content string) string {
		next := content
		switch {
		case ShouldRedactPath(name, p.Paths):
			next = PathNotice
		case p.Secrets:
			next = Secrets(content)
		}
		if next != content {
			changed++
		}
		return next
	})
	return out, changed
}
