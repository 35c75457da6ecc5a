// Package logging keeps secrets out of scribe's logs. Build environments
// routinely carry credentials (registry tokens, cloud keys), and the
// snapshot and command lines logged by the pipeline would otherwise copy
// them into log files.
package logging

import (
	"io"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// RedactedValue is the replacement string for sensitive data.
const RedactedValue = "[REDACTED]"

//nolint:gochecknoglobals // compiled once for reuse
var sensitivePatterns = []*regexp.Regexp{
	// AWS access key ids
	regexp.MustCompile(`\b(AKIA|ASIA)[A-Z0-9]{16}\b`),

	// GitHub tokens (ghp_, gho_, ghu_, ghs_, ghr_)
	regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{20,}`),

	// Environment assignments whose name marks a secret: FOO_TOKEN=..., S3_SECRET_KEY=...
	regexp.MustCompile(`\b[A-Za-z0-9_]*(?i:TOKEN|SECRET|PASSWORD|PASSWD|_KEY|APIKEY|CREDENTIALS?)=[^\s"']+`),

	// Generic key: value pairs
	regexp.MustCompile(`(?i)(api[_-]?key|secret|password|passwd|credential|access[_-]?key)\s*[:=]\s*["']?[^\s"']{8,}["']?`),

	// Bearer tokens and authorization headers
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._~+/-]{16,}=*`),
	regexp.MustCompile(`(?i)authorization\s*[:=]\s*["']?[^\s"']{16,}["']?`),

	// Credentials embedded in URLs
	regexp.MustCompile(`://[^/\s:@]+:[^/\s@]+@`),

	// Private key blocks
	regexp.MustCompile(`-----BEGIN[A-Z ]*PRIVATE KEY-----`),
}

//nolint:gochecknoglobals // lookup table
var sensitiveNameParts = []string{
	"token",
	"secret",
	"password",
	"passwd",
	"credential",
	"private_key",
	"api_key",
	"apikey",
	"access_key",
	"authorization",
}

// SensitiveDataHook flags log events whose message contains secrets.
// zerolog hooks cannot rewrite the message; FilteringWriter does the
// actual redaction on the output side.
type SensitiveDataHook struct{}

// NewSensitiveDataHook creates a SensitiveDataHook.
func NewSensitiveDataHook() *SensitiveDataHook {
	return &SensitiveDataHook{}
}

// Run implements zerolog.Hook.
func (h *SensitiveDataHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if ContainsSensitiveData(msg) {
		e.Bool("contains_filtered_data", true)
	}
}

// ContainsSensitiveData reports whether s matches any secret pattern.
func ContainsSensitiveData(s string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}

// FilterSensitiveValue replaces every secret in value with RedactedValue.
func FilterSensitiveValue(value string) string {
	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}
	return result
}

// IsSensitiveName reports whether a field or variable name denotes a secret.
// Names ending in _KEY count as sensitive.
func IsSensitiveName(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, "_key") {
		return true
	}
	for _, part := range sensitiveNameParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}

// SafeValue returns value with secrets removed, or RedactedValue outright
// when the name itself marks a secret.
//
// Usage:
//
//	log.Debug().Str(name, logging.SafeValue(name, value)).Msg("captured variable")
func SafeValue(name, value string) string {
	if IsSensitiveName(name) {
		return RedactedValue
	}
	return FilterSensitiveValue(value)
}

// RedactEnviron returns a copy of a NAME=VALUE list with sensitive values
// replaced. Entries without '=' pass through untouched.
func RedactEnviron(environ []string) []string {
	out := make([]string, len(environ))
	for i, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			out[i] = kv
			continue
		}
		out[i] = name + "=" + SafeValue(name, value)
	}
	return out
}

// FilteringWriter wraps an io.Writer and redacts secrets from everything
// written through it.
type FilteringWriter struct {
	w io.Writer
}

// NewFilteringWriter creates a FilteringWriter around w.
func NewFilteringWriter(w io.Writer) *FilteringWriter {
	return &FilteringWriter{w: w}
}

// Write implements io.Writer. It reports len(p) on success so callers do
// not treat redaction as a short write.
func (fw *FilteringWriter) Write(p []byte) (int, error) {
	if _, err := fw.w.Write([]byte(FilterSensitiveValue(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
