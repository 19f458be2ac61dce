package extract

import (
	"regexp"
	"strings"
)

// secretPatterns match credentials that should never end up in a stored
// writing sample.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*['"]?[a-zA-Z0-9_-]{20,}['"]?`),
	regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[:=]\s*['"][^'"]{8,}['"]`),
	regexp.MustCompile(`(?i)(secret[_-]?key|secret[_-]?token|auth[_-]?token)\s*[:=]\s*['"]?[a-zA-Z0-9_-]{20,}['"]?`),
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9-]{20,}`),
	regexp.MustCompile(`sk-(or-v1-)?[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`gh[pous]_[a-zA-Z0-9]{36,}`),
	regexp.MustCompile(`github_pat_[a-zA-Z0-9_]{22,}`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_-]{20,}`),
}

const redactedMarker = "[REDACTED]"

// ContainsSecrets reports whether text looks like it holds a credential.
func ContainsSecrets(text string) bool {
	if text == "" {
		return false
	}
	for _, p := range secretPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// Redact replaces detected secrets, keeping the key name of key=value pairs.
func Redact(text string) string {
	if text == "" {
		return text
	}
	for _, p := range secretPatterns {
		text = p.ReplaceAllStringFunc(text, func(match string) string {
			if idx := strings.IndexAny(match, "=:"); idx != -1 {
				return match[:idx+1] + redactedMarker
			}
			return redactedMarker
		})
	}
	return text
}
