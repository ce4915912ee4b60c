package privacy

import (
	"regexp"
	"strings"
)

// privateTagRegex matches <private>...</private> blocks (non-greedy, dotall).
var privateTagRegex = regexp.MustCompile(`(?s)<private>.*?</private>`)

// secretPatterns match credentials that commonly end up on a shared screen or
// get read aloud during a demo.
var secretPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\bsk-(?:ant-|proj-)?[A-Za-z0-9_\-]{16,}`), redacted},
	{regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`), redacted},
	{regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{30,}\b`), redacted},
	{regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{35}\b`), redacted},
	{regexp.MustCompile(`\bxox[abprs]-[A-Za-z0-9\-]{10,}`), redacted},
	{regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._\-]{20,}`), redacted},
	{regexp.MustCompile(`(?i)((?:api[_-]?key|secret|token|password|passwd)\s*[:=]\s*)["']?[^\s"']{6,}["']?`), "${1}" + redacted},
}

const redacted = "[REDACTED]"

// StripPrivateTags removes all <private>...</private> blocks from content.
// Returns the cleaned content with stripped blocks replaced by empty string.
func StripPrivateTags(content string) string {
	return strings.TrimSpace(privateTagRegex.ReplaceAllString(content, ""))
}

// HasOnlyPrivateContent returns true if the content is entirely composed of
// <private> blocks and whitespace, meaning nothing useful remains after stripping.
func HasOnlyPrivateContent(content string) bool {
	stripped := StripPrivateTags(content)
	return stripped == ""
}

// MaskSecrets replaces credential-looking substrings with a placeholder.
// For key=value forms the key is kept.
func MaskSecrets(content string) string {
	for _, p := range secretPatterns {
		content = p.re.ReplaceAllString(content, p.repl)
	}
	return content
}

// Redact strips private blocks and masks secrets. It is applied to every
// captured text before it is stored.
func Redact(content string) string {
	return MaskSecrets(StripPrivateTags(content))
}
