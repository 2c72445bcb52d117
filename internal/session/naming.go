package session

import "strings"

var brandSubstrings = []string{"chatwise", "flowdown", "claude"}

// CleanName canonicalizes a raw name or User-Agent string into the display
// form used in the active-clients projection.
func CleanName(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)

	for _, brand := range brandSubstrings {
		if strings.Contains(lower, brand) {
			return capitalize(brand)
		}
	}

	if strings.Contains(lower, "mozilla") {
		switch {
		case strings.Contains(lower, "chrome"):
			return "Chrome"
		case strings.Contains(lower, "safari"):
			return "Safari"
		case strings.Contains(lower, "firefox"):
			return "Firefox"
		default:
			return "Browser"
		}
	}

	if idx := strings.Index(raw, "/"); idx > 0 {
		return raw[:idx]
	}

	if looksReverseDNS(raw) {
		parts := strings.Split(raw, ".")
		return capitalize(parts[len(parts)-1])
	}

	return raw
}

func looksReverseDNS(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) < 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
