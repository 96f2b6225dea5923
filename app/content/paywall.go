package content

import (
	"regexp"
	"strings"
)

var paywallMarkers = []string{
	"pmpro_content_message",
	"pmpro_login_required",
	"this content is for members only",
	"this content is restricted to",
	"you must be logged in to view",
	"subscribe to continue reading",
	"log in to continue reading",
	"already a member? log in",
}

var paywallPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)class\s*=\s*["'][^"']*\b(paywall|pmpro_content_message|restricted-content|members-only)\b`),
	regexp.MustCompile(`(?i)you\s+have\s+reached\s+(your|the)\s+(free\s+)?(article|post|view)s?\s+limit`),
	regexp.MustCompile(`(?i)(register|sign\s+up|log\s*in)\s+(now\s+)?to\s+(read|view|access)\s+(the\s+)?(full|rest|entire)`),
}

// DetectPaywall scans page HTML for membership restriction markers and
// returns the first indicator found.
func DetectPaywall(html string) (string, bool) {
	lower := strings.ToLower(html)
	for _, marker := range paywallMarkers {
		if strings.Contains(lower, marker) {
			return marker, true
		}
	}

	for _, pattern := range paywallPatterns {
		if m := pattern.FindString(html); m != "" {
			return m, true
		}
	}

	return "", false
}
