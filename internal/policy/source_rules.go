package policy

import (
	"net/url"
	"strings"

	"github.com/mediapulse/mediapulse-back/internal/domain"
)

// Source rules drop low-trust outlets and obvious press-release mills before
// ranking. The list is deliberately small; ranking handles the rest.
var blockedSourceDomains = map[string]struct{}{
	"prnewswire.com":     {},
	"globenewswire.com":  {},
	"businesswire.com":   {},
	"openpr.com":         {},
	"einpresswire.com":   {},
	"marketscreener.com": {},
}

var spamTitleMarkers = []string{
	"press release",
	"sponsored",
	"advertorial",
	"[ad]",
}

// FilterArticles removes candidates from blocked source domains and
// candidates whose titles carry promotional markers.
func FilterArticles(candidates []domain.Article) []domain.Article {
	filtered := make([]domain.Article, 0, len(candidates))
	for _, candidate := range candidates {
		if isBlockedURL(candidate.URL) {
			continue
		}
		if hasSpamTitle(candidate.Title) {
			continue
		}
		filtered = append(filtered, candidate)
	}
	return filtered
}

func isBlockedURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	_, blocked := blockedSourceDomains[host]
	return blocked
}

func hasSpamTitle(title string) bool {
	normalized := strings.ToLower(title)
	for _, marker := range spamTitleMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}
