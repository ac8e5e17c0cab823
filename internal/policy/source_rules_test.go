package policy

import (
	"testing"

	"github.com/mediapulse/mediapulse-back/internal/domain"
)

func TestFilterArticlesDropsBlockedDomains(t *testing.T) {
	candidates := []domain.Article{
		{Title: "Real coverage", URL: "https://techdaily.test/story"},
		{Title: "Wire release", URL: "https://www.prnewswire.com/release/123"},
		{Title: "Another wire", URL: "https://globenewswire.com/item"},
	}

	filtered := FilterArticles(candidates)
	if len(filtered) != 1 {
		t.Fatalf("expected 1 article after filtering, got %d", len(filtered))
	}
	if filtered[0].Title != "Real coverage" {
		t.Fatalf("expected the real article kept, got %q", filtered[0].Title)
	}
}

func TestFilterArticlesDropsSpamTitles(t *testing.T) {
	candidates := []domain.Article{
		{Title: "Acme expands into Europe", URL: "https://a.test/1"},
		{Title: "SPONSORED: the future of robotics", URL: "https://b.test/2"},
		{Title: "Press Release: Acme announces product", URL: "https://c.test/3"},
		{Title: "[Ad] Best robots of 2025", URL: "https://d.test/4"},
	}

	filtered := FilterArticles(candidates)
	if len(filtered) != 1 {
		t.Fatalf("expected 1 article after filtering, got %d", len(filtered))
	}
	if filtered[0].URL != "https://a.test/1" {
		t.Fatalf("expected the clean article kept, got %q", filtered[0].URL)
	}
}

func TestIsBlockedURLHandlesOddInput(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{url: "https://prnewswire.com/x", want: true},
		{url: "https://WWW.BusinessWire.com/y", want: true},
		{url: "https://notprnewswire.example/z", want: false},
		{url: "not a url", want: false},
		{url: "", want: false},
	}
	for _, tc := range cases {
		if got := isBlockedURL(tc.url); got != tc.want {
			t.Fatalf("isBlockedURL(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}
