package quality

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mediapulse/mediapulse-back/internal/domain"
)

var ErrQualityRejected = errors.New("report content failed quality checks")

const (
	maxSummaryLength      = 1200
	maxShortSummaryLength = 320
	maxBodyLength         = 6000
)

// ReportValidator normalizes generated content before persistence and
// rejects content a reader would consider broken.
type ReportValidator struct{}

func NewReportValidator() *ReportValidator {
	return &ReportValidator{}
}

func (v *ReportValidator) Validate(content domain.ReportContent) (domain.ReportContent, error) {
	summary := normalizeText(content.Summary)
	if summary == "" {
		return domain.ReportContent{}, fmt.Errorf("%w: empty overall summary", ErrQualityRejected)
	}
	if len(summary) > maxSummaryLength {
		summary = truncateAtWord(summary, maxSummaryLength)
	}

	if len(content.Articles) == 0 {
		return domain.ReportContent{}, fmt.Errorf("%w: no articles", ErrQualityRejected)
	}

	seenURLs := make(map[string]struct{}, len(content.Articles))
	articles := make([]domain.Article, 0, len(content.Articles))
	for _, article := range content.Articles {
		title := normalizeText(article.Title)
		shortSummary := normalizeText(article.ShortSummary)
		if title == "" || shortSummary == "" {
			return domain.ReportContent{}, fmt.Errorf("%w: article missing title or summary", ErrQualityRejected)
		}

		key := strings.ToLower(strings.TrimSpace(article.URL))
		if key != "" {
			if _, dup := seenURLs[key]; dup {
				continue
			}
			seenURLs[key] = struct{}{}
		}

		if len(shortSummary) > maxShortSummaryLength {
			shortSummary = truncateAtWord(shortSummary, maxShortSummaryLength)
		}
		body := normalizeText(article.Body)
		if body == "" {
			body = shortSummary
		}
		if len(body) > maxBodyLength {
			body = truncateAtWord(body, maxBodyLength)
		}

		article.Title = title
		article.ShortSummary = shortSummary
		article.Body = body
		articles = append(articles, article)
	}

	if len(articles) == 0 {
		return domain.ReportContent{}, fmt.Errorf("%w: no valid articles after normalization", ErrQualityRejected)
	}

	return domain.ReportContent{
		Summary:  summary,
		Articles: articles,
	}, nil
}

func normalizeText(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func truncateAtWord(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	truncated := value[:limit]
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > limit/2 {
		truncated = truncated[:lastSpace]
	}
	return strings.TrimSpace(truncated) + "…"
}
