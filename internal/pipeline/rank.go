package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/mediapulse/mediapulse-back/internal/domain"
)

// LexicalRanker scores candidates on lexical relevance to the request,
// recency and content quality, then selects the top articles while skipping
// duplicate sources.
type LexicalRanker struct {
	now func() time.Time
}

func NewLexicalRanker() *LexicalRanker {
	return &LexicalRanker{now: time.Now}
}

func (r *LexicalRanker) Rank(
	request domain.ReportRequest,
	candidates []domain.Article,
	limit int,
) []domain.Article {
	if limit <= 0 {
		limit = 5
	}

	type scored struct {
		article domain.Article
		score   float64
	}
	items := make([]scored, 0, len(candidates))
	for index, candidate := range candidates {
		items = append(items, scored{
			article: candidate,
			score:   r.score(request, index, candidate),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].score == items[j].score {
			return items[i].article.URL < items[j].article.URL
		}
		return items[i].score > items[j].score
	})

	seenSources := make(map[string]struct{}, limit)
	seenURLs := make(map[string]struct{}, limit)
	selected := make([]domain.Article, 0, limit)
	for _, item := range items {
		sourceKey := strings.ToLower(strings.TrimSpace(item.article.Source))
		if sourceKey != "" {
			if _, dup := seenSources[sourceKey]; dup {
				continue
			}
		}
		if _, dup := seenURLs[item.article.URL]; dup {
			continue
		}

		if sourceKey != "" {
			seenSources[sourceKey] = struct{}{}
		}
		seenURLs[item.article.URL] = struct{}{}
		selected = append(selected, item.article)
		if len(selected) == limit {
			break
		}
	}
	return selected
}

func (r *LexicalRanker) score(request domain.ReportRequest, index int, article domain.Article) float64 {
	score := 100.0 - float64(index*2)
	haystack := strings.ToLower(article.Title + " " + article.Body)

	if term := strings.ToLower(strings.TrimSpace(request.CompanyName)); term != "" && strings.Contains(haystack, term) {
		score += 24
	}
	if term := strings.ToLower(strings.TrimSpace(request.CompanyDomain)); term != "" && strings.Contains(haystack, term) {
		score += 10
	}
	if term := strings.ToLower(strings.TrimSpace(request.Industry)); term != "" && strings.Contains(haystack, term) {
		score += 8
	}
	for _, competitor := range request.Competitors {
		if term := strings.ToLower(strings.TrimSpace(competitor)); term != "" && strings.Contains(haystack, term) {
			score += 4
		}
	}

	if published, err := time.Parse(time.RFC3339, article.PublishedAt); err == nil {
		ageDays := r.now().UTC().Sub(published).Hours() / 24
		switch {
		case ageDays <= 2:
			score += 16
		case ageDays <= 7:
			score += 10
		case ageDays <= 30:
			score += 4
		}
	}

	if len(article.Body) > 400 {
		score += 6
	}
	if strings.TrimSpace(article.Source) == "" {
		score -= 12
	}

	if score < 1 {
		score = 1
	}
	return score
}
