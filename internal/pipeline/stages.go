package pipeline

import (
	"context"

	"github.com/mediapulse/mediapulse-back/internal/domain"
)

// QueryPlanner turns a generation request into 3-7 search queries.
type QueryPlanner interface {
	Plan(ctx context.Context, request domain.ReportRequest) ([]string, error)
}

// ArticleSearcher executes one search over exactly one date window.
type ArticleSearcher interface {
	Search(ctx context.Context, queries []string, windowDays int) ([]domain.Article, error)
}

// Ranker orders candidates by relevance, recency, quality and uniqueness and
// returns at most limit articles with no duplicate sources.
type Ranker interface {
	Rank(request domain.ReportRequest, candidates []domain.Article, limit int) []domain.Article
}

// ArticleSummarizer produces the short summary and body for one article.
type ArticleSummarizer interface {
	Summarize(ctx context.Context, article domain.Article) (shortSummary, body string, err error)
}

// Synthesizer writes the time-aware overall summary from the per-article
// summaries.
type Synthesizer interface {
	Synthesize(ctx context.Context, articles []domain.Article, windowDays int) (string, error)
}

// IllustrationGenerator returns an image reference for one article. Failures
// are absorbed by the pipeline with a placeholder, never failing the job.
type IllustrationGenerator interface {
	ImageFor(ctx context.Context, article domain.Article) (string, error)
}
