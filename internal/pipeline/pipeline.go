package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mediapulse/mediapulse-back/internal/domain"
	"github.com/mediapulse/mediapulse-back/internal/policy"
)

var ErrNoArticlesFound = errors.New("no articles found in any search window")

const defaultPlaceholderImage = "https://static.mediapulse.io/placeholders/article.png"

type Config struct {
	ArticleCount     int
	WindowSteps      []int
	PlaceholderImage string
}

type Dependencies struct {
	Planner     QueryPlanner
	Searcher    ArticleSearcher
	Ranker      Ranker
	Summarizer  ArticleSummarizer
	Synthesizer Synthesizer
	Images      IllustrationGenerator
	Logger      *log.Logger
}

// Pipeline drives the fixed stage sequence for one attempt: plan queries,
// search with window widening, rank, summarize, synthesize, illustrate.
type Pipeline struct {
	planner     QueryPlanner
	searcher    ArticleSearcher
	ranker      Ranker
	summarizer  ArticleSummarizer
	synthesizer Synthesizer
	images      IllustrationGenerator
	logger      *log.Logger
	config      Config
}

func New(deps Dependencies, config Config) *Pipeline {
	if config.ArticleCount <= 0 {
		config.ArticleCount = 5
	}
	if len(config.WindowSteps) == 0 {
		config.WindowSteps = []int{7, 30, 365}
	}
	if config.PlaceholderImage == "" {
		config.PlaceholderImage = defaultPlaceholderImage
	}
	if deps.Ranker == nil {
		deps.Ranker = NewLexicalRanker()
	}

	return &Pipeline{
		planner:     deps.Planner,
		searcher:    deps.Searcher,
		ranker:      deps.Ranker,
		summarizer:  deps.Summarizer,
		synthesizer: deps.Synthesizer,
		images:      deps.Images,
		logger:      deps.Logger,
		config:      config,
	}
}

func (p *Pipeline) Run(ctx context.Context, request domain.ReportRequest) (domain.ReportContent, error) {
	queries, err := p.planner.Plan(ctx, request)
	if err != nil {
		return domain.ReportContent{}, fmt.Errorf("query planning: %w", err)
	}
	if len(queries) == 0 {
		return domain.ReportContent{}, errors.New("query planning produced no queries")
	}

	candidates, windowDays, err := p.searchWithWidening(ctx, queries, request.DateRangeDays)
	if err != nil {
		return domain.ReportContent{}, err
	}

	selected := p.ranker.Rank(request, candidates, p.config.ArticleCount)
	if len(selected) == 0 {
		return domain.ReportContent{}, ErrNoArticlesFound
	}

	articles := make([]domain.Article, 0, len(selected))
	for _, candidate := range selected {
		shortSummary, body, err := p.summarizer.Summarize(ctx, candidate)
		if err != nil {
			return domain.ReportContent{}, fmt.Errorf("summarize %q: %w", candidate.Title, err)
		}
		candidate.ShortSummary = shortSummary
		candidate.Body = body
		if len(candidate.Sources) == 0 && candidate.URL != "" {
			candidate.Sources = []string{candidate.URL}
		}
		articles = append(articles, candidate)
	}

	overall, err := p.synthesizer.Synthesize(ctx, articles, windowDays)
	if err != nil {
		return domain.ReportContent{}, fmt.Errorf("synthesis: %w", err)
	}

	for index := range articles {
		p.illustrate(ctx, &articles[index])
	}

	return domain.ReportContent{
		Summary:  overall,
		Articles: articles,
	}, nil
}

// searchWithWidening runs the search stage once per window, widening until a
// window yields enough candidates. Windows are never mixed: the returned set
// comes from a single window.
func (p *Pipeline) searchWithWidening(
	ctx context.Context,
	queries []string,
	requestedDays int,
) ([]domain.Article, int, error) {
	windows := p.windowSequence(requestedDays)

	var best []domain.Article
	bestWindow := windows[0]

	for _, windowDays := range windows {
		candidates, err := p.searcher.Search(ctx, queries, windowDays)
		if err != nil {
			return nil, 0, fmt.Errorf("search window %dd: %w", windowDays, err)
		}
		candidates = policy.FilterArticles(candidates)
		if len(candidates) >= p.config.ArticleCount {
			return candidates, windowDays, nil
		}
		if len(candidates) > len(best) {
			best = candidates
			bestWindow = windowDays
		}
		if p.logger != nil {
			p.logger.Printf(
				"search window too sparse window_days=%d candidates=%d, widening",
				windowDays, len(candidates),
			)
		}
	}

	if len(best) == 0 {
		return nil, 0, ErrNoArticlesFound
	}
	return best, bestWindow, nil
}

func (p *Pipeline) windowSequence(requestedDays int) []int {
	if requestedDays <= 0 {
		requestedDays = p.config.WindowSteps[0]
	}
	windows := []int{requestedDays}
	for _, step := range p.config.WindowSteps {
		if step > requestedDays {
			windows = append(windows, step)
		}
	}
	return windows
}

// illustrate is best-effort: image failures degrade one article to the
// placeholder and are recorded as such.
func (p *Pipeline) illustrate(ctx context.Context, article *domain.Article) {
	if p.images == nil {
		article.ImageURL = p.config.PlaceholderImage
		article.ImagePlaceholder = true
		return
	}

	imageURL, err := p.images.ImageFor(ctx, *article)
	if err != nil || imageURL == "" {
		if err != nil && p.logger != nil {
			p.logger.Printf("image generation failed, using placeholder title=%q err=%v", article.Title, err)
		}
		article.ImageURL = p.config.PlaceholderImage
		article.ImagePlaceholder = true
		return
	}
	article.ImageURL = imageURL
}
