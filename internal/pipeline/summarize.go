package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mediapulse/mediapulse-back/internal/ai"
	"github.com/mediapulse/mediapulse-back/internal/domain"
)

// AISummarizer writes the short summary and body for one article. Like the
// planner it has an offline fallback derived from the raw article text.
type AISummarizer struct {
	client ai.TextGenerator
	router *ai.ModelRouter
	logger *log.Logger
}

func NewAISummarizer(client ai.TextGenerator, router *ai.ModelRouter, logger *log.Logger) *AISummarizer {
	if router == nil {
		router = ai.NewModelRouter(ai.ModelRouterConfig{})
	}
	return &AISummarizer{client: client, router: router, logger: logger}
}

func (s *AISummarizer) Summarize(ctx context.Context, article domain.Article) (string, string, error) {
	if s.client == nil || !s.client.Available() {
		return fallbackSummary(article)
	}

	profile := s.router.Select(ai.TaskSummary)
	input := fmt.Sprintf("Title: %s\nSource: %s\n\n%s", article.Title, article.Source, article.Body)
	generateRequest := ai.GenerateRequest{
		Model: profile.PrimaryModel,
		Instructions: "Summarize this news article. First line: a one-sentence summary. " +
			"Then a blank line, then 2-3 paragraphs covering the key facts.",
		Input:           input,
		Temperature:     profile.Temperature,
		MaxOutputTokens: profile.MaxOutputTokens,
	}

	result, err := s.client.Generate(ctx, generateRequest)
	if err != nil && profile.FallbackModel != "" {
		if s.logger != nil {
			s.logger.Printf("summary primary model failed, trying fallback: %v", err)
		}
		generateRequest.Model = profile.FallbackModel
		result, err = s.client.Generate(ctx, generateRequest)
	}
	if err != nil {
		return "", "", fmt.Errorf("summarize article: %w", err)
	}

	shortSummary, body := splitSummary(result.Text)
	if shortSummary == "" {
		return "", "", fmt.Errorf("summarize article: empty model output")
	}
	return shortSummary, body, nil
}

func splitSummary(text string) (string, string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ""
	}
	parts := strings.SplitN(trimmed, "\n", 2)
	shortSummary := strings.TrimSpace(parts[0])
	body := shortSummary
	if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
		body = strings.TrimSpace(parts[1])
	}
	return shortSummary, body
}

func fallbackSummary(article domain.Article) (string, string, error) {
	body := strings.TrimSpace(article.Body)
	if body == "" {
		body = strings.TrimSpace(article.Title)
	}
	if body == "" {
		return "", "", fmt.Errorf("summarize article: no content to summarize")
	}

	shortSummary := body
	if cut := strings.IndexAny(shortSummary, ".!?"); cut > 0 && cut < len(shortSummary)-1 {
		shortSummary = shortSummary[:cut+1]
	}
	if len(shortSummary) > 240 {
		shortSummary = strings.TrimSpace(shortSummary[:240]) + "…"
	}
	return shortSummary, body, nil
}
