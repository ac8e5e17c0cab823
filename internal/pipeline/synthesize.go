package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mediapulse/mediapulse-back/internal/ai"
	"github.com/mediapulse/mediapulse-back/internal/domain"
)

// AISynthesizer produces the overall time-aware summary across the selected
// articles.
type AISynthesizer struct {
	client ai.TextGenerator
	router *ai.ModelRouter
	logger *log.Logger
}

func NewAISynthesizer(client ai.TextGenerator, router *ai.ModelRouter, logger *log.Logger) *AISynthesizer {
	if router == nil {
		router = ai.NewModelRouter(ai.ModelRouterConfig{})
	}
	return &AISynthesizer{client: client, router: router, logger: logger}
}

func (s *AISynthesizer) Synthesize(
	ctx context.Context,
	articles []domain.Article,
	windowDays int,
) (string, error) {
	if len(articles) == 0 {
		return "", fmt.Errorf("synthesize: no articles to summarize")
	}
	if s.client == nil || !s.client.Available() {
		return fallbackSynthesis(articles, windowDays), nil
	}

	profile := s.router.Select(ai.TaskSynthesis)
	var input strings.Builder
	fmt.Fprintf(&input, "Coverage window: last %d days\n\n", windowDays)
	for index, article := range articles {
		fmt.Fprintf(&input, "%d. %s (%s)\n%s\n\n", index+1, article.Title, article.Source, article.ShortSummary)
	}

	generateRequest := ai.GenerateRequest{
		Model: profile.PrimaryModel,
		Instructions: "Write a TL;DR of this media coverage as one tight paragraph. " +
			"Anchor it in the stated time window and lead with the most consequential development.",
		Input:           input.String(),
		Temperature:     profile.Temperature,
		MaxOutputTokens: profile.MaxOutputTokens,
	}

	result, err := s.client.Generate(ctx, generateRequest)
	if err != nil && profile.FallbackModel != "" {
		if s.logger != nil {
			s.logger.Printf("synthesis primary model failed, trying fallback: %v", err)
		}
		generateRequest.Model = profile.FallbackModel
		result, err = s.client.Generate(ctx, generateRequest)
	}
	if err != nil {
		return "", fmt.Errorf("synthesize coverage: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", fmt.Errorf("synthesize coverage: empty model output")
	}
	return text, nil
}

func fallbackSynthesis(articles []domain.Article, windowDays int) string {
	titles := make([]string, 0, len(articles))
	for _, article := range articles {
		titles = append(titles, article.Title)
	}
	return fmt.Sprintf(
		"Over the last %d days, %d notable stories were published: %s.",
		windowDays, len(articles), strings.Join(titles, "; "),
	)
}
