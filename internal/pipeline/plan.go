package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mediapulse/mediapulse-back/internal/ai"
	"github.com/mediapulse/mediapulse-back/internal/domain"
)

const (
	minQueries = 3
	maxQueries = 7
)

// AIPlanner asks the model for search queries, one per line. Without an
// API key it degrades to deterministic heuristic queries so local runs and
// tests stay offline.
type AIPlanner struct {
	client ai.TextGenerator
	router *ai.ModelRouter
	logger *log.Logger
}

func NewAIPlanner(client ai.TextGenerator, router *ai.ModelRouter, logger *log.Logger) *AIPlanner {
	if router == nil {
		router = ai.NewModelRouter(ai.ModelRouterConfig{})
	}
	return &AIPlanner{client: client, router: router, logger: logger}
}

func (p *AIPlanner) Plan(ctx context.Context, request domain.ReportRequest) ([]string, error) {
	if p.client == nil || !p.client.Available() {
		return heuristicQueries(request), nil
	}

	profile := p.router.Select(ai.TaskQueryPlan)
	input := fmt.Sprintf(
		"Company: %s\nDomain: %s\nIndustry: %s\nCompetitors: %s\nReport type: %s",
		request.CompanyName,
		request.CompanyDomain,
		request.Industry,
		strings.Join(request.Competitors, ", "),
		request.ReportType,
	)
	generateRequest := ai.GenerateRequest{
		Model: profile.PrimaryModel,
		Instructions: "Produce between 3 and 7 news search queries for monitoring media coverage " +
			"of the company below. Output one query per line, no numbering, no commentary.",
		Input:           input,
		Temperature:     profile.Temperature,
		MaxOutputTokens: profile.MaxOutputTokens,
	}

	result, err := p.client.Generate(ctx, generateRequest)
	if err != nil && profile.FallbackModel != "" {
		if p.logger != nil {
			p.logger.Printf("query planning primary model failed, trying fallback: %v", err)
		}
		generateRequest.Model = profile.FallbackModel
		result, err = p.client.Generate(ctx, generateRequest)
	}
	if err != nil {
		return nil, fmt.Errorf("plan queries: %w", err)
	}

	queries := parseQueryLines(result.Text)
	if len(queries) < minQueries {
		queries = append(queries, heuristicQueries(request)...)
		queries = dedupeQueries(queries)
	}
	if len(queries) > maxQueries {
		queries = queries[:maxQueries]
	}
	return queries, nil
}

func parseQueryLines(text string) []string {
	lines := strings.Split(text, "\n")
	queries := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		trimmed = strings.TrimLeft(trimmed, "-*0123456789. ")
		trimmed = strings.Trim(trimmed, `"`)
		if trimmed == "" {
			continue
		}
		queries = append(queries, trimmed)
	}
	return dedupeQueries(queries)
}

func heuristicQueries(request domain.ReportRequest) []string {
	name := strings.TrimSpace(request.CompanyName)
	queries := []string{
		name,
		name + " news",
		name + " announcement",
	}
	if industry := strings.TrimSpace(request.Industry); industry != "" {
		queries = append(queries, name+" "+industry)
	}
	for _, competitor := range request.Competitors {
		if trimmed := strings.TrimSpace(competitor); trimmed != "" {
			queries = append(queries, name+" "+trimmed)
		}
		if len(queries) >= maxQueries {
			break
		}
	}
	return dedupeQueries(queries)
}

func dedupeQueries(queries []string) []string {
	seen := make(map[string]struct{}, len(queries))
	result := make([]string, 0, len(queries))
	for _, query := range queries {
		key := strings.ToLower(strings.TrimSpace(query))
		if key == "" {
			continue
		}
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, strings.TrimSpace(query))
	}
	return result
}
