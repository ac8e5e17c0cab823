package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/mediapulse/mediapulse-back/internal/ai"
	"github.com/mediapulse/mediapulse-back/internal/domain"
)

// AIIllustrator generates one editorial-style image per article.
type AIIllustrator struct {
	client ai.ImageGenerator
	model  string
}

func NewAIIllustrator(client ai.ImageGenerator, model string) *AIIllustrator {
	return &AIIllustrator{client: client, model: model}
}

func (g *AIIllustrator) ImageFor(ctx context.Context, article domain.Article) (string, error) {
	if g.client == nil || !g.client.Available() {
		return "", ai.ErrClientUnavailable
	}

	prompt := fmt.Sprintf(
		"Editorial illustration for a news article titled %q. Clean, abstract, no text.",
		strings.TrimSpace(article.Title),
	)
	result, err := g.client.GenerateImage(ctx, ai.ImageRequest{
		Model:  g.model,
		Prompt: prompt,
	})
	if err != nil {
		return "", err
	}
	return result.URL, nil
}
