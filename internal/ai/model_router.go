package ai

import "strings"

type TaskKind string

const (
	TaskQueryPlan TaskKind = "query_plan"
	TaskSummary   TaskKind = "summary"
	TaskSynthesis TaskKind = "synthesis"
)

type ModelProfile struct {
	PrimaryModel    string
	FallbackModel   string
	Temperature     float64
	MaxOutputTokens int
}

type ModelRouterConfig struct {
	QueryPlanPrimary  string
	QueryPlanFallback string

	SummaryPrimary  string
	SummaryFallback string

	SynthesisPrimary  string
	SynthesisFallback string

	ImageModel string
}

type ModelRouter struct {
	config ModelRouterConfig
}

func NewModelRouter(config ModelRouterConfig) *ModelRouter {
	if strings.TrimSpace(config.QueryPlanPrimary) == "" {
		config.QueryPlanPrimary = "gpt-4.1-mini"
	}
	if strings.TrimSpace(config.QueryPlanFallback) == "" {
		config.QueryPlanFallback = "gpt-4.1-nano"
	}
	if strings.TrimSpace(config.SummaryPrimary) == "" {
		config.SummaryPrimary = "gpt-4.1-mini"
	}
	if strings.TrimSpace(config.SummaryFallback) == "" {
		config.SummaryFallback = "gpt-4.1-nano"
	}
	if strings.TrimSpace(config.SynthesisPrimary) == "" {
		config.SynthesisPrimary = "gpt-4.1"
	}
	if strings.TrimSpace(config.SynthesisFallback) == "" {
		config.SynthesisFallback = "gpt-4.1-mini"
	}
	if strings.TrimSpace(config.ImageModel) == "" {
		config.ImageModel = "dall-e-3"
	}

	return &ModelRouter{config: config}
}

func (r *ModelRouter) Select(task TaskKind) ModelProfile {
	switch task {
	case TaskQueryPlan:
		return ModelProfile{
			PrimaryModel:    r.config.QueryPlanPrimary,
			FallbackModel:   r.config.QueryPlanFallback,
			Temperature:     0.4,
			MaxOutputTokens: 400,
		}
	case TaskSynthesis:
		return ModelProfile{
			PrimaryModel:    r.config.SynthesisPrimary,
			FallbackModel:   r.config.SynthesisFallback,
			Temperature:     0.2,
			MaxOutputTokens: 900,
		}
	default:
		return ModelProfile{
			PrimaryModel:    r.config.SummaryPrimary,
			FallbackModel:   r.config.SummaryFallback,
			Temperature:     0.2,
			MaxOutputTokens: 700,
		}
	}
}

func (r *ModelRouter) ImageModel() string {
	return r.config.ImageModel
}
