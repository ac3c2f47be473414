package generation

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/monitoring"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultOpenAIModel is used when no model is configured
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI calls an OpenAI-compatible chat completion API
type OpenAI struct {
	guard
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI client
func NewOpenAI(cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) *OpenAI {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	return &OpenAI{
		guard:  newGuard("openai", cfg.RateLimit, logger, metrics),
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
	}
}

// Name returns the provider name
func (o *OpenAI) Name() string { return "openai" }

// Generate sends one chat completion
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	creq := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: req.Temperature,
	}
	if req.System != "" {
		creq.Messages = append(creq.Messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: req.System,
		})
	}
	creq.Messages = append(creq.Messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: req.Prompt,
	})
	if req.MaxTokens > 0 {
		creq.MaxCompletionTokens = req.MaxTokens
	}
	if req.JSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return o.run(ctx, func(ctx context.Context) (string, error) {
		resp, err := o.client.CreateChatCompletion(ctx, creq)
		if err != nil {
			return "", fmt.Errorf("openai request: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Message.Content, nil
	})
}
