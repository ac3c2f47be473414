package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/monitoring"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	DefaultGeminiURL   = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel = "gemini-2.0-flash"
)

// Gemini calls the generateContent REST endpoint
type Gemini struct {
	guard
	client *resty.Client
	apiKey string
	model  string
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiConfig struct {
	Temperature      float32 `json:"temperature,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  geminiConfig    `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewGemini creates a Gemini client
func NewGemini(cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) *Gemini {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWait
	retryClient.RetryWaitMax = 30 * time.Second
	retryClient.Logger = nil

	client := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "StudyDesk/1.0")

	return &Gemini{
		guard:  newGuard("gemini", cfg.RateLimit, logger, metrics),
		client: client,
		apiKey: cfg.APIKey,
		model:  cfg.Model,
	}
}

// Name returns the provider name
func (g *Gemini) Name() string { return "gemini" }

// Generate sends one prompt and joins the first candidate's text parts
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	if req.JSON {
		body.GenerationConfig.ResponseMimeType = "application/json"
	}

	return g.run(ctx, func(ctx context.Context) (string, error) {
		var out geminiResponse
		var apiErr geminiError
		resp, err := g.client.R().
			SetContext(ctx).
			SetHeader("x-goog-api-key", g.apiKey).
			SetBody(body).
			SetResult(&out).
			SetError(&apiErr).
			Post(fmt.Sprintf("/v1beta/models/%s:generateContent", g.model))
		if err != nil {
			return "", fmt.Errorf("gemini request: %w", err)
		}
		if resp.IsError() {
			msg := apiErr.Error.Message
			if msg == "" {
				msg = resp.Status()
			}
			return "", fmt.Errorf("gemini: status %d: %s", resp.StatusCode(), msg)
		}
		if len(out.Candidates) == 0 {
			return "", nil
		}

		var b strings.Builder
		for _, p := range out.Candidates[0].Content.Parts {
			b.WriteString(p.Text)
		}
		return b.String(), nil
	})
}
