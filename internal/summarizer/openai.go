package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	DefaultOpenAIModel       = openai.ChatModelGPT5Mini2025_08_07
	DefaultOpenAIServiceTier = "flex"

	baseMaxOutputTokens  int64 = 512
	limitMaxOutputTokens int64 = 4096
)

// OpenAIConfig contains configuration for the OpenAI-backed summarizer.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	ServiceTier string
}

// OpenAISummarizer calls OpenAI's Responses API to produce summaries.
type OpenAISummarizer struct {
	client      openai.Client
	model       string
	serviceTier string
}

// NewOpenAISummarizer builds a new summarizer instance.
func NewOpenAISummarizer(cfg OpenAIConfig) (*OpenAISummarizer, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("API key is empty")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAISummarizer{
		client:      openai.NewClient(opts...),
		model:       model,
		serviceTier: strings.TrimSpace(cfg.ServiceTier),
	}, nil
}

func (s *OpenAISummarizer) Model() string {
	return s.model
}

// Summarize produces one summary of input.Text within the requested bounds.
func (s *OpenAISummarizer) Summarize(
	ctx context.Context,
	input Input,
) (string, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return "", errors.New("input is empty")
	}

	params := responses.ResponseNewParams{
		Model: s.model,
		Reasoning: responses.ReasoningParam{
			Effort: openai.ReasoningEffortLow,
		},
		Instructions: openai.String(systemPrompt(input.MinTokens, input.MaxTokens)),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String("Content:\n" + text),
		},
	}
	if s.serviceTier != "" {
		params.ServiceTier = responses.ResponseNewParamsServiceTier(s.serviceTier)
	}

	// Reasoning tokens share the output budget, so the ceiling starts above
	// the requested summary length and grows when the model runs out.
	maxOutputTokens := max(baseMaxOutputTokens, 2*int64(input.MaxTokens))
	for {
		params.MaxOutputTokens = openai.Int(maxOutputTokens)

		resp, err := s.client.Responses.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("do request: %w", err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)
				continue
			}
			return "", fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		summary := strings.TrimSpace(resp.OutputText())
		if summary == "" {
			return "", fmt.Errorf("%w (status = %s)", ErrEmptySummary, resp.Status)
		}
		return summary, nil
	}
}
