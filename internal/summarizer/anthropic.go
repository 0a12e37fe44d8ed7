package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

const (
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"

	baseAnthropicMaxTokens  int64 = 256
	limitAnthropicMaxTokens int64 = 4096
)

type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// AnthropicSummarizer calls the Anthropic Messages API.
type AnthropicSummarizer struct {
	client anthropic.Client
	model  string
}

func NewAnthropicSummarizer(cfg AnthropicConfig) (*AnthropicSummarizer, error) {
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
		model = DefaultAnthropicModel
	}

	return &AnthropicSummarizer{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

func (s *AnthropicSummarizer) Model() string {
	return s.model
}

func (s *AnthropicSummarizer) Summarize(
	ctx context.Context,
	input Input,
) (string, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return "", errors.New("input is empty")
	}

	params := anthropic.MessageNewParams{
		Model: anthropic.Model(s.model),
		// Zero temperature keeps repeated calls on the same chunk stable.
		Temperature: param.NewOpt(0.0),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt(input.MinTokens, input.MaxTokens)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("Content:\n" + text)),
		},
	}

	// The ceiling starts above the requested length and grows when a reply
	// is cut off.
	maxTokens := max(baseAnthropicMaxTokens, 2*int64(input.MaxTokens))
	for {
		params.MaxTokens = maxTokens

		msg, err := s.client.Messages.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("do request: %w", err)
		}

		if msg.StopReason == anthropic.StopReasonMaxTokens {
			if maxTokens < limitAnthropicMaxTokens {
				maxTokens = min(maxTokens*2, limitAnthropicMaxTokens)
				continue
			}
			return "", fmt.Errorf("response is truncated (stopReason = %s, maxTokens = %d)", msg.StopReason, maxTokens)
		}

		var b strings.Builder
		for _, block := range msg.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}

		summary := strings.TrimSpace(b.String())
		if summary == "" {
			return "", fmt.Errorf("%w (stopReason = %s)", ErrEmptySummary, msg.StopReason)
		}
		return summary, nil
	}
}
