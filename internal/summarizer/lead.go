package summarizer

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"telesumm/internal/tokenizer"
)

//nolint:gochecknoglobals // Compiled once, read-only.
var sentenceRe = regexp.MustCompile(`[^.!?…\n]+(?:[.!?…]+["'»”)\]]*|\n|$)`)

// LeadSummarizer is the model-free fallback: it keeps the leading sentences
// of the input that fit MaxTokens.
type LeadSummarizer struct {
	tok tokenizer.Tokenizer
}

func NewLeadSummarizer(tok tokenizer.Tokenizer) *LeadSummarizer {
	return &LeadSummarizer{tok: tok}
}

func (s *LeadSummarizer) Summarize(
	ctx context.Context,
	input Input,
) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text := strings.Join(strings.Fields(input.Text), " ")
	if text == "" {
		return "", errors.New("input is empty")
	}

	budget := input.MaxTokens
	if budget <= 0 {
		return "", errors.New("max tokens must be positive")
	}

	var (
		b    strings.Builder
		used int
	)

	for _, sentence := range sentenceRe.FindAllString(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		tokens, err := s.tok.Encode(sentence)
		if err != nil {
			return "", err
		}

		if used+len(tokens) > budget {
			if used == 0 {
				// First sentence alone is over budget: cut it at the token limit.
				return strings.TrimSpace(s.tok.Decode(tokens[:budget])) + "...", nil
			}
			break
		}

		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sentence)
		used += len(tokens)
	}

	summary := strings.TrimSpace(b.String())
	if summary == "" {
		return "", ErrEmptySummary
	}
	return summary, nil
}
