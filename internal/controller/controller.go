package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"telesumm/internal/aggregator"
	"telesumm/internal/chunker"
	"telesumm/internal/length"
	"telesumm/internal/tokenizer"
)

// MinWords is the whitespace-delimited word count below which input is
// rejected, independent of model token accounting.
const MinWords = 30

// ErrInputTooShort is returned for input with fewer than MinWords words.
var ErrInputTooShort = errors.New("input is too short to summarize")

// Result is a finished summary plus bookkeeping about how it was produced.
type Result struct {
	Summary      string
	Tier         length.Tier
	TierFallback bool
	Words        int
	Tokens       int
	Chunks       int
	ModelCalls   int
}

// Controller turns raw text into a bounded-length summary. It holds no
// per-request state; the tokenizer and aggregator are shared read-only.
type Controller struct {
	tok    tokenizer.Tokenizer
	agg    *aggregator.Aggregator
	policy length.Policy
	window chunker.Window
	tracer trace.Tracer
	log    *slog.Logger
}

// New fails with chunker.ErrInvalidConfiguration if window cannot be used.
func New(
	tok tokenizer.Tokenizer,
	agg *aggregator.Aggregator,
	policy length.Policy,
	window chunker.Window,
	log *slog.Logger,
) (*Controller, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	return &Controller{
		tok:    tok,
		agg:    agg,
		policy: policy,
		window: window,
		tracer: otel.Tracer("telesumm/internal/controller"),
		log:    log,
	}, nil
}

// CheckInput normalizes whitespace and applies the minimum word gate. It
// returns the normalized text and its word count.
func CheckInput(text string) (string, int, error) {
	text = normalizeWhitespace(text)

	words := len(strings.Fields(text))
	if words < MinWords {
		return "", words, fmt.Errorf("%w (words = %d, min = %d)", ErrInputTooShort, words, MinWords)
	}

	return text, words, nil
}

// normalizeWhitespace collapses runs of blanks inside lines and drops empty
// lines, so no token window can decode to whitespace only.
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]

	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		kept = append(kept, line)
	}

	return strings.Join(kept, "\n")
}

func (c *Controller) Summarize(
	ctx context.Context,
	text string,
	tier length.Tier,
) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "controller.Summarize", trace.WithAttributes(
		attribute.String("requestedTier", string(tier)),
	))
	defer span.End()

	result, err := c.summarize(ctx, text, tier)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "summarize")
		return Result{}, err
	}

	span.SetAttributes(
		attribute.Int("tokens", result.Tokens),
		attribute.Int("chunks", result.Chunks),
		attribute.Int("modelCalls", result.ModelCalls),
	)

	return result, nil
}

func (c *Controller) summarize(
	ctx context.Context,
	text string,
	tier length.Tier,
) (Result, error) {
	text, words, err := CheckInput(text)
	if err != nil {
		return Result{}, err
	}

	tokens, err := c.tok.Encode(text)
	if err != nil {
		var tokErr *tokenizer.Error
		if !errors.As(err, &tokErr) {
			err = &tokenizer.Error{Err: err}
		}
		return Result{}, err
	}

	chunks, err := chunker.Split(tokens, c.window)
	if err != nil {
		return Result{}, fmt.Errorf("split tokens: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = c.tok.Decode(ch.Tokens)
	}

	res := c.policy.Resolve(tier)
	if res.FellBack {
		c.log.WarnContext(ctx, "Unknown length tier so default is used",
			"requestedTier", string(res.Requested),
			"tier", string(res.Tier))
	}

	c.log.DebugContext(ctx, "Document is chunked",
		"words", words,
		"tokens", len(tokens),
		"chunks", len(chunks),
		"maxWindow", c.window.MaxTokens,
		"overlap", c.window.OverlapTokens,
		"tier", string(res.Tier))

	agg, err := c.agg.Aggregate(ctx, texts, res)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Summary:      agg.Summary,
		Tier:         res.Tier,
		TierFallback: res.FellBack,
		Words:        words,
		Tokens:       len(tokens),
		Chunks:       len(chunks),
		ModelCalls:   agg.Calls,
	}, nil
}
