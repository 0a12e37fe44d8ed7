package aggregator

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
	"golang.org/x/sync/errgroup"

	"telesumm/internal/length"
	"telesumm/internal/summarizer"
)

const (
	DefaultParallelism = 4

	partialSeparator = " "
	tracerName       = "telesumm/internal/aggregator"
)

// Result is the outcome of aggregating one document.
type Result struct {
	Summary string
	// Partials holds one summary per chunk, in chunk order.
	Partials []string
	// Calls counts model invocations: len(Partials), plus one for the second
	// pass of multi-chunk documents.
	Calls int
}

type Aggregator struct {
	summarizer  summarizer.Summarizer
	parallelism int
	tracer      trace.Tracer
	log         *slog.Logger
}

// New returns an aggregator running at most parallelism first-pass calls at
// once. Values below 1 mean sequential.
func New(s summarizer.Summarizer, parallelism int, log *slog.Logger) *Aggregator {
	return &Aggregator{
		summarizer:  s,
		parallelism: max(parallelism, 1),
		tracer:      otel.Tracer(tracerName),
		log:         log,
	}
}

// Aggregate summarizes every chunk with res.Pass bounds, joins the partial
// summaries in chunk order, and for more than one chunk re-summarizes the
// join with res.Aggregation bounds. The first failed call cancels the
// remaining ones and is returned as a *summarizer.Error.
func (a *Aggregator) Aggregate(
	ctx context.Context,
	chunks []string,
	res length.Resolution,
) (Result, error) {
	if len(chunks) == 0 {
		return Result{}, errors.New("no chunks to aggregate")
	}

	ctx, span := a.tracer.Start(ctx, "aggregator.Aggregate", trace.WithAttributes(
		attribute.Int("chunks", len(chunks)),
		attribute.String("tier", string(res.Tier)),
	))
	defer span.End()

	partials, err := a.summarizeChunks(ctx, chunks, res.Pass)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "first pass failed")
		return Result{}, err
	}

	result := Result{
		Summary:  strings.Join(partials, partialSeparator),
		Partials: partials,
		Calls:    len(partials),
	}

	if len(chunks) == 1 {
		return result, nil
	}

	summary, err := a.secondPass(ctx, result.Summary, res.Aggregation)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "second pass failed")
		return Result{}, err
	}

	result.Summary = summary
	result.Calls++

	return result, nil
}

func (a *Aggregator) summarizeChunks(
	ctx context.Context,
	chunks []string,
	bounds length.Bounds,
) ([]string, error) {
	partials := make([]string, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)

	for i := range chunks {
		g.Go(func() error {
			summary, err := a.summarizeChunk(gctx, i, chunks[i], bounds)
			if err != nil {
				return err
			}

			partials[i] = summary
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return partials, nil
}

func (a *Aggregator) summarizeChunk(
	ctx context.Context,
	index int,
	text string,
	bounds length.Bounds,
) (string, error) {
	ctx, span := a.tracer.Start(ctx, "aggregator.summarizeChunk", trace.WithAttributes(
		attribute.Int("chunkIndex", index),
		attribute.Int("textLen", len(text)),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return "", &summarizer.Error{Stage: summarizer.StageChunk, Chunk: index, Err: err}
	}

	summary, err := a.call(ctx, text, bounds)
	if err != nil {
		a.log.ErrorContext(ctx, "Failed to summarize chunk",
			"error", err,
			"chunkIndex", index,
			"textLen", len(text))

		span.RecordError(err)
		span.SetStatus(codes.Error, "summarize chunk")

		return "", &summarizer.Error{Stage: summarizer.StageChunk, Chunk: index, Err: err}
	}

	return summary, nil
}

func (a *Aggregator) secondPass(
	ctx context.Context,
	combined string,
	bounds length.Bounds,
) (string, error) {
	ctx, span := a.tracer.Start(ctx, "aggregator.secondPass", trace.WithAttributes(
		attribute.Int("textLen", len(combined)),
		attribute.Int("maxTokens", bounds.Max),
	))
	defer span.End()

	summary, err := a.call(ctx, combined, bounds)
	if err != nil {
		a.log.ErrorContext(ctx, "Failed to summarize joined partial summaries",
			"error", err,
			"textLen", len(combined))

		span.RecordError(err)
		return "", &summarizer.Error{Stage: summarizer.StageAggregation, Chunk: -1, Err: err}
	}

	return summary, nil
}

func (a *Aggregator) call(ctx context.Context, text string, bounds length.Bounds) (string, error) {
	summary, err := a.summarizer.Summarize(ctx, summarizer.Input{
		Text:      text,
		MinTokens: bounds.Min,
		MaxTokens: bounds.Max,
	})
	if err != nil {
		return "", err
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("backend returned blank text: %w", summarizer.ErrEmptySummary)
	}

	return summary, nil
}
