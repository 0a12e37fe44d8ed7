package aggregator_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"telesumm/internal/aggregator"
	"telesumm/internal/length"
	"telesumm/internal/summarizer"
)

type recordingSummarizer struct {
	mu     sync.Mutex
	inputs []summarizer.Input
	// failOn makes calls whose text equals the key fail.
	failOn map[string]error
	// delay slows calls down by text, to shuffle completion order.
	delay map[string]time.Duration
}

func (s *recordingSummarizer) Summarize(
	ctx context.Context,
	input summarizer.Input,
) (string, error) {
	s.mu.Lock()
	s.inputs = append(s.inputs, input)
	s.mu.Unlock()

	if d := s.delay[input.Text]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if err := s.failOn[input.Text]; err != nil {
		return "", err
	}

	return "sum(" + input.Text + ")", nil
}

func (s *recordingSummarizer) calls() []summarizer.Input {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]summarizer.Input(nil), s.inputs...)
}

func resolution() length.Resolution {
	return length.NewPolicy(0).Resolve(length.Medium)
}

func TestAggregateSingleChunkHasNoSecondPass(t *testing.T) {
	stub := &recordingSummarizer{}
	agg := aggregator.New(stub, 4, slog.Default())

	res, err := agg.Aggregate(context.Background(), []string{"only"}, resolution())
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	if res.Summary != "sum(only)" {
		t.Fatalf("unexpected summary: %q", res.Summary)
	}
	if res.Calls != 1 || len(stub.calls()) != 1 {
		t.Fatalf("expected exactly one model call, got %d (recorded %d)", res.Calls, len(stub.calls()))
	}

	in := stub.calls()[0]
	if in.MinTokens != 40 || in.MaxTokens != 120 {
		t.Fatalf("unexpected bounds: %+v", in)
	}
}

func TestAggregateMultiChunkRunsOneSecondPass(t *testing.T) {
	stub := &recordingSummarizer{}
	agg := aggregator.New(stub, 1, slog.Default())

	chunks := []string{"a", "b", "c"}
	res, err := agg.Aggregate(context.Background(), chunks, resolution())
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	if res.Calls != len(chunks)+1 {
		t.Fatalf("expected %d calls, got %d", len(chunks)+1, res.Calls)
	}

	calls := stub.calls()
	if len(calls) != len(chunks)+1 {
		t.Fatalf("expected %d recorded calls, got %d", len(chunks)+1, len(calls))
	}

	last := calls[len(calls)-1]
	if last.Text != "sum(a) sum(b) sum(c)" {
		t.Fatalf("second pass got unexpected text: %q", last.Text)
	}
	if last.MinTokens != 40 || last.MaxTokens != 120+length.AggregationDelta {
		t.Fatalf("second pass got unexpected bounds: %+v", last)
	}

	if res.Summary != "sum(sum(a) sum(b) sum(c))" {
		t.Fatalf("unexpected final summary: %q", res.Summary)
	}
}

func TestAggregatePreservesChunkOrderUnderConcurrency(t *testing.T) {
	chunks := []string{"c0", "c1", "c2", "c3", "c4", "c5"}
	delay := make(map[string]time.Duration, len(chunks))
	for i, c := range chunks {
		delay[c] = time.Duration(len(chunks)-i) * 5 * time.Millisecond
	}

	stub := &recordingSummarizer{delay: delay}
	agg := aggregator.New(stub, len(chunks), slog.Default())

	res, err := agg.Aggregate(context.Background(), chunks, resolution())
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	for i, c := range chunks {
		if want := "sum(" + c + ")"; res.Partials[i] != want {
			t.Fatalf("partial %d = %q, want %q", i, res.Partials[i], want)
		}
	}
}

func TestAggregateFailsFastOnChunkError(t *testing.T) {
	cause := errors.New("model exploded")
	stub := &recordingSummarizer{failOn: map[string]error{"b": cause}}
	agg := aggregator.New(stub, 1, slog.Default())

	res, err := agg.Aggregate(context.Background(), []string{"a", "b", "c", "d"}, resolution())
	if err == nil {
		t.Fatalf("expected error, got summary %q", res.Summary)
	}

	var sumErr *summarizer.Error
	if !errors.As(err, &sumErr) {
		t.Fatalf("expected *summarizer.Error, got %T", err)
	}
	if sumErr.Stage != summarizer.StageChunk || sumErr.Chunk != 1 {
		t.Fatalf("unexpected error location: %+v", sumErr)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be wrapped, got %v", err)
	}

	for _, in := range stub.calls() {
		if in.Text == "c" || in.Text == "d" || strings.HasPrefix(in.Text, "sum(") {
			t.Fatalf("expected remaining work to be skipped, but %q was summarized", in.Text)
		}
	}

	if res.Summary != "" {
		t.Fatalf("expected no partial result, got %q", res.Summary)
	}
}

func TestAggregateSecondPassError(t *testing.T) {
	cause := errors.New("second pass down")
	stub := &recordingSummarizer{failOn: map[string]error{"sum(a) sum(b)": cause}}
	agg := aggregator.New(stub, 2, slog.Default())

	_, err := agg.Aggregate(context.Background(), []string{"a", "b"}, resolution())

	var sumErr *summarizer.Error
	if !errors.As(err, &sumErr) || sumErr.Stage != summarizer.StageAggregation {
		t.Fatalf("expected aggregation-stage error, got %v", err)
	}
}

type blankSummarizer struct{}

func (blankSummarizer) Summarize(context.Context, summarizer.Input) (string, error) {
	return "   ", nil
}

func TestAggregateRejectsBlankOutput(t *testing.T) {
	agg := aggregator.New(blankSummarizer{}, 1, slog.Default())

	_, err := agg.Aggregate(context.Background(), []string{"a"}, resolution())
	if !errors.Is(err, summarizer.ErrEmptySummary) {
		t.Fatalf("expected ErrEmptySummary, got %v", err)
	}
}

func TestAggregateHonoursDeadline(t *testing.T) {
	stub := &recordingSummarizer{delay: map[string]time.Duration{"slow": time.Second}}
	agg := aggregator.New(stub, 1, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := agg.Aggregate(ctx, []string{"slow"}, resolution())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestAggregateNoChunks(t *testing.T) {
	agg := aggregator.New(&recordingSummarizer{}, 1, slog.Default())

	if _, err := agg.Aggregate(context.Background(), nil, resolution()); err == nil {
		t.Fatalf("expected error for empty chunk list")
	}
}

func ExampleAggregator_Aggregate() {
	agg := aggregator.New(&recordingSummarizer{}, 2, slog.New(slog.DiscardHandler))

	res, _ := agg.Aggregate(context.Background(), []string{"x", "y"}, length.NewPolicy(0).Resolve(length.Small))
	fmt.Println(res.Calls, res.Summary)
	// Output: 3 sum(sum(x) sum(y))
}
