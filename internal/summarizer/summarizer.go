package summarizer

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptySummary is returned by backends whose model produced no text.
var ErrEmptySummary = errors.New("summary is empty")

// Input describes the payload for a summary request.
type Input struct {
	// Text contains the plain text to summarise.
	Text string
	// MinTokens and MaxTokens bound the output length in model tokens. Backends
	// treat them as a target, not an exact guarantee.
	MinTokens int
	MaxTokens int
}

// Summarizer produces a single summary for a given input text. Calls may be
// slow; implementations must honour ctx cancellation.
type Summarizer interface {
	Summarize(ctx context.Context, input Input) (string, error)
}

type Stage string

const (
	StageChunk       Stage = "chunk"
	StageAggregation Stage = "aggregation"
)

// Error reports a failed model call within a document pipeline.
type Error struct {
	Stage Stage
	// Chunk is the zero-based chunk index for StageChunk, -1 otherwise.
	Chunk int
	Err   error
}

func (e *Error) Error() string {
	if e.Stage == StageChunk {
		return fmt.Sprintf("summarize chunk %d: %v", e.Chunk, e.Err)
	}
	return fmt.Sprintf("summarize %s pass: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
