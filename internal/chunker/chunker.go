package chunker

import (
	"errors"
	"fmt"
)

const (
	DefaultMaxWindow = 1024
	DefaultOverlap   = 100
)

// ErrInvalidConfiguration is returned for window parameters that cannot
// make progress.
var ErrInvalidConfiguration = errors.New("invalid chunker configuration")

// Window holds the chunking parameters in model tokens.
type Window struct {
	MaxTokens     int
	OverlapTokens int
}

func DefaultWindow() Window {
	return Window{
		MaxTokens:     DefaultMaxWindow,
		OverlapTokens: DefaultOverlap,
	}
}

// Validate requires 0 <= overlap < max.
func (w Window) Validate() error {
	if w.MaxTokens <= 0 {
		return fmt.Errorf("%w: max window must be positive (max = %d)", ErrInvalidConfiguration, w.MaxTokens)
	}

	if w.OverlapTokens < 0 || w.OverlapTokens >= w.MaxTokens {
		return fmt.Errorf(
			"%w: overlap must be >= 0 and < max window (max = %d, overlap = %d)",
			ErrInvalidConfiguration,
			w.MaxTokens,
			w.OverlapTokens,
		)
	}

	return nil
}

func (w Window) stride() int {
	return w.MaxTokens - w.OverlapTokens
}

// Chunk is a contiguous token range [Start, End) of the source sequence.
type Chunk struct {
	Index  int
	Start  int
	End    int
	Tokens []int
}

func (c Chunk) Len() int {
	return c.End - c.Start
}

// Split slides a window of w.MaxTokens across tokens with a stride of
// w.MaxTokens - w.OverlapTokens. The last chunk may be shorter and no chunk
// starts after the end has been covered. Chunk tokens share the backing
// array of tokens.
func Split(tokens []int, w Window) ([]Chunk, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	if len(tokens) == 0 {
		return nil, nil
	}

	chunks := make([]Chunk, 0, Count(len(tokens), w))
	step := w.stride()

	for start := 0; ; start += step {
		end := min(start+w.MaxTokens, len(tokens))

		chunks = append(chunks, Chunk{
			Index:  len(chunks),
			Start:  start,
			End:    end,
			Tokens: tokens[start:end:end],
		})

		if end == len(tokens) {
			break
		}
	}

	return chunks, nil
}

// Count returns the number of chunks Split produces for n tokens:
// 1 when n <= max, otherwise ceil((n - overlap) / (max - overlap)).
// It assumes w is valid.
func Count(n int, w Window) int {
	switch {
	case n <= 0:
		return 0
	case n <= w.MaxTokens:
		return 1
	}

	step := w.stride()

	return (n - w.OverlapTokens + step - 1) / step
}
