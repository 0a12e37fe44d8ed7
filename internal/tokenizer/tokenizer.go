package tokenizer

import (
	"errors"
	"fmt"
)

// ErrInvalidEncoding is returned when input text is not valid UTF-8.
var ErrInvalidEncoding = errors.New("text is not valid UTF-8")

// Tokenizer converts text to and from the model's token representation.
type Tokenizer interface {
	// Encode returns every token of text. It never truncates.
	Encode(text string) ([]int, error)
	// Decode turns tokens back into text. The round trip is allowed to be lossy.
	Decode(tokens []int) string
}

// Error is returned when text cannot be tokenized.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tokenize: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Count returns the number of tokens in text.
func Count(t Tokenizer, text string) (int, error) {
	tokens, err := t.Encode(text)
	if err != nil {
		return 0, err
	}

	return len(tokens), nil
}
