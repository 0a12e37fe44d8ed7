package tokenizer

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"
)

const DefaultEncoding = "cl100k_base"

var setOfflineLoader sync.Once

// Tiktoken is a BPE tokenizer backed by tiktoken-go. It is loaded once and
// is safe for concurrent use afterwards.
type Tiktoken struct {
	enc  *tiktoken.Tiktoken
	name string
}

// NewTiktoken loads the named encoding, or the encoding used by the named
// model. BPE ranks come from the embedded offline loader, never the network.
func NewTiktoken(name string) (*Tiktoken, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultEncoding
	}

	setOfflineLoader.Do(func() {
		tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
	})

	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		enc, err = tiktoken.GetEncoding(name)
		if err != nil {
			return nil, &Error{Err: err}
		}
	}

	return &Tiktoken{enc: enc, name: name}, nil
}

func (t *Tiktoken) Name() string {
	return t.name
}

// Encode treats special-token text as ordinary text, so it never panics on
// user input that happens to contain markers like <|endoftext|>.
func (t *Tiktoken) Encode(text string) ([]int, error) {
	if !utf8.ValidString(text) {
		return nil, &Error{Err: ErrInvalidEncoding}
	}

	return t.enc.Encode(text, nil, nil), nil
}

// Decode drops bytes left invalid by a window boundary that split a
// multi-byte character.
func (t *Tiktoken) Decode(tokens []int) string {
	if len(tokens) == 0 {
		return ""
	}

	return strings.ToValidUTF8(t.enc.Decode(tokens), "")
}
