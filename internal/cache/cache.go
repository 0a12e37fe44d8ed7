package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"telesumm/internal/chunker"
)

// Cache stores finished summaries by Key.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
}

// Entry is a cached summary with the bookkeeping of the run that produced it.
type Entry struct {
	Summary   string    `json:"summary"`
	Tier      string    `json:"tier"`
	Tokens    int       `json:"tokens"`
	Chunks    int       `json:"chunks"`
	CreatedAt time.Time `json:"createdAt"`
}

// Scope names the pipeline settings a summary depends on besides its tier
// and text. Summaries made under a different scope never share a key.
type Scope struct {
	Backend         string
	Window          chunker.Window
	MaxOutputTokens int
}

func (s Scope) String() string {
	backend := strings.ToLower(strings.TrimSpace(s.Backend))
	if backend == "" {
		backend = "default"
	}

	return fmt.Sprintf("%s/%d-%d/%d",
		backend, s.Window.MaxTokens, s.Window.OverlapTokens, s.MaxOutputTokens)
}

// Key identifies a summary by scope, tier and whitespace-normalized text. It
// is empty when text has no content.
func Key(scope Scope, tier string, text string) string {
	normalizedText := strings.Join(strings.Fields(text), " ")
	if normalizedText == "" {
		return ""
	}

	hash := sha256.Sum256([]byte(normalizedText))

	return strings.ToLower(strings.TrimSpace(tier)) + "|" + scope.String() + "|" + hex.EncodeToString(hash[:])
}
