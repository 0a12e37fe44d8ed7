package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type fakeMessagesAPI struct {
	mu         sync.Mutex
	maxTokens  []int64
	stopReason func(call int) string
}

func (f *fakeMessagesAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
		http.NotFound(w, r)
		return
	}

	var body struct {
		MaxTokens int64 `json:"max_tokens"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.maxTokens = append(f.maxTokens, body.MaxTokens)
	call := len(f.maxTokens)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{
		"id": "msg_%d",
		"type": "message",
		"role": "assistant",
		"model": "test-model",
		"content": [{"type": "text", "text": "Summary after call %d."}],
		"stop_reason": %q,
		"stop_sequence": null,
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`, call, call, f.stopReason(call))
}

func (f *fakeMessagesAPI) calls() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]int64(nil), f.maxTokens...)
}

func newTestAnthropic(t *testing.T, api *fakeMessagesAPI) *AnthropicSummarizer {
	t.Helper()

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	s, err := NewAnthropicSummarizer(AnthropicConfig{
		APIKey:  "test-key",
		Model:   "test-model",
		BaseURL: srv.URL,
	})
	if err != nil {
		t.Fatalf("new summarizer: %v", err)
	}

	return s
}

func TestAnthropicSummarizerRetriesTruncatedReply(t *testing.T) {
	api := &fakeMessagesAPI{stopReason: func(call int) string {
		if call == 1 {
			return "max_tokens"
		}
		return "end_turn"
	}}
	s := newTestAnthropic(t, api)

	summary, err := s.Summarize(context.Background(), Input{Text: "Some text.", MinTokens: 40, MaxTokens: 120})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if summary != "Summary after call 2." {
		t.Fatalf("expected summary of the retried call, got %q", summary)
	}

	calls := api.calls()
	if len(calls) != 2 || calls[0] != 256 || calls[1] != 512 {
		t.Fatalf("unexpected max tokens per call: %v", calls)
	}
}

func TestAnthropicSummarizerGivesHeadroomAboveTierMax(t *testing.T) {
	api := &fakeMessagesAPI{stopReason: func(int) string { return "end_turn" }}
	s := newTestAnthropic(t, api)

	if _, err := s.Summarize(context.Background(), Input{Text: "Some text.", MinTokens: 80, MaxTokens: 220}); err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if calls := api.calls(); len(calls) != 1 || calls[0] != 440 {
		t.Fatalf("expected a ceiling above the requested maximum, got %v", calls)
	}
}

func TestAnthropicSummarizerFailsWhenAlwaysTruncated(t *testing.T) {
	api := &fakeMessagesAPI{stopReason: func(int) string { return "max_tokens" }}
	s := newTestAnthropic(t, api)

	_, err := s.Summarize(context.Background(), Input{Text: "Some text.", MinTokens: 20, MaxTokens: 60})
	if err == nil || !strings.Contains(err.Error(), "truncated") {
		t.Fatalf("expected truncation error, got %v", err)
	}

	calls := api.calls()
	if last := calls[len(calls)-1]; last != limitAnthropicMaxTokens {
		t.Fatalf("expected escalation up to %d, got %v", limitAnthropicMaxTokens, calls)
	}
}
