package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/go-telegram/bot/models"

	"telesumm/internal/controller"
	"telesumm/internal/extract"
	"telesumm/internal/length"
	"telesumm/internal/service"
	"telesumm/internal/summarizer"
	"telesumm/internal/tokenizer"
)

func TestSplitMessageRespectsLimit(t *testing.T) {
	text := strings.Repeat("word ", 100)

	parts := splitMessage(text, 64)
	if len(parts) < 2 {
		t.Fatalf("expected several parts, got %d", len(parts))
	}

	for i, part := range parts {
		if len(part) > 64 {
			t.Fatalf("part %d has %d bytes", i, len(part))
		}
		if strings.HasPrefix(part, " ") || strings.HasSuffix(part, " ") {
			t.Fatalf("part %d is not trimmed: %q", i, part)
		}
	}

	if got := strings.Join(parts, " "); got != strings.TrimSpace(text) {
		t.Fatalf("parts do not rebuild the text")
	}
}

func TestSplitMessageKeepsEscapes(t *testing.T) {
	text := strings.Repeat("a", 9) + "\\." + strings.Repeat("b", 9)

	parts := splitMessage(text, 10)
	for i, part := range parts {
		if trailingBackslashes(part)%2 == 1 {
			t.Fatalf("part %d ends with a dangling escape: %q", i, part)
		}
	}

	if strings.Join(parts, "") != text {
		t.Fatalf("parts do not rebuild the text: %q", parts)
	}
}

func TestSplitMessageKeepsRunes(t *testing.T) {
	text := strings.Repeat("ж", 20)

	for i, part := range splitMessage(text, 7) {
		if !utf8.ValidString(part) {
			t.Fatalf("part %d has broken runes: %q", i, part)
		}
		if len(part)%2 != 0 {
			t.Fatalf("part %d split a rune: %q", i, part)
		}
	}
}

func TestSplitMessageEmpty(t *testing.T) {
	if parts := splitMessage("  ", 10); parts != nil {
		t.Fatalf("expected no parts, got %q", parts)
	}
}

func TestFormatSummaryMessages(t *testing.T) {
	messages := formatSummaryMessages(service.Result{
		Result: controller.Result{
			Summary: "Short summary.",
			Tier:    length.Large,
			Chunks:  3,
		},
		Cached: true,
	})

	if len(messages) != 1 {
		t.Fatalf("expected one message, got %d", len(messages))
	}

	want := "📝 *Summary* \\(Large, 3 parts, cached\\)\n\nShort summary\\."
	if messages[0] != want {
		t.Fatalf("unexpected message:\n%s\nwant:\n%s", messages[0], want)
	}
}

func TestFormatSummaryMessagesLongSummary(t *testing.T) {
	messages := formatSummaryMessages(service.Result{
		Result: controller.Result{
			Summary: strings.Repeat("sentence number. ", 600),
			Tier:    length.Medium,
		},
	})

	if len(messages) < 2 {
		t.Fatalf("expected split summary, got %d messages", len(messages))
	}

	for i, m := range messages {
		if len(m) > telegramMessageMaxLength {
			t.Fatalf("message %d has %d bytes", i, len(m))
		}
	}
}

func TestUserErrorText(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: fmt.Errorf("wrap: %w", controller.ErrInputTooShort), want: "too short"},
		{err: fmt.Errorf("wrap: %w", extract.ErrUnsupportedFormat), want: "Unsupported document"},
		{err: extract.ErrTooLarge, want: "too large"},
		{err: &tokenizer.Error{Err: tokenizer.ErrInvalidEncoding}, want: "tokenized"},
		{err: &summarizer.Error{Stage: summarizer.StageChunk, Err: errors.New("x")}, want: "Summarization failed"},
		{err: context.DeadlineExceeded, want: "took too long"},
		{err: errors.New("other"), want: "Failed"},
	}

	for _, tt := range tests {
		if got := userErrorText(tt.err); !strings.Contains(got, tt.want) {
			t.Fatalf("userErrorText(%v) = %q, want it to contain %q", tt.err, got, tt.want)
		}
	}
}

func TestTierKeyboard(t *testing.T) {
	kb := tierKeyboard(length.Small)

	if len(kb.InlineKeyboard) != 1 || len(kb.InlineKeyboard[0]) != len(length.Tiers()) {
		t.Fatalf("unexpected keyboard shape: %+v", kb.InlineKeyboard)
	}

	first := kb.InlineKeyboard[0][0]
	if first.Text != "✅ Small" || first.CallbackData != "tier_small" {
		t.Fatalf("unexpected first button: %+v", first)
	}

	if kb.InlineKeyboard[0][2].Text != "Large" {
		t.Fatalf("unexpected last button: %+v", kb.InlineKeyboard[0][2])
	}
}

func TestCommandArgument(t *testing.T) {
	if got := commandArgument("/tier   Large "); got != "Large" {
		t.Fatalf("unexpected argument: %q", got)
	}

	if got := commandArgument("/tier"); got != "" {
		t.Fatalf("expected empty argument, got %q", got)
	}
}

func TestUserAllowed(t *testing.T) {
	open := &Bot{}
	if !open.userAllowed(1) {
		t.Fatalf("expected empty allow list to allow everyone")
	}

	restricted := &Bot{allowedUsers: []int64{7}}
	if !restricted.userAllowed(7) || restricted.userAllowed(8) {
		t.Fatalf("unexpected allow list behaviour")
	}
}

func TestCallbackChatID(t *testing.T) {
	withMessage := &models.CallbackQuery{
		From: models.User{ID: 5},
		Message: models.MaybeInaccessibleMessage{
			Message: &models.Message{Chat: models.Chat{ID: -100}},
		},
	}
	if got := callbackChatID(withMessage); got != -100 {
		t.Fatalf("expected message chat, got %d", got)
	}

	withoutMessage := &models.CallbackQuery{From: models.User{ID: 5}}
	if got := callbackChatID(withoutMessage); got != 5 {
		t.Fatalf("expected user chat, got %d", got)
	}
}
