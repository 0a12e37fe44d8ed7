package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbot "github.com/go-telegram/bot"

	"telesumm/internal/controller"
	"telesumm/internal/extract"
	"telesumm/internal/length"
	"telesumm/internal/service"
	"telesumm/internal/summarizer"
	"telesumm/internal/tokenizer"
)

const telegramMessageMaxLength = 4096

func (b *Bot) sendSummary(ctx context.Context, chatID int64, res service.Result) error {
	var errs []error

	for _, message := range formatSummaryMessages(res) {
		if err := b.sendMessage(ctx, chatID, message); err != nil {
			errs = append(errs, fmt.Errorf("send message: %w", err))
		}
	}

	return errors.Join(errs...)
}

func formatSummaryMessages(res service.Result) []string {
	var header strings.Builder

	header.WriteString(fmt.Sprintf("📝 *Summary* \\(%s", tgbot.EscapeMarkdown(res.Tier.Title())))
	if res.Chunks > 1 {
		header.WriteString(fmt.Sprintf(", %d parts", res.Chunks))
	}
	if res.Cached {
		header.WriteString(", cached")
	}
	header.WriteString("\\)\n")

	if res.SourceURL != "" {
		header.WriteString(fmt.Sprintf("🔗 %s\n", tgbot.EscapeMarkdown(res.SourceURL)))
	}
	if res.TierFallback {
		header.WriteString(fmt.Sprintf("⚠️ Unknown length, %s is used\\.\n", tgbot.EscapeMarkdown(res.Tier.Title())))
	}
	header.WriteString("\n")

	body := tgbot.EscapeMarkdown(strings.TrimSpace(res.Summary))
	parts := splitMessage(body, telegramMessageMaxLength-header.Len())
	if len(parts) == 0 {
		return []string{header.String()}
	}

	parts[0] = header.String() + parts[0]

	return parts
}

// splitMessage cuts escaped MarkdownV2 text into pieces of at most limit
// bytes, preferring line and word boundaries and never separating an escape
// backslash from the character it escapes.
func splitMessage(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 1 {
		limit = telegramMessageMaxLength
	}

	var parts []string

	for len(text) > limit {
		cut := cutPosition(text, limit)

		parts = append(parts, strings.TrimRight(text[:cut], " \n"))
		text = strings.TrimLeft(text[cut:], " \n")
	}

	if text != "" {
		parts = append(parts, text)
	}

	return parts
}

func cutPosition(text string, limit int) int {
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}

	if i := strings.LastIndex(text[:cut], "\n"); i > limit/2 {
		cut = i + 1
	} else if i = strings.LastIndex(text[:cut], " "); i > limit/2 {
		cut = i + 1
	}

	if trailingBackslashes(text[:cut])%2 == 1 {
		cut--
	}

	if cut <= 0 {
		return limit
	}

	return cut
}

func trailingBackslashes(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n
}

// userErrorText turns a pipeline failure into a MarkdownV2 reply.
func userErrorText(err error) string {
	var (
		tokErr *tokenizer.Error
		sumErr *summarizer.Error
	)

	switch {
	case errors.Is(err, controller.ErrInputTooShort):
		return fmt.Sprintf("✖️ Text is too short to summarize\\. Send at least %d words or a link\\.", controller.MinWords)
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return "✖️ Unsupported document\\. Send " + tgbot.EscapeMarkdown(strings.Join(extract.Extensions(), ", ")) + "\\."
	case errors.Is(err, extract.ErrTooLarge):
		return "✖️ Document is too large\\."
	case errors.Is(err, extract.ErrNoText):
		return "✖️ No text is found\\."
	case errors.Is(err, length.ErrUnknownTier):
		return "✖️ Unknown length\\. Choose one with /tier\\."
	case errors.Is(err, context.DeadlineExceeded):
		return "⌛ Summarization took too long\\. Try a shorter text\\."
	case errors.As(err, &tokErr):
		return "❌ Text could not be tokenized\\."
	case errors.As(err, &sumErr):
		return "❌ Summarization failed\\. Try again later\\."
	default:
		return "❌ Failed\\."
	}
}
