package bot

import (
	"context"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"telesumm/internal/length"
)

const tierCallbackPrefix = "tier_"

func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) error {
	return b.sendMessageWithKeyboard(ctx, chatID, text, nil)
}

func (b *Bot) sendMessageWithKeyboard(
	ctx context.Context,
	chatID int64,
	text string,
	keyboard *models.InlineKeyboardMarkup,
) error {
	normalizedText := strings.ToValidUTF8(text, "?")
	if normalizedText != text {
		b.log.WarnContext(ctx, "Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalizedText))
	}

	params := &tgbot.SendMessageParams{
		ChatID:    chatID,
		Text:      normalizedText,
		ParseMode: models.ParseModeMarkdown,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: tgbot.True(),
		},
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	_, err := b.rateLimiter.SendMessage(ctx, params)

	return err
}

// tierKeyboard marks the current tier with a check.
func tierKeyboard(current length.Tier) *models.InlineKeyboardMarkup {
	row := make([]models.InlineKeyboardButton, 0, len(length.Tiers()))

	for _, t := range length.Tiers() {
		text := t.Title()
		if t == current {
			text = "✅ " + text
		}

		row = append(row, models.InlineKeyboardButton{
			Text:         text,
			CallbackData: tierCallbackPrefix + string(t),
		})
	}

	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{row},
	}
}
