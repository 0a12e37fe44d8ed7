package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"telesumm/internal/domain"
	"telesumm/internal/length"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *models.CallbackQuery) error {
	data := strings.TrimSpace(callback.Data)

	if name, ok := strings.CutPrefix(data, tierCallbackPrefix); ok {
		return b.handleTierQuery(ctx, name, callback)
	}

	return b.answerCallback(ctx, callback, "")
}

func (b *Bot) handleTierQuery(ctx context.Context, name string, callback *models.CallbackQuery) error {
	tier, err := length.Parse(name)
	if err != nil {
		return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("parse tier: %w", err))
	}

	if err = b.store.UpsertUserSettings(ctx, &domain.UserSettings{
		UserID: callback.From.ID,
		Tier:   string(tier),
	}); err != nil {
		return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("upsert user settings: %w", err))
	}

	if err = b.answerCallback(ctx, callback, "✅ Length is updated."); err != nil {
		return err
	}

	return b.sendMessageWithKeyboard(
		ctx,
		callbackChatID(callback),
		fmt.Sprintf(tierText, tgbot.EscapeMarkdown(tier.Title())),
		tierKeyboard(tier),
	)
}

func (b *Bot) answerCallback(ctx context.Context, callback *models.CallbackQuery, text string) error {
	if _, err := b.api.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
		Text:            text,
	}); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}

	return nil
}

func (b *Bot) errorCallbackAnswer(ctx context.Context, callback *models.CallbackQuery, err error) error {
	if sendErr := b.answerCallback(ctx, callback, "❌ Failed."); sendErr != nil {
		return errors.Join(err, sendErr)
	}

	return err
}
