package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"

	"telesumm/internal/controller"
	"telesumm/internal/domain"
	"telesumm/internal/length"
	"telesumm/internal/service"
)

const welcomeText = `🤖 *Welcome to Telesumm\!*

I summarize long texts for you\. You can:

– Send or paste any text of at least %d words
– Upload a \.txt, \.md, \.html or \.docx document
– Send a link to an article, a feed or a public Telegram post
– Choose summary length with /tier \(current \- %s\)
– Get your last summary again with /last`

const tierText = `*📏 Summary length*

Current length is *%s*\.

You can choose different length below:`

func (b *Bot) handleStartCommand(ctx context.Context, chatID int64, userID int64) error {
	tier := b.userTier(ctx, userID)

	return b.sendMessage(ctx, chatID, fmt.Sprintf(welcomeText, controller.MinWords, tgbot.EscapeMarkdown(tier.Title())))
}

// handleTierCommand shows the tier keyboard, or sets the tier directly when
// the command has an argument such as "/tier large".
func (b *Bot) handleTierCommand(ctx context.Context, text string, chatID int64, userID int64) error {
	if arg := commandArgument(text); arg != "" {
		return b.setTier(ctx, arg, chatID, userID)
	}

	tier := b.userTier(ctx, userID)

	return b.sendMessageWithKeyboard(
		ctx,
		chatID,
		fmt.Sprintf(tierText, tgbot.EscapeMarkdown(tier.Title())),
		tierKeyboard(tier),
	)
}

func (b *Bot) handleLastCommand(ctx context.Context, chatID int64, userID int64) error {
	record, err := b.store.GetLastSummary(ctx, userID)
	if err != nil {
		errs := []error{fmt.Errorf("get last summary: %w", err)}

		if sendErr := b.sendMessage(ctx, chatID, "❌ Failed\\."); sendErr != nil {
			errs = append(errs, fmt.Errorf("send message: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	if record == nil {
		return b.sendMessage(ctx, chatID, "✖️ History is empty\\.")
	}

	return b.sendSummary(ctx, chatID, service.Result{
		Result: controller.Result{
			Summary: record.Summary,
			Tier:    length.Tier(record.Tier),
			Chunks:  record.Chunks,
		},
	})
}

func (b *Bot) setTier(ctx context.Context, name string, chatID int64, userID int64) error {
	tier, err := length.Parse(name)
	if err != nil {
		return errors.Join(
			fmt.Errorf("parse tier: %w", err),
			b.sendMessage(ctx, chatID, userErrorText(err)),
		)
	}

	if err = b.store.UpsertUserSettings(ctx, &domain.UserSettings{
		UserID: userID,
		Tier:   string(tier),
	}); err != nil {
		errs := []error{fmt.Errorf("upsert user settings: %w", err)}

		if sendErr := b.sendMessage(ctx, chatID, "❌ Failed\\."); sendErr != nil {
			errs = append(errs, fmt.Errorf("send message: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	return b.sendMessage(ctx, chatID, fmt.Sprintf("✅ Summary length is *%s*\\.", tgbot.EscapeMarkdown(tier.Title())))
}

// userTier never fails: a broken settings lookup is logged and the default
// tier is used.
func (b *Bot) userTier(ctx context.Context, userID int64) length.Tier {
	settings, err := b.store.GetUserSettingsWithDefault(ctx, userID)
	if err != nil {
		b.log.WarnContext(ctx, "Failed to get user settings, default tier is used",
			"error", err,
			"userID", userID)

		return length.DefaultTier
	}

	tier, err := length.Parse(settings.Tier)
	if err != nil {
		b.log.WarnContext(ctx, "Stored tier is unknown, default tier is used",
			"userID", userID,
			"tier", settings.Tier)

		return length.DefaultTier
	}

	return tier
}

func commandArgument(text string) string {
	_, arg, _ := strings.Cut(strings.TrimSpace(text), " ")
	return strings.TrimSpace(arg)
}
