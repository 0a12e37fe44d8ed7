package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"telesumm/internal/extract"
	"telesumm/internal/service"
)

func (b *Bot) handleMessage(ctx context.Context, message *models.Message) error {
	chatID := message.Chat.ID
	userID := message.From.ID

	if message.Document != nil {
		return b.withSpinner(ctx, chatID, func() error {
			return b.handleDocument(ctx, message.Document, chatID, userID)
		})
	}

	text := strings.TrimSpace(message.Text)

	switch {
	case text == "":
		return nil
	case strings.HasPrefix(text, "/start"), strings.HasPrefix(text, "/help"):
		return b.handleStartCommand(ctx, chatID, userID)
	case strings.HasPrefix(text, "/tier"):
		return b.handleTierCommand(ctx, text, chatID, userID)
	case strings.HasPrefix(text, "/last"):
		return b.handleLastCommand(ctx, chatID, userID)
	default:
		return b.withSpinner(ctx, chatID, func() error {
			return b.summarizeAndReply(ctx, text, chatID, userID)
		})
	}
}

func (b *Bot) handleDocument(
	ctx context.Context,
	document *models.Document,
	chatID int64,
	userID int64,
) error {
	text, err := b.downloadDocument(ctx, document)
	if err != nil {
		return errors.Join(
			fmt.Errorf("download document: %w", err),
			b.sendMessage(ctx, chatID, userErrorText(err)),
		)
	}

	b.log.InfoContext(ctx, "Document is extracted",
		"userID", userID,
		"fileName", document.FileName,
		"fileSize", document.FileSize,
		"chars", len(text))

	return b.summarizeAndReply(ctx, text, chatID, userID)
}

func (b *Bot) downloadDocument(ctx context.Context, document *models.Document) (string, error) {
	if b.maxUploadBytes > 0 && document.FileSize > b.maxUploadBytes {
		return "", fmt.Errorf("%w: %d bytes", extract.ErrTooLarge, document.FileSize)
	}

	if !extract.Supported(document.FileName) {
		return "", fmt.Errorf("%w: %q", extract.ErrUnsupportedFormat, document.FileName)
	}

	file, err := b.api.GetFile(ctx, &tgbot.GetFileParams{FileID: document.FileID})
	if err != nil {
		return "", fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.api.FileDownloadLink(file), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := b.downloadClient.Do(req) //nolint:gosec // Telegram file URL
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			b.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"fileName", document.FileName,
				"operation", "downloadDocument")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	return extract.FromFile(document.FileName, resp.Body, b.maxUploadBytes)
}

func (b *Bot) summarizeAndReply(ctx context.Context, text string, chatID int64, userID int64) error {
	tier := b.userTier(ctx, userID)

	res, err := b.summarizer.Summarize(ctx, service.Request{
		UserID: userID,
		Text:   text,
		Tier:   string(tier),
	})
	if err != nil {
		return errors.Join(
			fmt.Errorf("summarize: %w", err),
			b.sendMessage(ctx, chatID, userErrorText(err)),
		)
	}

	b.log.InfoContext(ctx, "Summary is ready",
		"userID", userID,
		"tier", string(res.Tier),
		"chunks", res.Chunks,
		"modelCalls", res.ModelCalls,
		"cached", res.Cached)

	return b.sendSummary(ctx, chatID, res)
}
