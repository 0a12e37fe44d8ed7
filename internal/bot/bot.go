package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"telesumm/internal/domain"
	"telesumm/internal/ratelimiter"
	"telesumm/internal/service"
)

const (
	defaultUpdateProcessingTimeout = 3 * time.Minute
	downloadClientTimeout          = 60 * time.Second
)

type Summarizer interface {
	Summarize(ctx context.Context, req service.Request) (service.Result, error)
}

type Store interface {
	GetUserSettingsWithDefault(ctx context.Context, userID int64) (*domain.UserSettings, error)
	UpsertUserSettings(ctx context.Context, userSettings *domain.UserSettings) error
	GetLastSummary(ctx context.Context, userID int64) (*domain.SummaryRecord, error)
}

type Options struct {
	AllowedUsers []int64
	// MaxUploadBytes caps documents downloaded from Telegram.
	MaxUploadBytes int64
	// UpdateTimeout bounds the handling of one update, summarization included.
	UpdateTimeout time.Duration
}

type Bot struct {
	api            *tgbot.Bot
	rateLimiter    *ratelimiter.RateLimiter
	summarizer     Summarizer
	store          Store
	downloadClient *http.Client
	allowedUsers   []int64
	maxUploadBytes int64
	updateTimeout  time.Duration
	log            *slog.Logger
}

func New(
	token string,
	summarizer Summarizer,
	store Store,
	opts Options,
	log *slog.Logger,
) (*Bot, error) {
	token = strings.TrimSpace(token)

	updateTimeout := opts.UpdateTimeout
	if updateTimeout <= 0 {
		updateTimeout = defaultUpdateProcessingTimeout
	}

	b := &Bot{
		summarizer:     summarizer,
		store:          store,
		downloadClient: &http.Client{Timeout: downloadClientTimeout},
		allowedUsers:   opts.AllowedUsers,
		maxUploadBytes: opts.MaxUploadBytes,
		updateTimeout:  updateTimeout,
		log:            log,
	}

	api, err := tgbot.New(token, tgbot.WithDefaultHandler(b.handleUpdate))
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}

	b.api = api
	b.rateLimiter = ratelimiter.New(api, log)

	return b, nil
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.log.InfoContext(ctx, "Bot is started",
		"allowedUsers", len(b.allowedUsers))

	b.api.Start(ctx)

	b.log.InfoContext(ctx, "Bot context is done",
		"error", ctx.Err())
}

func (b *Bot) Stop() {
	if b.rateLimiter != nil {
		b.rateLimiter.Stop()
	}
}

func (b *Bot) handleUpdate(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, b.updateTimeout)
	defer cancel()

	switch {
	case update.Message != nil:
		message := update.Message
		if message.From == nil {
			return
		}

		userID := message.From.ID
		if !b.userAllowed(userID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", userID,
				"chatID", message.Chat.ID,
				"username", message.From.Username,
				"chatType", string(message.Chat.Type))

			return
		}

		if err := b.handleMessage(updateCtx, message); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle message",
				"error", err,
				"chatID", message.Chat.ID,
				"userID", userID,
				"chatType", string(message.Chat.Type),
				"messageID", message.ID)
		}

	case update.CallbackQuery != nil:
		callback := update.CallbackQuery

		if !b.userAllowed(callback.From.ID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", callback.From.ID,
				"chatID", callbackChatID(callback),
				"username", callback.From.Username,
				"data", callback.Data)

			return
		}

		if err := b.handleCallbackQuery(updateCtx, callback); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle callback query",
				"error", err,
				"chatID", callbackChatID(callback),
				"userID", callback.From.ID,
				"data", callback.Data)
		}
	}
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}

// callbackChatID falls back to the user ID, which is the private chat ID,
// when the original message is no longer accessible.
func callbackChatID(callback *models.CallbackQuery) int64 {
	switch {
	case callback.Message.Message != nil:
		return callback.Message.Message.Chat.ID
	case callback.Message.InaccessibleMessage != nil:
		return callback.Message.InaccessibleMessage.Chat.ID
	default:
		return callback.From.ID
	}
}
