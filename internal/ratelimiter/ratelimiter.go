// Package ratelimiter paces outgoing Telegram messages per chat so the bot
// stays under the Bot API flood limits.
package ratelimiter

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	privateChatRate = time.Second
	groupChatRate   = 3 * time.Second
	queueSize       = 1000
)

type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type request struct {
	ctx      context.Context
	params   *bot.SendMessageParams
	response chan response
}

type response struct {
	message *models.Message
	err     error
}

type RateLimiter struct {
	sender      Sender
	queue       chan request
	lastSent    map[int64]time.Time
	mu          sync.Mutex
	privateRate time.Duration
	groupRate   time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	log         *slog.Logger
}

func New(sender Sender, log *slog.Logger) *RateLimiter {
	return newRateLimiter(sender, privateChatRate, groupChatRate, log)
}

func newRateLimiter(
	sender Sender,
	privateRate time.Duration,
	groupRate time.Duration,
	log *slog.Logger,
) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())

	rl := &RateLimiter{
		sender:      sender,
		queue:       make(chan request, queueSize),
		lastSent:    make(map[int64]time.Time),
		privateRate: privateRate,
		groupRate:   groupRate,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		log:         log,
	}

	go rl.processQueue()

	return rl
}

// SendMessage queues params and waits until the message is sent, ctx is done
// or the limiter is stopped.
func (rl *RateLimiter) SendMessage(
	ctx context.Context,
	params *bot.SendMessageParams,
) (*models.Message, error) {
	if err := rl.ctx.Err(); err != nil {
		return nil, err
	}

	req := request{
		ctx:      ctx,
		params:   params,
		response: make(chan response, 1),
	}

	select {
	case rl.queue <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-rl.ctx.Done():
		return nil, rl.ctx.Err()
	}

	select {
	case resp := <-req.response:
		return resp.message, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-rl.done:
		return nil, rl.ctx.Err()
	}
}

func (rl *RateLimiter) Stop() {
	rl.cancel()
	<-rl.done
}

func (rl *RateLimiter) processQueue() {
	defer close(rl.done)

	for {
		select {
		case req := <-rl.queue:
			rl.handleRequest(req)
		case <-rl.ctx.Done():
			for {
				select {
				case req := <-rl.queue:
					req.response <- response{err: rl.ctx.Err()}
				default:
					return
				}
			}
		}
	}
}

func (rl *RateLimiter) handleRequest(req request) {
	if err := req.ctx.Err(); err != nil {
		req.response <- response{err: err}
		return
	}

	chatID := chatIDOf(req.params.ChatID)

	rl.mu.Lock()
	lastSent, exists := rl.lastSent[chatID]
	rl.mu.Unlock()

	if exists {
		delay := rl.delay(chatID, lastSent)

		if delay > 0 {
			rl.log.DebugContext(req.ctx, "Rate limiting message",
				"chatID", chatID,
				"delay", delay,
				"queueLen", len(rl.queue))

			select {
			case <-time.After(delay):
			case <-req.ctx.Done():
				req.response <- response{err: req.ctx.Err()}
				return
			case <-rl.ctx.Done():
				req.response <- response{err: rl.ctx.Err()}
				return
			}
		}
	}

	message, err := rl.sender.SendMessage(req.ctx, req.params)

	rl.mu.Lock()
	rl.lastSent[chatID] = time.Now()
	rl.mu.Unlock()

	req.response <- response{
		message: message,
		err:     err,
	}
}

func chatIDOf(chatID any) int64 {
	switch id := chatID.(type) {
	case int64:
		return id
	case int:
		return int64(id)
	case string:
		parsed, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func (rl *RateLimiter) delay(chatID int64, lastSent time.Time) time.Duration {
	rate := rl.privateRate
	if chatID < 0 {
		rate = rl.groupRate
	}

	return max(rate-time.Since(lastSent), 0)
}
