// Package service is the request facade shared by the Telegram bot and the
// HTTP API. It resolves links, consults the summary cache, runs the
// controller and records history.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"telesumm/internal/cache"
	"telesumm/internal/controller"
	"telesumm/internal/domain"
	"telesumm/internal/extract"
	"telesumm/internal/length"
)

type DocumentSummarizer interface {
	Summarize(ctx context.Context, text string, tier length.Tier) (controller.Result, error)
}

type History interface {
	AddSummary(ctx context.Context, record *domain.SummaryRecord) error
}

type LinkFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

type Request struct {
	// UserID is zero for anonymous requests, which are not kept in history.
	UserID int64
	Text   string
	Tier   string
}

type Result struct {
	controller.Result

	Cached bool
	// SourceURL is set when the text was fetched from a link in the request.
	SourceURL string
}

type Options struct {
	Cache      cache.Cache
	CacheTTL   time.Duration
	// CacheScope describes the backend and pipeline settings so a cache
	// shared across deployments never serves a summary made under others.
	CacheScope cache.Scope
	History    History
	Fetcher    LinkFetcher
}

type Service struct {
	summarizer DocumentSummarizer
	cache      cache.Cache
	cacheTTL   time.Duration
	cacheScope cache.Scope
	history    History
	fetcher    LinkFetcher
	log        *slog.Logger
}

func New(s DocumentSummarizer, opts Options, log *slog.Logger) *Service {
	return &Service{
		summarizer: s,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		cacheScope: opts.CacheScope,
		history:    opts.History,
		fetcher:    opts.Fetcher,
		log:        log,
	}
}

func (s *Service) Summarize(ctx context.Context, req Request) (Result, error) {
	text := strings.TrimSpace(req.Text)

	var sourceURL string

	if link := s.linkToFetch(text); link != "" {
		fetched, err := s.fetcher.Fetch(ctx, link)
		if err != nil {
			return Result{}, fmt.Errorf("fetch link: %w", err)
		}

		s.log.InfoContext(ctx, "Link is fetched",
			"url", link,
			"userID", req.UserID,
			"chars", len(fetched))

		text = fetched
		sourceURL = link
	}

	tier, fellBack := cacheTier(req.Tier)
	key := cache.Key(s.cacheScope, string(tier), text)

	if entry, ok := s.cached(ctx, key); ok {
		_, words, _ := controller.CheckInput(text)

		result := Result{
			Result: controller.Result{
				Summary:      entry.Summary,
				Tier:         tier,
				TierFallback: fellBack,
				Words:        words,
				Tokens:       entry.Tokens,
				Chunks:       entry.Chunks,
			},
			Cached:    true,
			SourceURL: sourceURL,
		}
		s.record(ctx, req.UserID, result)

		return result, nil
	}

	requested := tier
	if fellBack {
		requested = length.Tier(req.Tier)
	}

	res, err := s.summarizer.Summarize(ctx, text, requested)
	if err != nil {
		return Result{}, err
	}

	if s.cache != nil {
		entry := cache.Entry{
			Summary: res.Summary,
			Tier:    string(res.Tier),
			Tokens:  res.Tokens,
			Chunks:  res.Chunks,
		}
		if err = s.cache.Set(ctx, key, entry, s.cacheTTL); err != nil {
			s.log.WarnContext(ctx, "Failed to cache summary",
				"error", err,
				"userID", req.UserID)
		}
	}

	result := Result{Result: res, SourceURL: sourceURL}
	s.record(ctx, req.UserID, result)

	return result, nil
}

// linkToFetch returns the https link of a short message, which is read as a
// request to summarize the linked page.
func (s *Service) linkToFetch(text string) string {
	if s.fetcher == nil {
		return ""
	}

	if len(strings.Fields(text)) >= controller.MinWords {
		return ""
	}

	return extract.FindURL(text)
}

func (s *Service) cached(ctx context.Context, key string) (cache.Entry, bool) {
	if s.cache == nil || key == "" {
		return cache.Entry{}, false
	}

	entry, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to read summary cache",
			"error", err)

		return cache.Entry{}, false
	}

	if ok {
		s.log.DebugContext(ctx, "Summary is served from cache",
			"tier", entry.Tier,
			"chunks", entry.Chunks,
			"age", time.Since(entry.CreatedAt).Round(time.Second).String())
	}

	return entry, ok
}

func (s *Service) record(ctx context.Context, userID int64, result Result) {
	if s.history == nil || userID == 0 {
		return
	}

	err := s.history.AddSummary(ctx, &domain.SummaryRecord{
		UserID:  userID,
		Tier:    string(result.Tier),
		Summary: result.Summary,
		Chunks:  result.Chunks,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to store summary",
			"error", err,
			"userID", userID)
	}
}

// cacheTier mirrors length.Policy fallback so cache keys use the tier that
// would actually be applied.
func cacheTier(requested string) (length.Tier, bool) {
	tier, err := length.Parse(requested)
	if err != nil {
		return length.DefaultTier, true
	}

	return tier, false
}
