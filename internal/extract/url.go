package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"mvdan.cc/xurls/v2"
)

const (
	DefaultFetchTimeout = 20 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

	telegramHost = "t.me"
)

//nolint:gochecknoglobals // Compiled once, read-only.
var (
	telegramSlugRe = regexp.MustCompile(`^\w{5,32}$`)
	httpsURLRe     = mustHTTPSURLRegexp()
)

func mustHTTPSURLRegexp() *regexp.Regexp {
	re, err := xurls.StrictMatchingScheme("https://")
	if err != nil {
		panic(fmt.Sprintf("compile https URL regexp: %v", err))
	}
	return re
}

// FindURL returns the first https link in text or an empty string.
func FindURL(text string) string {
	return strings.TrimSpace(httpsURLRe.FindString(text))
}

type Fetcher struct {
	client     *http.Client
	feedParser *gofeed.Parser
	limit      int64
	log        *slog.Logger
}

func NewFetcher(client *http.Client, limit int64, log *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}

	return &Fetcher{
		client:     client,
		feedParser: gofeed.NewParser(),
		limit:      limit,
		log:        log,
	}
}

// Fetch downloads rawURL and returns its readable text. Feeds yield their
// most recent entry and Telegram post links yield the post text.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", errors.New("URL is empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return "", fmt.Errorf("%w: scheme %q", ErrUnsupportedFormat, u.Scheme)
	}

	if slug, postID, ok := telegramPost(u); ok {
		return f.fetchTelegramPost(ctx, slug, postID)
	}

	body, contentType, err := f.get(ctx, rawURL)
	if err != nil {
		return "", err
	}

	var text string

	switch mediaType(contentType) {
	case "text/plain", "text/markdown":
		text = normalizeText(string(body))
	case "application/rss+xml", "application/atom+xml", "application/xml", "text/xml":
		text, err = f.latestFeedEntry(body)
	default:
		if looksLikeFeed(body) {
			text, err = f.latestFeedEntry(body)
			break
		}
		text, err = HTMLText(bytes.NewReader(body))
	}
	if err != nil {
		return "", err
	}

	if text == "" {
		f.log.WarnContext(ctx, "Fetched page has no text",
			"url", rawURL,
			"contentType", contentType)

		return "", ErrNoText
	}

	return text, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req) //nolint:gosec // User-supplied link
	if err != nil {
		return nil, "", fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			f.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"url", rawURL,
				"operation", "get")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	body, err := readLimited(resp.Body, f.limit)
	if err != nil {
		return nil, "", err
	}

	return body, resp.Header.Get("Content-Type"), nil
}

func (f *Fetcher) latestFeedEntry(body []byte) (string, error) {
	parsed, err := f.feedParser.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse feed: %w", err)
	}

	var latest *gofeed.Item

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		if latest == nil || itemTime(item).After(itemTime(latest)) {
			latest = item
		}
	}

	if latest == nil {
		return "", ErrNoText
	}

	content := strings.TrimSpace(latest.Content)
	if content == "" {
		content = strings.TrimSpace(latest.Description)
	}

	text := htmlFragmentText(content)
	if title := strings.TrimSpace(latest.Title); title != "" && text != "" {
		text = title + "\n" + text
	}

	return text, nil
}

func itemTime(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return *item.PublishedParsed
	case item.UpdatedParsed != nil:
		return *item.UpdatedParsed
	default:
		return time.Time{}
	}
}

// fetchTelegramPost reads the public web preview of a channel and picks the
// message with the given id.
func (f *Fetcher) fetchTelegramPost(ctx context.Context, slug string, postID string) (string, error) {
	previewURL := fmt.Sprintf("https://%s/s/%s/%s", telegramHost, slug, postID)

	body, _, err := f.get(ctx, previewURL)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	wantPost := slug + "/" + postID

	var text string

	doc.Find(".tgme_widget_message").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.AttrOr("data-post", "") != wantPost {
			return true
		}
		text = telegramMessageText(s)
		return false
	})

	if text == "" {
		return "", ErrNoText
	}

	return text, nil
}

func telegramMessageText(message *goquery.Selection) string {
	var sb strings.Builder

	message.Find(".tgme_widget_message_text, .tgme_widget_message_caption").Each(
		func(_ int, inner *goquery.Selection) {
			inner.Find("br").Each(func(_ int, br *goquery.Selection) {
				br.ReplaceWithHtml("\n")
			})
			fragment := strings.TrimSpace(inner.Text())
			if fragment == "" {
				return
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(fragment)
		},
	)

	return normalizeText(sb.String())
}

// telegramPost matches https://t.me/<slug>/<id> and https://t.me/s/<slug>/<id>.
func telegramPost(u *url.URL) (string, string, bool) {
	if u.Host != telegramHost {
		return "", "", false
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) > 0 && parts[0] == "s" {
		parts = parts[1:]
	}

	if len(parts) != 2 || !telegramSlugRe.MatchString(parts[0]) {
		return "", "", false
	}

	for _, r := range parts[1] {
		if r < '0' || r > '9' {
			return "", "", false
		}
	}

	return parts[0], parts[1], parts[1] != ""
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}

	return strings.ToLower(mt)
}

func looksLikeFeed(body []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(body[:min(len(body), 512)]))

	return bytes.HasPrefix(head, []byte("<?xml")) ||
		bytes.HasPrefix(head, []byte("<rss")) ||
		bytes.HasPrefix(head, []byte("<feed"))
}
