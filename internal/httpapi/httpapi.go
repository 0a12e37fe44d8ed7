// Package httpapi serves summarization over HTTP for clients other than
// the Telegram bot.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"telesumm/internal/controller"
	"telesumm/internal/extract"
	"telesumm/internal/length"
	"telesumm/internal/service"
	"telesumm/internal/summarizer"
	"telesumm/internal/tokenizer"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second

	defaultMaxUploadBytes = 10 << 20

	// multipartOverheadBytes leaves room for form fields around the file.
	multipartOverheadBytes = 64 << 10
)

type Summarizer interface {
	Summarize(ctx context.Context, req service.Request) (service.Result, error)
}

type Options struct {
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

type Server struct {
	srv            *http.Server
	summarizer     Summarizer
	maxUploadBytes int64
	requestTimeout time.Duration
	log            *slog.Logger
}

type summarizeRequest struct {
	Text string `json:"text"`
	Tier string `json:"tier"`
}

type summarizeResponse struct {
	Summary      string `json:"summary"`
	Tier         string `json:"tier"`
	TierFallback bool   `json:"tierFallback"`
	Chunks       int    `json:"chunks"`
	ModelCalls   int    `json:"modelCalls"`
	Cached       bool   `json:"cached"`
	SourceURL    string `json:"sourceUrl,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(addr string, s Summarizer, opts Options, log *slog.Logger) *Server {
	maxUploadBytes := opts.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}

	server := &Server{
		summarizer:     s,
		maxUploadBytes: maxUploadBytes,
		requestTimeout: opts.RequestTimeout,
		log:            log,
	}

	server.srv = &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/summarize", s.handleSummarize)
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)

	return mux
}

// Start blocks until the server is shut down.
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.srv.Addr
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	req, status, err := s.decodeRequest(w, r)
	if err != nil {
		s.log.InfoContext(ctx, "Rejected summarize request",
			"error", err,
			"status", status,
			"remoteAddr", r.RemoteAddr)

		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	res, err := s.summarizer.Summarize(ctx, service.Request{
		Text: req.Text,
		Tier: req.Tier,
	})
	if err != nil {
		status = statusFor(err)

		if status >= http.StatusInternalServerError {
			s.log.ErrorContext(ctx, "Failed to summarize",
				"error", err,
				"status", status,
				"tier", req.Tier)
		} else {
			s.log.InfoContext(ctx, "Rejected summarize request",
				"error", err,
				"status", status,
				"tier", req.Tier)
		}

		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, summarizeResponse{
		Summary:      res.Summary,
		Tier:         string(res.Tier),
		TierFallback: res.TierFallback,
		Chunks:       res.Chunks,
		ModelCalls:   res.ModelCalls,
		Cached:       res.Cached,
		SourceURL:    res.SourceURL,
	})
}

// decodeRequest accepts a JSON body or a multipart form with a "file" part
// (or a "text" field) and an optional "tier" field.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (summarizeRequest, int, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		return s.decodeMultipart(w, r)
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return req, http.StatusRequestEntityTooLarge, extract.ErrTooLarge
		}
		return req, http.StatusBadRequest, errors.New("invalid JSON body")
	}

	if strings.TrimSpace(req.Text) == "" {
		return req, http.StatusBadRequest, errors.New("no valid input provided")
	}

	return req, http.StatusOK, nil
}

func (s *Server) decodeMultipart(w http.ResponseWriter, r *http.Request) (summarizeRequest, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverheadBytes)

	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return summarizeRequest{}, http.StatusRequestEntityTooLarge, extract.ErrTooLarge
		}
		return summarizeRequest{}, http.StatusBadRequest, errors.New("invalid multipart form")
	}

	req := summarizeRequest{
		Text: r.FormValue("text"),
		Tier: r.FormValue("tier"),
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		if strings.TrimSpace(req.Text) == "" {
			return req, http.StatusBadRequest, errors.New("no valid input provided")
		}
		return req, http.StatusOK, nil
	}
	if err != nil {
		return req, http.StatusBadRequest, fmt.Errorf("read file part: %w", err)
	}
	defer func() {
		if err = file.Close(); err != nil {
			s.log.ErrorContext(r.Context(), "Failed to close uploaded file",
				"error", err,
				"fileName", header.Filename)
		}
	}()

	if strings.TrimSpace(header.Filename) == "" {
		return req, http.StatusBadRequest, errors.New("no file selected")
	}

	text, err := extract.FromFile(header.Filename, file, s.maxUploadBytes)
	if err != nil {
		return req, statusFor(err), err
	}

	req.Text = text

	return req, http.StatusOK, nil
}

func statusFor(err error) int {
	var (
		tokErr *tokenizer.Error
		sumErr *summarizer.Error
	)

	switch {
	case errors.Is(err, controller.ErrInputTooShort),
		errors.Is(err, extract.ErrUnsupportedFormat),
		errors.Is(err, extract.ErrNoText),
		errors.Is(err, length.ErrUnknownTier):
		return http.StatusBadRequest
	case errors.Is(err, extract.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &tokErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &sumErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
