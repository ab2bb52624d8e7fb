// Package server exposes speech generation and the voice registry over HTTP.
//
// Routes:
//
//	POST   /v1/speech        generate audio from an ordered list of blocks
//	GET    /v1/voices        list registered voices
//	PUT    /v1/voices/{id}   register or replace a voice
//	DELETE /v1/voices/{id}   unregister a voice
//
// /healthz, /readyz and /metrics are mounted when the corresponding options
// are supplied. Every route is wrapped by [observe.Middleware].
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Jellypod-Inc/route-tts/internal/health"
	"github.com/Jellypod-Inc/route-tts/internal/observe"
	"github.com/Jellypod-Inc/route-tts/internal/resilience"
	"github.com/Jellypod-Inc/route-tts/internal/speech"
	"github.com/Jellypod-Inc/route-tts/pkg/audio"
	"github.com/Jellypod-Inc/route-tts/pkg/provider/tts"
	"github.com/Jellypod-Inc/route-tts/pkg/voice"
)

const (
	// defaultReadHeaderTimeout bounds slow clients that trickle headers.
	defaultReadHeaderTimeout = 10 * time.Second

	defaultShutdownTimeout = 15 * time.Second

	// defaultMaxBodySize caps request bodies. Long scripts fit comfortably.
	defaultMaxBodySize = 4 << 20
)

// Service is the generation backend. *app.App satisfies it.
type Service interface {
	Defaults() speech.Options
	Generate(ctx context.Context, blocks []voice.SpeechBlock, opts speech.Options) (speech.Result, error)
	Voices() []voice.Voice
	UpsertVoice(v voice.Voice) error
	RemoveVoice(id string) error
}

// Server serves the HTTP API over a [Service].
type Server struct {
	svc         Service
	health      *health.Handler
	metrics     http.Handler
	httpMetrics *observe.Metrics
	maxBodySize int64

	certFile, keyFile string
}

// Option is a functional option for New.
type Option func(*Server)

// WithHealth mounts /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithObserveMetrics sets the instruments used by the request middleware.
func WithObserveMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.httpMetrics = m }
}

// WithTLS serves HTTPS using the given certificate and key files.
func WithTLS(certFile, keyFile string) Option {
	return func(s *Server) { s.certFile, s.keyFile = certFile, keyFile }
}

// WithMaxBodySize overrides the request body limit.
func WithMaxBodySize(n int64) Option {
	return func(s *Server) { s.maxBodySize = n }
}

// New creates a Server backed by svc.
func New(svc Service, opts ...Option) *Server {
	s := &Server{svc: svc, maxBodySize: defaultMaxBodySize}
	for _, o := range opts {
		o(s)
	}
	if s.httpMetrics == nil {
		s.httpMetrics = observe.DefaultMetrics()
	}
	return s
}

// Handler returns the routed and instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/speech", s.handleSpeech)
	mux.HandleFunc("GET /v1/voices", s.handleListVoices)
	mux.HandleFunc("PUT /v1/voices/{id}", s.handlePutVoice)
	mux.HandleFunc("DELETE /v1/voices/{id}", s.handleDeleteVoice)
	if s.health != nil {
		s.health.Register(mux)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return observe.Middleware(s.httpMetrics)(mux)
}

// Run serves on ln until ctx is cancelled, then drains in-flight requests.
// It returns nil after a clean shutdown.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", ln.Addr().String(), "tls", s.certFile != "")
		if s.certFile != "" {
			errCh <- srv.ServeTLS(ln, s.certFile, s.keyFile)
		} else {
			errCh <- srv.Serve(ln)
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	slog.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// ─── Speech ──────────────────────────────────────────────────────────────────

type speechRequest struct {
	Blocks  []voice.SpeechBlock `json:"blocks"`
	Options *optionOverrides    `json:"options,omitempty"`
}

// optionOverrides carries per-request overrides of the configured defaults.
// Absent fields keep the default.
type optionOverrides struct {
	InterBlockBufferMs *int     `json:"inter_block_buffer_ms,omitempty"`
	SingleOutput       *bool    `json:"single_output,omitempty"`
	NormalizeOutputs   *bool    `json:"normalize_outputs,omitempty"`
	RequestStitching   *bool    `json:"request_stitching,omitempty"`
	TargetLevel        *float64 `json:"target_level,omitempty"`
	Tolerance          *float64 `json:"tolerance,omitempty"`
}

func (o *optionOverrides) apply(base speech.Options) speech.Options {
	if o == nil {
		return base
	}
	if o.InterBlockBufferMs != nil {
		base.InterBlockBufferMs = *o.InterBlockBufferMs
	}
	if o.SingleOutput != nil {
		base.SingleOutput = *o.SingleOutput
	}
	if o.NormalizeOutputs != nil {
		base.NormalizeOutputs = *o.NormalizeOutputs
	}
	if o.RequestStitching != nil {
		base.RequestStitching = *o.RequestStitching
	}
	if o.TargetLevel != nil {
		base.TargetLevel = *o.TargetLevel
	}
	if o.Tolerance != nil {
		base.Tolerance = *o.Tolerance
	}
	return base
}

type segmentsResponse struct {
	RunID    string    `json:"run_id"`
	Segments []segment `json:"segments"`
}

// segment is one block's audio as a base64-encoded WAV file.
type segment struct {
	Index      int    `json:"index"`
	DurationMs int64  `json:"duration_ms"`
	WAV        []byte `json:"wav"`
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	opts := req.Options.apply(s.svc.Defaults())
	res, err := s.svc.Generate(r.Context(), req.Blocks, opts)
	if err != nil {
		status := statusFor(err)
		observe.Logger(r.Context()).Warn("speech generation failed", "status", status, "err", err)
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("X-Run-ID", res.RunID)

	if opts.SingleOutput {
		body, err := audio.EncodeWAV(res.Audio)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(body)
		return
	}

	out := segmentsResponse{RunID: res.RunID, Segments: make([]segment, 0, len(res.Segments))}
	for i, seg := range res.Segments {
		body, err := audio.EncodeWAV(seg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out.Segments = append(out.Segments, segment{Index: i, DurationMs: seg.LengthMs(), WAV: body})
	}
	writeJSON(w, http.StatusOK, out)
}

// statusFor maps a generation error onto an HTTP status.
func statusFor(err error) int {
	var (
		notFound    *speech.VoiceNotFoundError
		unsupported *speech.UnsupportedPlatformError
		vendor      *tts.ProviderError
	)
	switch {
	case errors.Is(err, speech.ErrEmptyInput), errors.Is(err, speech.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.As(err, &unsupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, tts.ErrProviderNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &vendor), errors.Is(err, tts.ErrMissingContinuationToken):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ─── Voices ──────────────────────────────────────────────────────────────────

func (s *Server) handleListVoices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Voices())
}

func (s *Server) handlePutVoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var v voice.Voice
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if v.ID == "" {
		v.ID = id
	}
	if v.ID != id {
		http.Error(w, fmt.Sprintf("body id %q does not match path id %q", v.ID, id), http.StatusBadRequest)
		return
	}
	if err := s.svc.UpsertVoice(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	observe.Logger(r.Context()).Info("voice registered", "voice", v.ID, "platform", v.Platform)
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDeleteVoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.svc.RemoveVoice(id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, voice.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	observe.Logger(r.Context()).Info("voice removed", "voice", id)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
