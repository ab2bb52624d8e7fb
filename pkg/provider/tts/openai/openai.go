// Package openai provides a stateless TTS adapter backed by the OpenAI speech
// endpoint. It implements tts.SimpleSynthesizer.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Jellypod-Inc/route-tts/pkg/provider/tts"
)

const providerName = "openai"

// Provider implements tts.SimpleSynthesizer using the OpenAI API.
type Provider struct {
	client oai.Client
}

var _ tts.SimpleSynthesizer = (*Provider)(nil)

// config holds optional configuration for the provider.
type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
	httpClient   *http.Client
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithHTTPClient overrides the HTTP client. A configured timeout is applied
// on top of it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// New constructs a new OpenAI TTS Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Callers own the failure policy; the SDK would otherwise retry 429/5xx.
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.httpClient != nil || cfg.timeout > 0 {
		hc := &http.Client{}
		if cfg.httpClient != nil {
			cp := *cfg.httpClient
			hc = &cp
		}
		if cfg.timeout > 0 {
			hc.Timeout = cfg.timeout
		}
		reqOpts = append(reqOpts, option.WithHTTPClient(hc))
	}

	return &Provider{client: oai.NewClient(reqOpts...)}, nil
}

// Synthesize implements tts.SimpleSynthesizer. It returns the raw response
// body, encoded in format (mp3 when empty).
func (p *Provider) Synthesize(ctx context.Context, model, voiceID, text, format string) ([]byte, error) {
	if model == "" || voiceID == "" {
		return nil, fmt.Errorf("openai: model and voice must not be empty")
	}
	params := oai.AudioSpeechNewParams{
		Input: text,
		Model: oai.SpeechModel(model),
		Voice: oai.AudioSpeechNewParamsVoice(voiceID),
	}
	if format != "" {
		params.ResponseFormat = oai.AudioSpeechNewParamsResponseFormat(format)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, toProviderError(err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &tts.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Cause: fmt.Errorf("read body: %w", err)}
	}
	if len(audio) == 0 {
		return nil, &tts.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Body: "empty audio response"}
	}
	return audio, nil
}

func toProviderError(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		body := apiErr.Message
		if body == "" {
			body = err.Error()
		}
		return &tts.ProviderError{
			Provider:   providerName,
			StatusCode: apiErr.StatusCode,
			Body:       body,
			Cause:      err,
		}
	}
	return &tts.ProviderError{Provider: providerName, Cause: err}
}
