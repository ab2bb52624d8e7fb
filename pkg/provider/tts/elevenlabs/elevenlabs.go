// Package elevenlabs provides an ElevenLabs-backed TTS adapter using the REST
// text-to-speech endpoint with request stitching. It implements
// tts.ConditionedSynthesizer and tts.VoiceLister.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Jellypod-Inc/route-tts/pkg/provider/tts"
	"github.com/Jellypod-Inc/route-tts/pkg/voice"
)

const (
	providerName   = "elevenlabs"
	defaultBaseURL = "https://api.elevenlabs.io/v1"
	defaultTimeout = 60 * time.Second

	// requestIDHeader carries the continuation token on successful responses.
	requestIDHeader = "request-id"

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 4 << 10
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL (default https://api.elevenlabs.io/v1).
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = hc
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.timeout = d
	}
}

// Provider implements tts.ConditionedSynthesizer backed by the ElevenLabs API.
type Provider struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

var (
	_ tts.ConditionedSynthesizer = (*Provider)(nil)
	_ tts.VoiceLister            = (*Provider)(nil)
)

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: p.timeout}
	}
	return p, nil
}

// ---- request stitching ----

// synthesisRequest is the JSON body of POST /text-to-speech/{voice_id}.
// Absent optional fields are omitted rather than sent empty.
type synthesisRequest struct {
	Text               string          `json:"text"`
	ModelID            string          `json:"model_id"`
	VoiceSettings      *voice.Settings `json:"voice_settings,omitempty"`
	PreviousRequestIDs []string        `json:"previous_request_ids,omitempty"`
	PreviousText       *string         `json:"previous_text,omitempty"`
	NextText           *string         `json:"next_text,omitempty"`
}

// buildRequestBody returns the JSON payload for req. At most
// tts.MaxPreviousRequestIDs tokens are forwarded.
func buildRequestBody(req tts.ConditionedRequest) ([]byte, error) {
	return json.Marshal(synthesisRequest{
		Text:               req.Text,
		ModelID:            req.ModelID,
		VoiceSettings:      req.Settings,
		PreviousRequestIDs: tts.LastRequestIDs(req.PreviousRequestIDs),
		PreviousText:       req.PreviousText,
		NextText:           req.NextText,
	})
}

// synthesisURL builds the per-voice endpoint with an optional output_format.
func (p *Provider) synthesisURL(voiceID, outputFormat string) string {
	u := p.baseURL + "/text-to-speech/" + url.PathEscape(voiceID)
	if outputFormat != "" {
		u += "?" + url.Values{"output_format": {outputFormat}}.Encode()
	}
	return u
}

// SynthesizeConditioned implements tts.ConditionedSynthesizer.
//
// Any status other than 200 yields a *tts.ProviderError carrying the response
// body. A 200 without a request-id header yields an error wrapping
// tts.ErrMissingContinuationToken.
func (p *Provider) SynthesizeConditioned(ctx context.Context, req tts.ConditionedRequest) (tts.ConditionedResult, error) {
	if req.VoiceID == "" {
		return tts.ConditionedResult{}, errors.New("elevenlabs: voice id must not be empty")
	}
	body, err := buildRequestBody(req)
	if err != nil {
		return tts.ConditionedResult{}, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.synthesisURL(req.VoiceID, req.OutputFormat), bytes.NewReader(body))
	if err != nil {
		return tts.ConditionedResult{}, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return tts.ConditionedResult{}, &tts.ProviderError{Provider: providerName, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tts.ConditionedResult{}, errorFromResponse(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.ConditionedResult{}, &tts.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Cause: fmt.Errorf("read body: %w", err)}
	}

	requestID := resp.Header.Get(requestIDHeader)
	if requestID == "" {
		return tts.ConditionedResult{}, fmt.Errorf("elevenlabs: %w", tts.ErrMissingContinuationToken)
	}
	return tts.ConditionedResult{Audio: audio, RequestID: requestID}, nil
}

func errorFromResponse(resp *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &tts.ProviderError{
		Provider:   providerName,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(detail)),
	}
}

// ---- ListVoices ----

// voicesResponse is the top-level response from GET /voices.
type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

// elevenLabsVoice is a single voice entry from the ElevenLabs API.
type elevenLabsVoice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Labels   map[string]string `json:"labels"`
}

// ListVoices returns all voices available from ElevenLabs for the configured API key.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.RemoteVoice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &tts.ProviderError{Provider: providerName, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices read: %w", err)
	}
	voices, err := parseVoicesResponse(data)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices decode: %w", err)
	}
	return voices, nil
}

// parseVoicesResponse parses a raw /voices JSON body.
func parseVoicesResponse(data []byte) ([]tts.RemoteVoice, error) {
	var vr voicesResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return nil, err
	}
	out := make([]tts.RemoteVoice, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		out = append(out, tts.RemoteVoice{
			ID:       v.VoiceID,
			Name:     v.Name,
			Category: v.Category,
			Labels:   v.Labels,
		})
	}
	return out, nil
}
