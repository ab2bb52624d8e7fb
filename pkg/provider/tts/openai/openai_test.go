package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Jellypod-Inc/route-tts/pkg/provider/tts"
)

type speechRequest struct {
	Input          string `json:"input"`
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := New("sk-test", WithBaseURL(srv.URL+"/v1/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty api key")
	}
}

func TestSynthesize(t *testing.T) {
	var got speechRequest
	var auth, path string
	p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFFaudio"))
	})

	audio, err := p.Synthesize(context.Background(), "tts-1", "alloy", "Hello world", "wav")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "RIFFaudio" {
		t.Errorf("audio = %q, want RIFFaudio", audio)
	}
	if path != "/v1/audio/speech" {
		t.Errorf("path = %q, want /v1/audio/speech", path)
	}
	if auth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", auth)
	}
	want := speechRequest{Input: "Hello world", Model: "tts-1", Voice: "alloy", ResponseFormat: "wav"}
	if got != want {
		t.Errorf("request = %+v, want %+v", got, want)
	}
}

func TestSynthesize_OmitsEmptyFormat(t *testing.T) {
	var raw map[string]any
	p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte("ID3"))
	})
	if _, err := p.Synthesize(context.Background(), "tts-1", "nova", "hi", ""); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if _, ok := raw["response_format"]; ok {
		t.Errorf("response_format sent for empty format: %v", raw)
	}
}

func TestSynthesize_ErrorStatus(t *testing.T) {
	calls := 0
	p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	})

	_, err := p.Synthesize(context.Background(), "tts-1", "alloy", "hi", "mp3")
	var pe *tts.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *tts.ProviderError", err)
	}
	if pe.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", pe.StatusCode)
	}
	if calls != 1 {
		t.Errorf("server called %d times, want 1 (no retries)", calls)
	}
}

func TestSynthesize_EmptyBody(t *testing.T) {
	p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	_, err := p.Synthesize(context.Background(), "tts-1", "alloy", "hi", "mp3")
	var pe *tts.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *tts.ProviderError", err)
	}
}

func TestSynthesize_RequiresModelAndVoice(t *testing.T) {
	p, _ := New("sk-test")
	if _, err := p.Synthesize(context.Background(), "", "alloy", "hi", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := p.Synthesize(context.Background(), "tts-1", "", "hi", ""); err == nil {
		t.Error("expected error for empty voice")
	}
}
