package tts

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLastRequestIDs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, nil},
		{"one", []string{"r1"}, []string{"r1"}},
		{"three", []string{"r1", "r2", "r3"}, []string{"r1", "r2", "r3"}},
		{"five keeps last three", []string{"r1", "r2", "r3", "r4", "r5"}, []string{"r3", "r4", "r5"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, LastRequestIDs(tc.in)); diff != "" {
				t.Errorf("LastRequestIDs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLastRequestIDs_DoesNotAlias(t *testing.T) {
	in := []string{"a", "b", "c", "d"}
	out := LastRequestIDs(in)
	out[0] = "x"
	if in[1] != "b" {
		t.Error("LastRequestIDs result aliases input")
	}
}

func TestProviderError(t *testing.T) {
	cause := context.DeadlineExceeded
	tests := []struct {
		name string
		err  *ProviderError
		want string
	}{
		{"status and body", &ProviderError{Provider: "elevenlabs", StatusCode: 401, Body: `{"detail":"bad key"}`},
			`elevenlabs: status 401: {"detail":"bad key"}`},
		{"status only", &ProviderError{Provider: "openai", StatusCode: 500}, "openai: status 500"},
		{"transport", &ProviderError{Provider: "openai", Cause: cause}, "openai: context deadline exceeded"},
		{"bare", &ProviderError{Provider: "openai"}, "openai: request failed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Errorf("Error() = %q, want %q", got, tc.want)
			}
		})
	}

	var err error = &ProviderError{Provider: "openai", Cause: cause}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("ProviderError does not unwrap to its cause")
	}
}
