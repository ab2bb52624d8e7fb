// Command routetts generates multi-voice speech across TTS vendors, either
// from a script file on the command line or over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Jellypod-Inc/route-tts/internal/app"
	"github.com/Jellypod-Inc/route-tts/internal/config"
	"github.com/Jellypod-Inc/route-tts/pkg/provider/tts"
	"github.com/Jellypod-Inc/route-tts/pkg/provider/tts/elevenlabs"
	"github.com/Jellypod-Inc/route-tts/pkg/provider/tts/openai"
	"github.com/Jellypod-Inc/route-tts/pkg/voice"
)

var (
	configPath string

	// logLevel is shared by the default logger and config hot-reload.
	logLevel = new(slog.LevelVar)
)

var rootCmd = &cobra.Command{
	Use:   "routetts",
	Short: "Route multi-voice text-to-speech across vendors",
	Long: `routetts turns an ordered list of speech blocks into one audio track.

Each block names a voice from the registry; consecutive blocks on a
context-conditioning platform are stitched together so prosody carries
across them. Segments are loudness-normalised and joined with configurable
silence.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

// loadConfig reads the config file and installs the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found: copy configs/example.yaml to get started", configPath)
		}
		return nil, err
	}
	logLevel.Set(app.SlogLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger())
	return cfg, nil
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the platform adapters into reg. Each factory
// receives the resolved config.ProviderEntry for its platform.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterSimple(voice.PlatformOpenAI, func(entry config.ProviderEntry) (tts.SimpleSynthesizer, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := config.OptString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if entry.Timeout > 0 {
			opts = append(opts, openai.WithTimeout(entry.Timeout))
		}
		return openai.New(entry.APIKey, opts...)
	})

	reg.RegisterConditioned(voice.PlatformElevenLabs, func(entry config.ProviderEntry) (tts.ConditionedSynthesizer, error) {
		var opts []elevenlabs.Option
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		if entry.Timeout > 0 {
			opts = append(opts, elevenlabs.WithTimeout(entry.Timeout))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})
}

// buildProviders instantiates an adapter for every platform that has
// credentials. Platforms without an API key are left nil; blocks routed to
// them fail at generation time.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if entry := cfg.ResolvedEntry(voice.PlatformOpenAI); entry.APIKey != "" {
		p, err := reg.CreateSimple(voice.PlatformOpenAI, entry)
		if err != nil {
			return nil, fmt.Errorf("create %s adapter: %w", voice.PlatformOpenAI, err)
		}
		ps.OpenAI = p
		slog.Info("provider created", "platform", voice.PlatformOpenAI)
	} else {
		slog.Debug("no credentials, skipping provider", "platform", voice.PlatformOpenAI)
	}

	if entry := cfg.ResolvedEntry(voice.PlatformElevenLabs); entry.APIKey != "" {
		p, err := reg.CreateConditioned(voice.PlatformElevenLabs, entry)
		if err != nil {
			return nil, fmt.Errorf("create %s adapter: %w", voice.PlatformElevenLabs, err)
		}
		ps.ElevenLabs = p
		slog.Info("provider created", "platform", voice.PlatformElevenLabs)
	} else {
		slog.Debug("no credentials, skipping provider", "platform", voice.PlatformElevenLabs)
	}

	return ps, nil
}

// newApp loads the config and builds an App over the real adapters.
func newApp(opts ...app.Option) (*config.Config, *app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(cfg, providers, opts...)
	if err != nil {
		return nil, nil, err
	}
	return cfg, a, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, a *app.App) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	bold.Println("route-tts startup summary")
	for _, p := range voice.Platforms {
		fmt.Printf("  %-12s : ", p)
		if a.Configured(p) {
			green.Println("configured")
		} else {
			yellow.Println("not configured")
		}
	}
	fmt.Printf("  %-12s : %d\n", "voices", len(cfg.Voices))
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("  %-12s : %s\n", "listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println(strings.Repeat("-", 40))
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
