package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/halvora/srtrans/internal/config"
	"github.com/halvora/srtrans/internal/llm"
	"github.com/halvora/srtrans/internal/media"
	"github.com/halvora/srtrans/internal/run"
	"github.com/halvora/srtrans/internal/subtitle"
	"github.com/halvora/srtrans/internal/translate"
	"github.com/halvora/srtrans/pkg/log"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var cfg config.Config

	rootCmd := &cobra.Command{
		Use:           "srtrans",
		Short:         "Translate SRT subtitle files with an OpenAI-compatible completion endpoint",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.ApplyEnv()
			if err := cfg.Validate(); err != nil {
				return run.WrapError(err, run.ErrConfig, "invalid arguments")
			}
			return execute(cfg)
		},
	}

	rootCmd.Flags().StringVarP(&cfg.SubtitlePath, "input", "i", "", "Path to the input SRT file")
	rootCmd.Flags().StringVar(&cfg.VideoPath, "video", "", "Path to a video container to extract subtitles from")
	rootCmd.Flags().StringVarP(&cfg.OutputPath, "output", "o", "", "Path for the translated SRT file (must not exist)")
	rootCmd.Flags().StringVarP(&cfg.TargetLanguage, "lang", "l", "English", "Target language")
	rootCmd.Flags().IntVarP(&cfg.WindowSize, "window-size", "w", config.DefaultWindowSize, "Subtitle entries per translation batch")
	rootCmd.Flags().StringVar(&cfg.Context, "context", "", "Context information for translation (e.g. video type, dialect)")
	rootCmd.Flags().StringVarP(&cfg.Model, "model", "m", config.DefaultModel, "Model name")
	rootCmd.Flags().StringVar(&cfg.BaseURL, "base-url", config.DefaultBaseURL, "Base URL of the completion endpoint")
	rootCmd.Flags().StringVar(&cfg.APIKey, "api-key", "", "API key (falls back to LLM_API_KEY)")
	rootCmd.Flags().IntVar(&cfg.Timeout, "timeout", config.DefaultTimeout, "Completion request timeout in seconds")
	rootCmd.Flags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable debug logging")

	return rootCmd
}

func execute(cfg config.Config) error {
	level := log.LevelInfo
	if cfg.Verbose {
		level = log.LevelDebug
	}
	logger := log.NewLogger(level)

	client, err := llm.NewClient(&llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return run.WrapError(err, run.ErrConfig, "invalid completion client configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver := run.NewDriver(
		cfg,
		logger,
		translate.NewOrchestrator(client, logger),
		subtitle.NewReader(),
		subtitle.NewWriter(),
		media.NewProber(),
		media.NewConsoleChooser(os.Stdin, os.Stderr),
	)

	return driver.Run(ctx)
}
