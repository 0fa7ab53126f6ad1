// Command qw-asr runs the real-time speech recognition gateway.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ronith256-meesho/qw-asr/audio"
	"github.com/ronith256-meesho/qw-asr/internal/config"
	"github.com/ronith256-meesho/qw-asr/internal/observe"
	"github.com/ronith256-meesho/qw-asr/internal/server"
	openaidec "github.com/ronith256-meesho/qw-asr/plugins/openai"
	"github.com/ronith256-meesho/qw-asr/plugins/qwen"
	"github.com/ronith256-meesho/qw-asr/plugins/silero"
	"github.com/ronith256-meesho/qw-asr/services/stt"
	"github.com/ronith256-meesho/qw-asr/services/vad"
	"github.com/ronith256-meesho/qw-asr/session"
)

var (
	configPath string
	envFile    string
	listenAddr string
)

var rootCmd = &cobra.Command{
	Use:   "qw-asr",
	Short: "Real-time speech recognition gateway",
	Long: `qw-asr is a websocket gateway for real-time speech recognition.

Clients stream raw float32 PCM at 16 kHz and receive incremental partial
transcripts during speech and a finalized transcript when the speaker
pauses. Voice activity detection, endpointing and streaming decodes run
server-side against a configurable transcription backend.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	cobra.OnInitialize(func() {
		if envFile != "" {
			godotenv.Load(envFile)
		}
	})

	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "environment file to load")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	provider, registry, err := observe.InitProvider()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer provider.Shutdown(context.Background())

	metrics, err := observe.NewMetrics(provider)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	decoder, err := newDecoder(cfg, logger)
	if err != nil {
		return err
	}

	if cfg.VAD.ModelPath == "" {
		return fmt.Errorf("vad model path required (config vad.model_path or QW_ASR_VAD_MODEL)")
	}
	engine, err := silero.NewEngine(cfg.VAD.ModelPath)
	if err != nil {
		return fmt.Errorf("load vad model: %w", err)
	}
	defer engine.Close()

	var newFilter func() audio.NoiseFilter
	if cfg.VAD.NoiseGate {
		newFilter = func() audio.NoiseFilter { return audio.NewNoiseGate() }
	}

	manager := session.NewManager(session.ManagerOptions{
		Decoder:       decoder,
		NewVADModel:   func() (vad.Model, error) { return engine.NewDetector(), nil },
		NewFilter:     newFilter,
		MaxSessions:   cfg.Sessions.Max,
		IdleTTL:       cfg.Sessions.IdleTTL,
		FrameSize:     cfg.VAD.FrameSize,
		DecodeTimeout: cfg.Decoder.Timeout,
		Logger:        logger,
		Metrics:       metrics,
	})

	srv := server.New(server.Options{
		Addr:     cfg.Server.ListenAddr,
		Manager:  manager,
		Defaults: cfg.SessionDefaults(),
		Logger:   logger,
		Registry: registry,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting gateway",
		slog.String("addr", cfg.Server.ListenAddr),
		slog.String("decoder", cfg.Decoder.Backend),
		slog.Int("max_sessions", cfg.Sessions.Max))

	err = srv.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	manager.Shutdown(shutdownCtx)
	return err
}

// newDecoder selects the transcription backend.
func newDecoder(cfg config.Config, logger *slog.Logger) (stt.Decoder, error) {
	switch cfg.Decoder.Backend {
	case "qwen":
		if cfg.Decoder.URL == "" {
			return nil, fmt.Errorf("decoder url required for qwen backend")
		}
		opts := []qwen.Option{qwen.WithLogger(logger)}
		if cfg.Decoder.APIKey != "" {
			opts = append(opts, qwen.WithAPIKey(cfg.Decoder.APIKey))
		}
		if cfg.Decoder.TokenizerPath != "" {
			tok, err := qwen.LoadTokenizer(cfg.Decoder.TokenizerPath)
			if err != nil {
				return nil, err
			}
			opts = append(opts, qwen.WithTokenizer(tok))
		}
		return qwen.New(cfg.Decoder.URL, opts...), nil
	case "openai":
		if cfg.Decoder.APIKey == "" {
			return nil, fmt.Errorf("api key required for openai backend")
		}
		return openaidec.New(cfg.Decoder.APIKey, openaidec.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown decoder backend %q", cfg.Decoder.Backend)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
