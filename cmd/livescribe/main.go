// Command livescribe runs an interactive voice session against the
// Gemini Live API with playback-synchronized captions and interruption
// recovery.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/livescribe-ai/livescribe/pkg/audio"
	"github.com/livescribe-ai/livescribe/pkg/config"
	"github.com/livescribe-ai/livescribe/pkg/core/live"
	"github.com/livescribe-ai/livescribe/pkg/gemini"
)

func main() {
	os.Exit(runMain())
}

func runMain() int {
	configPath := flag.String("config", "", "path to YAML config file")
	envFile := flag.String("env-file", ".env", "dotenv file to load before reading the environment")
	noMic := flag.Bool("no-mic", false, "disable microphone capture; interact with /text only")
	noSpeaker := flag.Bool("no-speaker", false, "disable audio playback")
	flag.Parse()

	// Missing dotenv file is fine; the environment may carry everything.
	_ = godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := live.NewMetrics()
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	sess := cfg.SessionConfig()
	playback := live.NewPlaybackBuffer()
	sink := newConsoleSink(os.Stdout)
	engine := live.NewEngine(sess, playback, sink, logger, metrics)

	client, err := gemini.Connect(ctx, gemini.Config{
		APIKey:  cfg.APIKey,
		Session: sess,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("connect failed", "error", err)
		return 1
	}
	defer client.Close()

	var capture live.CaptureDevice
	if !*noMic {
		capture = audio.NewMic(sess.InputAudio, sess.MicFrameMs, logger)
	}
	if !*noSpeaker {
		speaker := audio.NewSpeaker(sess.OutputAudio, playback, logger)
		if err := speaker.Start(); err != nil {
			logger.Error("speaker start failed", "error", err)
			return 1
		}
		defer speaker.Stop()
	}

	fmt.Println("livescribe session started")
	fmt.Println("commands: /text <message>, /interrupt, /quit")

	orch := live.NewOrchestrator(sess, client, engine, capture, os.Stdin, logger, metrics)
	runErr := orch.Run(ctx)

	sink.Flush()
	printSummary(engine, playback)

	if runErr != nil {
		logger.Error("session ended with error", "error", runErr)
		return 1
	}
	return 0
}

func printSummary(engine *live.Engine, playback *live.PlaybackBuffer) {
	received, played, _ := playback.Stats()
	fmt.Println()
	fmt.Println("--- session summary ---")
	fmt.Printf("interruptions handled: %d\n", engine.Interruptions())
	fmt.Printf("audio received: %d bytes, played: %d bytes\n", received, played)
	history := engine.History()
	if len(history) == 0 {
		return
	}
	fmt.Println("recent conversation:")
	for _, turn := range history {
		speaker := "user"
		if turn.Role == live.RoleModel {
			speaker = "model"
		}
		fmt.Printf("  [%s] %s\n", speaker, turn.Text)
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
