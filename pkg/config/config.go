// Package config loads runtime settings from defaults, an optional YAML
// file, and LIVESCRIBE_-prefixed environment variables, in that order of
// precedence (later wins).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/livescribe-ai/livescribe/pkg/core"
	"github.com/livescribe-ai/livescribe/pkg/core/live"
)

// Config is the full runtime configuration for one session process.
type Config struct {
	// APIKey comes from GEMINI_API_KEY or GOOGLE_API_KEY only, never
	// from the config file.
	APIKey string `yaml:"-"`

	Model             string `yaml:"model"`
	Voice             string `yaml:"voice"`
	SystemInstruction string `yaml:"system_instruction"`

	InputSampleRate  int `yaml:"input_sample_rate"`
	OutputSampleRate int `yaml:"output_sample_rate"`

	LeadToleranceMs  int `yaml:"lead_tolerance_ms"`
	DrainThresholdMs int `yaml:"drain_threshold_ms"`
	TickIntervalMs   int `yaml:"tick_interval_ms"`

	HistoryTurns       int `yaml:"history_turns"`
	CaptureQueueFrames int `yaml:"capture_queue_frames"`
	MicFrameMs         int `yaml:"mic_frame_ms"`

	ProactiveAudio  bool `yaml:"proactive_audio"`
	AffectiveDialog bool `yaml:"affective_dialog"`

	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	s := live.DefaultSessionConfig()
	return Config{
		Model:              s.Model,
		Voice:              s.VoiceName,
		SystemInstruction:  s.SystemInstruction,
		InputSampleRate:    s.InputAudio.SampleRate,
		OutputSampleRate:   s.OutputAudio.SampleRate,
		LeadToleranceMs:    s.Sync.LeadToleranceMs,
		DrainThresholdMs:   s.Sync.DrainThresholdMs,
		TickIntervalMs:     int(s.Sync.TickInterval / time.Millisecond),
		HistoryTurns:       s.HistoryTurns,
		CaptureQueueFrames: s.CaptureQueueFrames,
		MicFrameMs:         s.MicFrameMs,
		ProactiveAudio:     s.ProactiveAudio,
		AffectiveDialog:    s.AffectiveDialog,
		LogLevel:           "info",
	}
}

// Load assembles the effective configuration. path may be empty.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.NewConfigError(fmt.Sprintf("read config file: %v", err))
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return core.NewConfigError(fmt.Sprintf("parse config file %s: %v", path, err))
	}
	return nil
}

func (c *Config) applyEnv() {
	c.APIKey = envOr("GEMINI_API_KEY", envOr("GOOGLE_API_KEY", c.APIKey))
	c.Model = envOr("LIVESCRIBE_MODEL", c.Model)
	c.Voice = envOr("LIVESCRIBE_VOICE", c.Voice)
	c.SystemInstruction = envOr("LIVESCRIBE_SYSTEM_INSTRUCTION", c.SystemInstruction)
	c.InputSampleRate = envIntOr("LIVESCRIBE_INPUT_SAMPLE_RATE", c.InputSampleRate)
	c.OutputSampleRate = envIntOr("LIVESCRIBE_OUTPUT_SAMPLE_RATE", c.OutputSampleRate)
	c.LeadToleranceMs = envIntOr("LIVESCRIBE_LEAD_TOLERANCE_MS", c.LeadToleranceMs)
	c.DrainThresholdMs = envIntOr("LIVESCRIBE_DRAIN_THRESHOLD_MS", c.DrainThresholdMs)
	c.TickIntervalMs = envIntOr("LIVESCRIBE_TICK_INTERVAL_MS", c.TickIntervalMs)
	c.HistoryTurns = envIntOr("LIVESCRIBE_HISTORY_TURNS", c.HistoryTurns)
	c.CaptureQueueFrames = envIntOr("LIVESCRIBE_CAPTURE_QUEUE_FRAMES", c.CaptureQueueFrames)
	c.MicFrameMs = envIntOr("LIVESCRIBE_MIC_FRAME_MS", c.MicFrameMs)
	c.ProactiveAudio = envBoolOr("LIVESCRIBE_PROACTIVE_AUDIO", c.ProactiveAudio)
	c.AffectiveDialog = envBoolOr("LIVESCRIBE_AFFECTIVE_DIALOG", c.AffectiveDialog)
	c.LogLevel = envOr("LIVESCRIBE_LOG_LEVEL", c.LogLevel)
	c.MetricsAddr = envOr("LIVESCRIBE_METRICS_ADDR", c.MetricsAddr)
}

// Validate rejects configurations the session cannot run with.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return core.NewConfigError("GEMINI_API_KEY or GOOGLE_API_KEY must be set")
	}
	if c.Model == "" {
		return core.NewConfigError("model must not be empty")
	}
	if c.InputSampleRate <= 0 || c.OutputSampleRate <= 0 {
		return core.NewConfigError("sample rates must be positive")
	}
	if c.LeadToleranceMs < 0 || c.DrainThresholdMs < 0 {
		return core.NewConfigError("sync thresholds must not be negative")
	}
	if c.TickIntervalMs <= 0 {
		return core.NewConfigError("tick interval must be positive")
	}
	return nil
}

// SessionConfig converts the flat file/env view into the engine's
// session configuration.
func (c *Config) SessionConfig() live.SessionConfig {
	s := live.DefaultSessionConfig()
	s.Model = c.Model
	s.VoiceName = c.Voice
	s.SystemInstruction = c.SystemInstruction
	s.InputAudio.SampleRate = c.InputSampleRate
	s.OutputAudio.SampleRate = c.OutputSampleRate
	s.Sync.LeadToleranceMs = c.LeadToleranceMs
	s.Sync.DrainThresholdMs = c.DrainThresholdMs
	s.Sync.TickInterval = time.Duration(c.TickIntervalMs) * time.Millisecond
	s.HistoryTurns = c.HistoryTurns
	s.CaptureQueueFrames = c.CaptureQueueFrames
	s.MicFrameMs = c.MicFrameMs
	s.ProactiveAudio = c.ProactiveAudio
	s.AffectiveDialog = c.AffectiveDialog
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolOr(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
