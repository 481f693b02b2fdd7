package live

import "time"

// AudioConfig specifies PCM audio format parameters.
type AudioConfig struct {
	// SampleRate in Hz. Common values: 16000, 24000, 44100, 48000.
	SampleRate int `json:"sample_rate" yaml:"sample_rate"`

	// Channels: 1 for mono, 2 for stereo.
	Channels int `json:"channels" yaml:"channels"`

	// BitsPerSample: typically 16 for PCM.
	BitsPerSample int `json:"bits_per_sample" yaml:"bits_per_sample"`
}

// DefaultInputAudioConfig returns the microphone capture format.
func DefaultInputAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
	}
}

// DefaultOutputAudioConfig returns the model audio playback format.
func DefaultOutputAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRate:    24000,
		Channels:      1,
		BitsPerSample: 16,
	}
}

// BytesPerSecond returns the audio byte rate.
func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}

// DurationMs returns the duration in milliseconds for the given byte count.
func (c AudioConfig) DurationMs(bytes int64) int64 {
	bps := int64(c.BytesPerSecond())
	if bps == 0 {
		return 0
	}
	return (bytes * 1000) / bps
}

// BytesForDurationMs returns the byte count for the given duration in milliseconds.
func (c AudioConfig) BytesForDurationMs(ms int) int64 {
	return int64(c.BytesPerSecond()) * int64(ms) / 1000
}

// SyncConfig tunes the transcript-playback synchronizer. The values are
// empirically tuned defaults, not invariants.
type SyncConfig struct {
	// LeadToleranceMs is how far transcript display may lead audio playback.
	// Default: 100.
	LeadToleranceMs int `json:"lead_tolerance_ms" yaml:"lead_tolerance_ms"`

	// DrainThresholdMs is the playback backlog below which remaining
	// transcript is force-flushed once the turn is complete. Default: 20.
	DrainThresholdMs int `json:"drain_threshold_ms" yaml:"drain_threshold_ms"`

	// TickInterval is the synchronizer poll interval. Default: 30ms.
	TickInterval time.Duration `json:"tick_interval" yaml:"tick_interval"`
}

// DefaultSyncConfig returns a SyncConfig with sensible defaults.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		LeadToleranceMs:  100,
		DrainThresholdMs: 20,
		TickInterval:     30 * time.Millisecond,
	}
}

// SessionConfig holds all configuration for a live transcript session.
type SessionConfig struct {
	// Model is the live speech model id.
	Model string `json:"model" yaml:"model"`

	// VoiceName selects the prebuilt voice for model speech.
	VoiceName string `json:"voice_name" yaml:"voice_name"`

	// SystemInstruction is an optional system prompt for the session.
	SystemInstruction string `json:"system_instruction,omitempty" yaml:"system_instruction"`

	// InputAudio is the microphone capture format sent on the uplink.
	InputAudio AudioConfig `json:"input_audio" yaml:"input_audio"`

	// OutputAudio is the model speech format received on the downlink.
	OutputAudio AudioConfig `json:"output_audio" yaml:"output_audio"`

	// Sync tunes transcript-playback synchronization.
	Sync SyncConfig `json:"sync" yaml:"sync"`

	// HistoryTurns bounds the rolling conversation history. Default: 4.
	HistoryTurns int `json:"history_turns" yaml:"history_turns"`

	// CaptureQueueFrames bounds the outbound microphone queue. On overflow
	// the oldest frame is dropped. Default: 128.
	CaptureQueueFrames int `json:"capture_queue_frames" yaml:"capture_queue_frames"`

	// MicFrameMs is the microphone frame duration. Default: 100.
	MicFrameMs int `json:"mic_frame_ms" yaml:"mic_frame_ms"`

	// ProactiveAudio lets the model decide when to speak unprompted.
	ProactiveAudio bool `json:"proactive_audio" yaml:"proactive_audio"`

	// AffectiveDialog enables emotion-aware speech.
	AffectiveDialog bool `json:"affective_dialog" yaml:"affective_dialog"`
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Model:              "gemini-live-2.5-flash-native-audio",
		VoiceName:          "Aoede",
		InputAudio:         DefaultInputAudioConfig(),
		OutputAudio:        DefaultOutputAudioConfig(),
		Sync:               DefaultSyncConfig(),
		HistoryTurns:       4,
		CaptureQueueFrames: 128,
		MicFrameMs:         100,
		ProactiveAudio:     true,
		AffectiveDialog:    true,
	}
}
