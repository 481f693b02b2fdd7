// Package audio binds the engine's capture and playback interfaces to
// the host sound devices.
package audio

import (
	"fmt"
	"log/slog"

	"github.com/gen2brain/malgo"

	"github.com/livescribe-ai/livescribe/pkg/core"
	"github.com/livescribe-ai/livescribe/pkg/core/live"
)

// Mic captures PCM from the default input device. Frames arrive on the
// miniaudio callback thread sized by frameMs.
type Mic struct {
	cfg     live.AudioConfig
	frameMs int
	logger  *slog.Logger

	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
}

// NewMic prepares a capture device for cfg-format PCM. frameMs controls
// the callback period.
func NewMic(cfg live.AudioConfig, frameMs int, logger *slog.Logger) *Mic {
	if frameMs <= 0 {
		frameMs = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mic{cfg: cfg, frameMs: frameMs, logger: logger}
}

// Start opens the default capture device and begins delivering frames.
func (m *Mic) Start(onFrame func(pcm []byte)) error {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		m.logger.Debug("miniaudio", "message", message)
	})
	if err != nil {
		return core.NewAudioError(fmt.Sprintf("init audio context: %v", err))
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(m.cfg.Channels)
	deviceConfig.SampleRate = uint32(m.cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = uint32(m.frameMs)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			onFrame(input)
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		malgoCtx.Uninit()
		malgoCtx.Free()
		return core.NewAudioError(fmt.Sprintf("init capture device: %v", err))
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		malgoCtx.Uninit()
		malgoCtx.Free()
		return core.NewAudioError(fmt.Sprintf("start capture device: %v", err))
	}

	m.malgoCtx = malgoCtx
	m.device = device
	m.logger.Info("microphone started",
		"sample_rate", m.cfg.SampleRate,
		"channels", m.cfg.Channels,
		"frame_ms", m.frameMs,
	)
	return nil
}

// Stop tears the capture device down. Safe to call when Start failed.
func (m *Mic) Stop() error {
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	if m.malgoCtx != nil {
		m.malgoCtx.Uninit()
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}
