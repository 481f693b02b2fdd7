package audio

import (
	"fmt"
	"log/slog"

	"github.com/ebitengine/oto/v3"

	"github.com/livescribe-ai/livescribe/pkg/core"
	"github.com/livescribe-ai/livescribe/pkg/core/live"
)

// Speaker drains a PlaybackBuffer to the default output device. The
// player pulls through bufferReader, so the buffer's played counter
// stays an honest proxy for audio the user has actually heard.
type Speaker struct {
	cfg    live.AudioConfig
	buffer *live.PlaybackBuffer
	logger *slog.Logger

	otoCtx *oto.Context
	player *oto.Player
}

// NewSpeaker wires a playback device over buf.
func NewSpeaker(cfg live.AudioConfig, buf *live.PlaybackBuffer, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{cfg: cfg, buffer: buf, logger: logger}
}

// Start opens the output device and begins playback.
func (s *Speaker) Start() error {
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   s.cfg.SampleRate,
		ChannelCount: s.cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return core.NewAudioError(fmt.Sprintf("init playback context: %v", err))
	}
	<-ready

	s.otoCtx = otoCtx
	s.player = otoCtx.NewPlayer(&bufferReader{buffer: s.buffer})
	s.player.Play()
	s.logger.Info("speaker started",
		"sample_rate", s.cfg.SampleRate,
		"channels", s.cfg.Channels,
	)
	return nil
}

// Stop closes the playback device.
func (s *Speaker) Stop() error {
	if s.player == nil {
		return nil
	}
	err := s.player.Close()
	s.player = nil
	return err
}

// bufferReader adapts the PlaybackBuffer to the pull model oto expects.
// When the buffer runs dry it pads with silence instead of blocking, so
// the device keeps running and new audio starts with minimal latency.
type bufferReader struct {
	buffer *live.PlaybackBuffer
}

func (r *bufferReader) Read(p []byte) (int, error) {
	chunk := r.buffer.Read(len(p))
	n := copy(p, chunk)
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}
