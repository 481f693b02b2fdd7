package live

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/livescribe-ai/livescribe/pkg/core"
)

type fakePort struct {
	mu          sync.Mutex
	audioFrames [][]byte
	textTurns   []string
	streamEnded bool
	events      chan *ServerEvent
}

func newFakePort() *fakePort {
	return &fakePort{events: make(chan *ServerEvent, 16)}
}

func (p *fakePort) SendAudioFrame(pcm []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	frame := make([]byte, len(pcm))
	copy(frame, pcm)
	p.audioFrames = append(p.audioFrames, frame)
	return nil
}

func (p *fakePort) SendTextTurn(_ Role, text string, _ bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.textTurns = append(p.textTurns, text)
	return nil
}

func (p *fakePort) EndAudioStream() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streamEnded = true
	return nil
}

func (p *fakePort) ReceiveTurn(ctx context.Context) (EventStream, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return &fakeStream{p: p}, nil
	}
}

func (p *fakePort) sentTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.textTurns...)
}

func (p *fakePort) sentFrames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.audioFrames)
}

type fakeStream struct {
	p    *fakePort
	done bool
}

func (s *fakeStream) Next(ctx context.Context) (*ServerEvent, error) {
	if s.done {
		return nil, io.EOF
	}
	select {
	case ev, ok := <-s.p.events:
		if !ok {
			return nil, core.NewSessionError("stream closed")
		}
		if ev.TurnComplete {
			s.done = true
		}
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fakeCapture struct {
	mu      sync.Mutex
	onFrame func([]byte)
	stopped bool
}

func (c *fakeCapture) Start(onFrame func(pcm []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFrame = onFrame
	return nil
}

func (c *fakeCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	return nil
}

func (c *fakeCapture) emit(frame []byte) {
	c.mu.Lock()
	fn := c.onFrame
	c.mu.Unlock()
	if fn != nil {
		fn(frame)
	}
}

func testSessionConfig() SessionConfig {
	cfg := DefaultSessionConfig()
	cfg.Sync.TickInterval = time.Millisecond
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestOrchestratorQuitCommandShutsDownCleanly(t *testing.T) {
	cfg := testSessionConfig()
	port := newFakePort()
	engine := NewEngine(cfg, NewPlaybackBuffer(), nil, nil, nil)
	commands := strings.NewReader("/text hello\n/quit\n")

	orch := NewOrchestrator(cfg, port, engine, nil, commands, nil, nil)
	if err := orch.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil on quit", err)
	}

	texts := port.sentTexts()
	if len(texts) != 1 || texts[0] != "hello" {
		t.Errorf("sent texts = %v, want [hello]", texts)
	}
	if !port.streamEnded {
		t.Error("audio stream was not ended on shutdown")
	}
	history := engine.History()
	if len(history) != 1 || history[0].Text != "hello" {
		t.Errorf("history = %+v, want the typed turn", history)
	}
}

func TestOrchestratorForwardsCaptureFrames(t *testing.T) {
	cfg := testSessionConfig()
	port := newFakePort()
	engine := NewEngine(cfg, NewPlaybackBuffer(), nil, nil, nil)
	capture := &fakeCapture{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	orch := NewOrchestrator(cfg, port, engine, capture, nil, nil, nil)
	go func() { done <- orch.Run(ctx) }()

	waitFor(t, "capture start", func() bool {
		capture.mu.Lock()
		defer capture.mu.Unlock()
		return capture.onFrame != nil
	})
	capture.emit([]byte{1, 2, 3})
	capture.emit([]byte{4, 5, 6})
	waitFor(t, "frames forwarded", func() bool { return port.sentFrames() == 2 })

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() = %v, want nil on cancellation", err)
	}
	capture.mu.Lock()
	defer capture.mu.Unlock()
	if !capture.stopped {
		t.Error("capture device was not stopped")
	}
}

func TestOrchestratorInjectsResumeAfterInterruption(t *testing.T) {
	cfg := testSessionConfig()
	playback := NewPlaybackBuffer()
	port := newFakePort()
	engine := NewEngine(cfg, playback, nil, nil, nil)

	port.events <- &ServerEvent{
		OutputTranscription: &Transcription{Text: "Hello there"},
		AudioChunks:         [][]byte{make([]byte, 100)},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	orch := NewOrchestrator(cfg, port, engine, nil, nil, nil, nil)
	go func() { done <- orch.Run(ctx) }()

	waitFor(t, "audio buffered", func() bool { return playback.ReceivedTotal() == 100 })
	playback.Read(100)
	port.events <- &ServerEvent{Interrupted: true}

	waitFor(t, "resume injected", func() bool { return len(port.sentTexts()) == 1 })
	msg := port.sentTexts()[0]
	if !strings.Contains(msg, "[System Note — Interruption Context]") {
		t.Errorf("resume message malformed:\n%s", msg)
	}
	if !strings.Contains(msg, "Hello there") {
		t.Errorf("resume message missing transcript:\n%s", msg)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() = %v", err)
	}
}

func TestOrchestratorInterruptCommandIsAHint(t *testing.T) {
	// Interruption is VAD-driven; the command must not fabricate a
	// server-side interruption or send anything on the session.
	cfg := testSessionConfig()
	port := newFakePort()
	engine := NewEngine(cfg, NewPlaybackBuffer(), nil, nil, nil)
	orch := NewOrchestrator(cfg, port, engine, nil, nil, nil, nil)

	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	orch.handleCommand(cancel, "/interrupt")

	if engine.Interruptions() != 0 {
		t.Errorf("Interruptions() = %d, want 0", engine.Interruptions())
	}
	if texts := port.sentTexts(); len(texts) != 0 {
		t.Errorf("sent texts = %v, want none", texts)
	}
}

func TestOrchestratorSessionErrorPropagates(t *testing.T) {
	cfg := testSessionConfig()
	port := newFakePort()
	close(port.events)
	engine := NewEngine(cfg, NewPlaybackBuffer(), nil, nil, nil)

	orch := NewOrchestrator(cfg, port, engine, nil, nil, nil, nil)
	err := orch.Run(context.Background())
	if err == nil {
		t.Fatal("Run() = nil, want session error")
	}
	var ce *core.Error
	if !errors.As(err, &ce) || ce.Type != core.ErrSession {
		t.Errorf("Run() = %v, want a session error", err)
	}
}
