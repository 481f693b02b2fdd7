package live

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/livescribe-ai/livescribe/pkg/core"
)

// CaptureDevice abstracts the microphone. Start begins delivering PCM
// frames to onFrame from the device's own callback thread; the callback
// must not block.
type CaptureDevice interface {
	Start(onFrame func(pcm []byte)) error
	Stop() error
}

// Orchestrator runs one live session: it fans the session out into the
// capture, uplink, downlink, tick, and command loops and supervises them
// as a group. The first fatal error cancels every loop; a clean shutdown
// (quit command or context cancellation) returns nil.
type Orchestrator struct {
	cfg     SessionConfig
	port    SessionPort
	engine  *Engine
	queue   *CaptureQueue
	capture CaptureDevice
	command io.Reader
	logger  *slog.Logger
	metrics *Metrics
}

// NewOrchestrator assembles a session over port. capture and command may
// be nil for text-only or non-interactive runs; metrics may be nil.
func NewOrchestrator(cfg SessionConfig, port SessionPort, engine *Engine, capture CaptureDevice, command io.Reader, logger *slog.Logger, metrics *Metrics) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:     cfg,
		port:    port,
		engine:  engine,
		queue:   NewCaptureQueue(cfg.CaptureQueueFrames),
		capture: capture,
		command: command,
		logger:  logger,
		metrics: metrics,
	}
}

// Run blocks until the session ends. It returns nil on deliberate
// shutdown and the first fatal loop error otherwise.
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.metrics.SessionStarted()
	defer o.metrics.SessionEnded()

	g, ctx := errgroup.WithContext(ctx)

	if o.capture != nil {
		if err := o.capture.Start(o.onCaptureFrame); err != nil {
			return core.NewAudioError("start capture device: " + err.Error())
		}
		g.Go(func() error {
			<-ctx.Done()
			if err := o.capture.Stop(); err != nil {
				o.logger.Warn("capture stop failed", "error", err)
			}
			return nil
		})
		g.Go(func() error { return o.uplinkLoop(ctx) })
	}

	g.Go(func() error { return o.downlinkLoop(ctx) })
	g.Go(func() error { return o.tickLoop(ctx) })

	if o.command != nil {
		lines := readLines(o.command)
		g.Go(func() error { return o.commandLoop(ctx, cancel, lines) })
	}

	err := g.Wait()

	// Tell the server capture ended so server-side VAD does not wait on
	// a stream that will never resume. The session may already be gone.
	if sendErr := o.port.EndAudioStream(); sendErr != nil {
		o.logger.Debug("end audio stream", "error", sendErr)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// onCaptureFrame runs on the audio device callback thread. It must only
// do the non-blocking enqueue.
func (o *Orchestrator) onCaptureFrame(pcm []byte) {
	frame := make([]byte, len(pcm))
	copy(frame, pcm)
	if o.queue.Push(frame) {
		o.metrics.RecordCaptureDrop()
	}
}

func (o *Orchestrator) uplinkLoop(ctx context.Context) error {
	for {
		frame, err := o.queue.Pop(ctx)
		if err != nil {
			return err
		}
		if err := o.port.SendAudioFrame(frame); err != nil {
			var ce *core.Error
			if errors.As(err, &ce) && !ce.IsFatal() {
				o.logger.Warn("audio frame dropped", "error", err)
				continue
			}
			return err
		}
		o.metrics.RecordAudioBytes("capture", len(frame))
	}
}

// downlinkLoop is the only reader of server events, which preserves the
// arrival order the engine depends on. The resume check runs after every
// event so an injection cannot slip behind the model's next turn.
func (o *Orchestrator) downlinkLoop(ctx context.Context) error {
	for {
		stream, err := o.port.ReceiveTurn(ctx)
		if err != nil {
			return err
		}
		for {
			ev, err := stream.Next(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				if core.IsProtocol(err) {
					o.logger.Warn("malformed server event skipped", "error", err)
					continue
				}
				return err
			}
			o.engine.HandleEvent(ev)
			o.sendPendingResume()
		}
	}
}

func (o *Orchestrator) sendPendingResume() {
	msg, ok := o.engine.ConsumeResume()
	if !ok {
		return
	}
	if err := o.port.SendTextTurn(RoleUser, msg, true); err != nil {
		o.logger.Error("resume injection failed", "error", err)
		return
	}
	o.logger.Debug("resume context injected", "bytes", len(msg))
}

func (o *Orchestrator) tickLoop(ctx context.Context) error {
	interval := o.cfg.Sync.TickInterval
	if interval <= 0 {
		interval = 30 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			o.engine.Tick()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// readLines pumps r into a channel so the command loop can still select
// on ctx. The pumping goroutine exits when r reaches EOF or errors;
// a reader blocked past shutdown (stdin) is left to die with the process.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func (o *Orchestrator) commandLoop(ctx context.Context, cancel context.CancelFunc, lines <-chan string) error {
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			o.handleCommand(cancel, strings.TrimSpace(line))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (o *Orchestrator) handleCommand(cancel context.CancelFunc, line string) {
	switch {
	case line == "":
	case line == "/quit":
		o.logger.Info("quit requested")
		cancel()
	case line == "/interrupt":
		// Interruption is driven by server-side voice activity
		// detection; just speaking over the model triggers it.
		o.logger.Info("interruptions are detected automatically; speak to cut the model off")
	case strings.HasPrefix(line, "/text "):
		text := strings.TrimSpace(strings.TrimPrefix(line, "/text "))
		if text == "" {
			return
		}
		o.engine.RecordUserText(text)
		if err := o.port.SendTextTurn(RoleUser, text, true); err != nil {
			o.logger.Error("send text turn failed", "error", err)
		}
	default:
		o.logger.Warn("unknown command", "line", line)
	}
}
