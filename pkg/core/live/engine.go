package live

import (
	"log/slog"
	"sync"
)

// Engine is the interruption-resume state machine for a single live
// session. It owns the per-turn transcript state and decides, on every
// server event and timer tick, what reaches the transcript sink and
// whether a resume message must be injected.
//
// All mutating methods take the engine mutex, so the downlink loop and
// the tick loop can call in from separate goroutines. Within HandleEvent
// the interruption snapshot is taken before any turn state is reset,
// which keeps the snapshot consistent even if the next turn's events are
// already queued behind the current one.
type Engine struct {
	mu sync.Mutex

	cfg        SessionConfig
	playback   *PlaybackBuffer
	transcript *TranscriptSynchronizer
	history    *ConversationHistory
	sink       TranscriptSink
	metrics    *Metrics
	logger     *slog.Logger

	leadBytes  int64
	drainBytes int64

	// userText accumulates the in-progress user input transcription;
	// lastInputText suppresses repeated consecutive deltas.
	userText      string
	lastInputText string

	// interrupted gates model content between an interruption and the
	// server's turn_complete for the cancelled turn. Late audio and
	// transcription chunks for a turn the user cut off are dropped.
	interrupted bool

	// turnDone marks a completed turn whose playback tail is still
	// draining. The tick loop finalizes it once the backlog is gone.
	turnDone bool

	needsResume   bool
	pendingResume string

	interruptions int64
}

// NewEngine wires an engine over the shared playback buffer. sink receives
// every transcript line in order. metrics and logger may be nil.
func NewEngine(cfg SessionConfig, playback *PlaybackBuffer, sink TranscriptSink, logger *slog.Logger, metrics *Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:        cfg,
		playback:   playback,
		transcript: NewTranscriptSynchronizer(),
		history:    NewConversationHistory(cfg.HistoryTurns),
		sink:       sink,
		metrics:    metrics,
		logger:     logger,
		leadBytes:  cfg.OutputAudio.BytesForDurationMs(cfg.Sync.LeadToleranceMs),
		drainBytes: cfg.OutputAudio.BytesForDurationMs(cfg.Sync.DrainThresholdMs),
	}
}

func (e *Engine) emit(line TranscriptLine) {
	if e.sink != nil {
		e.sink.WriteLine(line)
	}
	e.metrics.RecordSegment(string(line.Stage))
}

// HandleEvent applies one server event. Events must be delivered in
// arrival order; the ordering of the interruption signal relative to the
// audio and transcription chunks around it is what the whole resume
// mechanism keys off.
func (e *Engine) HandleEvent(ev *ServerEvent) {
	if ev == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if t := ev.InputTranscription; t != nil {
		if t.Text != "" && t.Text != e.lastInputText {
			e.userText += t.Text
			e.lastInputText = t.Text
			stage := StagePartial
			if t.Finished {
				stage = StageFinal
			}
			e.emit(TranscriptLine{Speaker: RoleUser, Stage: stage, Text: e.userText})
		}
		if t.Finished && e.userText != "" {
			// Each finished utterance is its own history turn; the
			// accumulator starts fresh for the next one.
			e.history.Record(RoleUser, e.userText)
			e.userText = ""
			e.lastInputText = ""
		}
	}

	if t := ev.OutputTranscription; t != nil && t.Text != "" {
		// Ground truth accumulates regardless of interruption state;
		// pending segments only exist for turns the user still hears.
		e.transcript.AddGroundTruth(t.Text, t.Finished)
		if !e.interrupted {
			e.transcript.Enqueue(t.Text, t.Finished, e.playback.ReceivedTotal())
		}
	}

	for _, chunk := range ev.AudioChunks {
		if e.interrupted {
			continue
		}
		e.playback.Append(chunk)
		e.metrics.RecordAudioBytes("playback", len(chunk))
	}

	if ev.Interrupted {
		e.handleInterruption()
	}

	if ev.TurnComplete {
		e.handleTurnComplete(ev.TurnCompleteReason)
	}
}

// handleInterruption runs the snapshot-flush-reset sequence. Caller holds
// the mutex.
func (e *Engine) handleInterruption() {
	played, received := e.playback.PlayedTotal(), e.playback.ReceivedTotal()

	// Flush only what the user fully heard; partially played segments
	// stay out of the printed transcript.
	e.transcript.FlushFullyPlayed(played, received, e.emit)

	heard := e.transcript.HeardTranscript()
	if heard == "" {
		heard = e.transcript.LastPrintedText()
	}
	snap := InterruptionSnapshot{
		FullTranscript:       e.transcript.FullTranscript(),
		HeardTranscript:      heard,
		InterruptingUserText: e.userText,
	}

	e.playback.Clear()
	e.transcript.ResetTurn()
	e.interrupted = true
	e.turnDone = false
	e.interruptions++
	e.metrics.RecordInterruption()

	if !snap.Empty() {
		// Build against the history as it stood before this turn, then
		// record the cut-off model turn so later resumes see it.
		e.pendingResume = BuildResumeMessage(snap, e.history.Turns())
		e.needsResume = true
	}

	// The heard text is what the conversation actually contained; the
	// full transcript only stands in when nothing was audible.
	modelText := snap.HeardTranscript
	if modelText == "" {
		modelText = snap.FullTranscript
	}
	e.history.Record(RoleModel, modelText)

	if heard != "" {
		e.emit(TranscriptLine{Speaker: RoleModel, Stage: StageInterrupted, Text: heard})
	}
	e.logger.Debug("interruption handled",
		"heard", heard,
		"full_len", len(snap.FullTranscript),
		"played_bytes", played,
		"received_bytes", received,
	)
}

// handleTurnComplete closes out the server side of a turn. Playback may
// still lag, so pending segments are left for the tick loop to drain
// unless the turn was already cancelled. Caller holds the mutex.
func (e *Engine) handleTurnComplete(reason string) {
	// An utterance still in progress at turn completion is committed as
	// it stands rather than lost.
	if e.userText != "" {
		e.history.Record(RoleUser, e.userText)
		e.userText = ""
		e.lastInputText = ""
	}
	if e.interrupted {
		// The cancelled turn's text was recorded at interruption time.
		// Drop any tail transcription that trickled in since, then
		// reopen the gate for the next turn.
		e.transcript.ResetTurn()
		e.interrupted = false
		return
	}
	e.history.Record(RoleModel, e.transcript.FullTranscript())
	e.turnDone = true
	if reason != "" {
		e.logger.Debug("turn complete", "reason", reason)
	}
}

// Tick releases pending segments whose audio has reached the speaker and
// finalizes a completed turn once its playback backlog drains. Called
// periodically by the orchestrator.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	played, received := e.playback.PlayedTotal(), e.playback.ReceivedTotal()
	e.transcript.Release(played, e.leadBytes, e.emit)

	if e.turnDone && received-played <= e.drainBytes {
		e.transcript.ForceFlush(e.emit)
		e.transcript.ResetTurn()
		e.turnDone = false
	}
}

// ConsumeResume returns the pending resume message, if any, and clears
// it. The downlink loop calls this after every event so the injection
// lands before the model's next turn begins.
func (e *Engine) ConsumeResume() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.needsResume {
		return "", false
	}
	msg := e.pendingResume
	e.needsResume = false
	e.pendingResume = ""
	e.metrics.RecordResume()
	return msg, true
}

// RecordUserText adds out-of-band user input (typed text) to history.
func (e *Engine) RecordUserText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history.Record(RoleUser, text)
}

// Interruptions reports how many interruptions the session has handled.
func (e *Engine) Interruptions() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interruptions
}

// History returns a copy of the retained conversation turns.
func (e *Engine) History() []Turn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Turns()
}
