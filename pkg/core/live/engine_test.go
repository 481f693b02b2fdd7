package live

import (
	"strings"
	"testing"
	"time"
)

type lineRecorder struct {
	lines []TranscriptLine
}

func (r *lineRecorder) WriteLine(line TranscriptLine) {
	r.lines = append(r.lines, line)
}

func (r *lineRecorder) modelTexts() []string {
	var texts []string
	for _, l := range r.lines {
		if l.Speaker == RoleModel && l.Stage != StageInterrupted {
			texts = append(texts, l.Text)
		}
	}
	return texts
}

func newTestEngine(t *testing.T) (*Engine, *PlaybackBuffer, *lineRecorder) {
	t.Helper()
	cfg := DefaultSessionConfig()
	cfg.Sync.LeadToleranceMs = 0
	cfg.Sync.DrainThresholdMs = 0
	cfg.Sync.TickInterval = time.Millisecond
	playback := NewPlaybackBuffer()
	rec := &lineRecorder{}
	return NewEngine(cfg, playback, rec, nil, nil), playback, rec
}

func modelEvent(text string, audio []byte) *ServerEvent {
	ev := &ServerEvent{}
	if text != "" {
		ev.OutputTranscription = &Transcription{Text: text}
	}
	if audio != nil {
		ev.AudioChunks = [][]byte{audio}
	}
	return ev
}

func TestEngineReleasesSegmentsWithPlayback(t *testing.T) {
	e, playback, rec := newTestEngine(t)

	e.HandleEvent(modelEvent("Hello", make([]byte, 100)))
	e.HandleEvent(modelEvent("there", make([]byte, 100)))

	// Nothing played yet: only the first segment (offset 0) is due.
	e.Tick()
	if got := rec.modelTexts(); len(got) != 1 || got[0] != "Hello" {
		t.Fatalf("emitted %v, want [Hello]", got)
	}

	playback.Read(100)
	e.Tick()
	if got := rec.modelTexts(); len(got) != 2 || got[1] != "there" {
		t.Fatalf("emitted %v, want [Hello there]", got)
	}
}

func TestEngineInterruptionSnapshotAndResume(t *testing.T) {
	e, playback, rec := newTestEngine(t)

	e.HandleEvent(modelEvent("Hello", make([]byte, 100)))
	e.HandleEvent(modelEvent("there", make([]byte, 100)))
	e.HandleEvent(modelEvent("friend", make([]byte, 100)))

	// The user hears 150 of 300 bytes: all of segment one, half of two.
	playback.Read(150)
	e.HandleEvent(&ServerEvent{
		InputTranscription: &Transcription{Text: "wait"},
		Interrupted:        true,
	})

	if got := rec.modelTexts(); len(got) != 1 || got[0] != "Hello" {
		t.Fatalf("printed %v, want only the fully played [Hello]", got)
	}

	last := rec.lines[len(rec.lines)-1]
	if last.Stage != StageInterrupted || last.Text != "Hello" {
		t.Errorf("final line = %+v, want INTERRUPTED Hello", last)
	}

	if playback.PlayedTotal() != playback.ReceivedTotal() {
		t.Errorf("playback not cleared: played=%d received=%d",
			playback.PlayedTotal(), playback.ReceivedTotal())
	}

	msg, ok := e.ConsumeResume()
	if !ok {
		t.Fatal("expected a pending resume message")
	}
	for _, want := range []string{
		"Model native transcription (ground truth, full output): Hello there friend",
		"Real-time audio transcription (what user heard before interruption): Hello",
		"Unheard remainder (user missed this): there friend",
		"wait",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("resume message missing %q\n%s", want, msg)
		}
	}
	if _, ok := e.ConsumeResume(); ok {
		t.Error("resume message consumed twice")
	}

	if e.Interruptions() != 1 {
		t.Errorf("Interruptions() = %d, want 1", e.Interruptions())
	}
	history := e.History()
	if len(history) != 1 || history[0].Role != RoleModel || history[0].Text != "Hello" {
		t.Errorf("history = %+v, want the heard model text", history)
	}
}

func TestEngineDropsContentAfterInterruptionUntilTurnComplete(t *testing.T) {
	e, playback, rec := newTestEngine(t)

	e.HandleEvent(modelEvent("cut", make([]byte, 10)))
	e.HandleEvent(&ServerEvent{Interrupted: true})

	// Tail of the cancelled turn: no audio queued, no segments pending.
	e.HandleEvent(modelEvent("late", make([]byte, 50)))
	if _, _, buffered := playback.Stats(); buffered != 0 {
		t.Errorf("late audio buffered: %d bytes", buffered)
	}
	before := len(rec.modelTexts())
	e.Tick()
	if got := len(rec.modelTexts()); got != before {
		t.Errorf("late segment emitted")
	}

	// turn_complete readmits content for the next turn.
	e.HandleEvent(&ServerEvent{TurnComplete: true})
	e.HandleEvent(modelEvent("fresh", make([]byte, 20)))
	if _, _, buffered := playback.Stats(); buffered != 20 {
		t.Errorf("next-turn audio not buffered: %d bytes", buffered)
	}
	e.Tick()
	texts := rec.modelTexts()
	if len(texts) == 0 || texts[len(texts)-1] != "fresh" {
		t.Errorf("next-turn segment not emitted: %v", texts)
	}
}

func TestEngineNoResumeWhenNothingSpoken(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.HandleEvent(&ServerEvent{Interrupted: true})
	if _, ok := e.ConsumeResume(); ok {
		t.Error("resume message produced for an empty turn")
	}
	if e.Interruptions() != 1 {
		t.Errorf("Interruptions() = %d, want 1", e.Interruptions())
	}
}

func TestEngineTurnCompleteDrainsPending(t *testing.T) {
	e, playback, rec := newTestEngine(t)

	e.HandleEvent(modelEvent("first", make([]byte, 100)))
	e.HandleEvent(modelEvent("second", make([]byte, 100)))
	e.HandleEvent(&ServerEvent{TurnComplete: true})

	// Backlog still present: the tail waits for playback.
	e.Tick()
	if got := rec.modelTexts(); len(got) != 1 {
		t.Fatalf("emitted %v before drain, want [first]", got)
	}

	playback.Read(200)
	e.Tick()
	if got := rec.modelTexts(); len(got) != 2 || got[1] != "second" {
		t.Fatalf("emitted %v after drain, want [first second]", got)
	}

	history := e.History()
	if len(history) != 1 || history[0].Text != "first second" {
		t.Errorf("history = %+v", history)
	}
}

func TestEngineDedupsRepeatedInputDeltas(t *testing.T) {
	e, _, rec := newTestEngine(t)

	e.HandleEvent(modelEvent("hold on", nil))
	e.HandleEvent(&ServerEvent{InputTranscription: &Transcription{Text: "wait"}})
	e.HandleEvent(&ServerEvent{
		InputTranscription: &Transcription{Text: "wait"},
		Interrupted:        true,
	})

	for _, l := range rec.lines {
		if l.Speaker == RoleUser && l.Text != "wait" {
			t.Errorf("user caption = %q, repeated delta not suppressed", l.Text)
		}
	}

	msg, ok := e.ConsumeResume()
	if !ok {
		t.Fatal("expected a pending resume message")
	}
	if strings.Contains(msg, "waitwait") {
		t.Errorf("interrupting user text duplicated:\n%s", msg)
	}
	if !strings.Contains(msg, "=== What the User Said (interruption) ===\nwait") {
		t.Errorf("interrupting user text missing:\n%s", msg)
	}
}

func TestEngineRecordsUserTurnPerFinishedUtterance(t *testing.T) {
	e, _, rec := newTestEngine(t)

	e.HandleEvent(&ServerEvent{InputTranscription: &Transcription{Text: "one", Finished: true}})
	e.HandleEvent(&ServerEvent{InputTranscription: &Transcription{Text: "two", Finished: true}})
	e.HandleEvent(&ServerEvent{TurnComplete: true})

	history := e.History()
	if len(history) != 2 {
		t.Fatalf("history = %+v, want two separate user turns", history)
	}
	if history[0].Text != "one" || history[1].Text != "two" {
		t.Errorf("history = %+v, want [one two] as distinct turns", history)
	}

	// The accumulator resets between utterances, so the second caption
	// starts fresh.
	for _, l := range rec.lines {
		if l.Speaker == RoleUser && l.Text == "onetwo" {
			t.Error("utterances concatenated across a finished boundary")
		}
	}
}

func TestEngineSnapshotCarriesOnlyCurrentUtterance(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.HandleEvent(&ServerEvent{InputTranscription: &Transcription{Text: "first question", Finished: true}})
	e.HandleEvent(modelEvent("an answer", nil))
	e.HandleEvent(&ServerEvent{
		InputTranscription: &Transcription{Text: "wait"},
		Interrupted:        true,
	})

	msg, ok := e.ConsumeResume()
	if !ok {
		t.Fatal("expected a pending resume message")
	}
	if !strings.Contains(msg, "=== What the User Said (interruption) ===\nwait") {
		t.Errorf("interrupting text should be only the in-progress utterance:\n%s", msg)
	}
	if strings.Contains(msg, "first questionwait") {
		t.Errorf("stale finished utterance blended into the snapshot:\n%s", msg)
	}
}

func TestEngineNoInterruptedLineWhenNothingHeard(t *testing.T) {
	e, _, rec := newTestEngine(t)

	// Transcription and audio arrived but none of it played.
	e.HandleEvent(modelEvent("cut", make([]byte, 10)))
	e.HandleEvent(&ServerEvent{Interrupted: true})

	for _, l := range rec.lines {
		if l.Stage == StageInterrupted {
			t.Errorf("interrupted line emitted with nothing heard: %+v", l)
		}
	}
}

func TestEngineRecordsUserTurn(t *testing.T) {
	e, _, rec := newTestEngine(t)

	e.HandleEvent(&ServerEvent{InputTranscription: &Transcription{Text: "hello "}})
	e.HandleEvent(&ServerEvent{InputTranscription: &Transcription{Text: "model"}})
	e.HandleEvent(&ServerEvent{TurnComplete: true})

	history := e.History()
	if len(history) == 0 || history[0].Role != RoleUser || history[0].Text != "hello model" {
		t.Fatalf("history = %+v, want user turn first", history)
	}

	var sawCumulative bool
	for _, l := range rec.lines {
		if l.Speaker == RoleUser && l.Text == "hello model" {
			sawCumulative = true
		}
	}
	if !sawCumulative {
		t.Error("user caption never showed the accumulated text")
	}
}
