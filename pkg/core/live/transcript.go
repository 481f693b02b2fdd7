package live

import "strings"

// OutputSegment is a chunk of transcribed model speech stamped with the
// playback buffer's received counter at arrival time. Emission is deferred
// until playback consumption catches up with ProducedOffset.
type OutputSegment struct {
	Text           string
	Final          bool
	ProducedOffset int64
}

// TranscriptSynchronizer buffers inbound model transcript segments and
// releases them in lock-step with audio playback, so captions track what
// is audible instead of network arrival order.
//
// It also accumulates the model-native ground-truth transcript, which is
// kept independent of interruption state: post-interruption transcription
// is still real model output whose audio was discarded, and must remain
// available for diffing.
//
// The synchronizer is not goroutine-safe; the owning engine serializes
// access.
type TranscriptSynchronizer struct {
	pending []OutputSegment
	printed []OutputSegment

	groundTruth     []string
	lastGroundTruth string

	lastEnqueued string
	lastEmitted  string
}

// NewTranscriptSynchronizer creates an empty synchronizer.
func NewTranscriptSynchronizer() *TranscriptSynchronizer {
	return &TranscriptSynchronizer{}
}

// AddGroundTruth records ground-truth transcription text, deduplicating
// identical consecutive deltas.
func (s *TranscriptSynchronizer) AddGroundTruth(text string, final bool) {
	if text == "" || text == s.lastGroundTruth {
		return
	}
	s.groundTruth = append(s.groundTruth, text)
	s.lastGroundTruth = text
	if final {
		s.lastGroundTruth = ""
	}
}

// Enqueue accepts a playback-gated segment stamped with the current
// received offset, deduplicating identical consecutive deltas.
func (s *TranscriptSynchronizer) Enqueue(text string, final bool, producedOffset int64) {
	if text == "" || text == s.lastEnqueued {
		return
	}
	s.pending = append(s.pending, OutputSegment{Text: text, Final: final, ProducedOffset: producedOffset})
	s.lastEnqueued = text
	if final {
		s.lastEnqueued = ""
	}
}

// Release pops and emits every pending segment whose produced offset is
// within leadBytes of the played counter, in enqueue order.
func (s *TranscriptSynchronizer) Release(played, leadBytes int64, emit func(TranscriptLine)) {
	for len(s.pending) > 0 {
		if s.pending[0].ProducedOffset > played+leadBytes {
			break
		}
		s.popAndEmit(emit)
	}
}

// ForceFlush emits all pending segments regardless of playback position.
// Called once the turn is complete and the playback backlog has drained.
func (s *TranscriptSynchronizer) ForceFlush(emit func(TranscriptLine)) {
	for len(s.pending) > 0 {
		s.popAndEmit(emit)
	}
}

// FlushFullyPlayed emits only the pending segments whose audio had fully
// rendered before playback stopped: a segment's audio ends where the next
// segment's begins (or at received, for the last segment). A segment cut
// mid-word is not counted as heard.
func (s *TranscriptSynchronizer) FlushFullyPlayed(played, received int64, emit func(TranscriptLine)) {
	for len(s.pending) > 0 {
		end := received
		if len(s.pending) > 1 {
			end = s.pending[1].ProducedOffset
		}
		if end > played {
			break
		}
		s.popAndEmit(emit)
	}
}

func (s *TranscriptSynchronizer) popAndEmit(emit func(TranscriptLine)) {
	seg := s.pending[0]
	s.pending = s.pending[1:]
	if seg.Text != "" && seg.Text != s.lastEmitted {
		stage := StagePartial
		if seg.Final {
			stage = StageFinal
		}
		if emit != nil {
			emit(TranscriptLine{Speaker: RoleModel, Stage: stage, Text: seg.Text})
		}
		s.printed = append(s.printed, seg)
		s.lastEmitted = seg.Text
	}
	if seg.Final {
		s.lastEmitted = ""
	}
}

// HeardTranscript joins the texts emitted this turn, in order.
func (s *TranscriptSynchronizer) HeardTranscript() string {
	if len(s.printed) == 0 {
		return ""
	}
	texts := make([]string, 0, len(s.printed))
	for _, seg := range s.printed {
		texts = append(texts, seg.Text)
	}
	return strings.Join(texts, " ")
}

// LastPrintedText returns the most recently emitted segment text.
func (s *TranscriptSynchronizer) LastPrintedText() string {
	if len(s.printed) == 0 {
		return ""
	}
	return s.printed[len(s.printed)-1].Text
}

// FullTranscript joins all ground-truth text recorded this turn.
func (s *TranscriptSynchronizer) FullTranscript() string {
	return strings.Join(s.groundTruth, " ")
}

// PendingLen returns the number of segments awaiting release.
func (s *TranscriptSynchronizer) PendingLen() int {
	return len(s.pending)
}

// PrintedLen returns the number of segments emitted this turn.
func (s *TranscriptSynchronizer) PrintedLen() int {
	return len(s.printed)
}

// ResetTurn clears all per-turn state; a new turn begins empty.
func (s *TranscriptSynchronizer) ResetTurn() {
	s.pending = s.pending[:0]
	s.printed = s.printed[:0]
	s.groundTruth = s.groundTruth[:0]
	s.lastGroundTruth = ""
	s.lastEnqueued = ""
	s.lastEmitted = ""
}
