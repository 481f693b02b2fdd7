package live

import (
	"strings"
)

// InterruptionSnapshot captures, atomically at the interruption instant,
// everything needed to build the resume context. It is taken before any
// turn state is reset so the next turn's transcription cannot corrupt it.
type InterruptionSnapshot struct {
	// FullTranscript is the model-native transcription of the whole turn,
	// independent of whether its audio was ever played.
	FullTranscript string

	// HeardTranscript is the transcript whose audio actually reached the
	// speaker before the cut.
	HeardTranscript string

	// InterruptingUserText is the in-progress user transcription at the
	// moment of interruption.
	InterruptingUserText string
}

// Empty reports whether the snapshot carries nothing worth resuming.
// A resume message is sent iff full or heard is non-empty.
func (s InterruptionSnapshot) Empty() bool {
	return s.FullTranscript == "" && s.HeardTranscript == ""
}

// UnheardRemainder returns the suffix of full after heard, compared with
// normalized whitespace and case. The two transcripts come from independent
// recognition passes and may diverge in wording; when heard is not a
// literal prefix of full the remainder is empty.
func UnheardRemainder(full, heard string) string {
	fullWords := strings.Fields(full)
	heardWords := strings.Fields(heard)
	if len(heardWords) == 0 || len(heardWords) >= len(fullWords) {
		return ""
	}
	for i, w := range heardWords {
		if !strings.EqualFold(w, fullWords[i]) {
			return ""
		}
	}
	return strings.Join(fullWords[len(heardWords):], " ")
}

const resumePreamble = "[System Note — Interruption Context]\n" +
	"Your previous response was interrupted by the user. " +
	"Below is the full context so you can decide how to proceed."

const resumeInstructions = "=== Instructions ===\n" +
	"Based on the above context, decide the best course of action:\n" +
	"1. If the user's interruption is a new question, request, or " +
	"a clear change of topic, address it directly — do not resume " +
	"the old response.\n" +
	"2. If the user's interruption is a brief acknowledgment, " +
	"background noise, or does not introduce a new topic, seamlessly " +
	"continue your response from exactly where the user stopped " +
	"hearing. Pick up mid-sentence if needed.\n" +
	"3. If the user's interruption is partially related (a follow-up, " +
	"clarification, or correction), briefly address it and then " +
	"continue the interrupted response from where the user stopped " +
	"hearing.\n" +
	"Do NOT mention this system note."

// BuildResumeMessage renders the context-repair message sent after an
// interruption, letting the model resume, redirect, or blend. The output
// is deterministic for a given snapshot and history.
func BuildResumeMessage(snap InterruptionSnapshot, history []Turn) string {
	var lines []string
	lines = append(lines, resumePreamble)

	if len(history) > 0 {
		lines = append(lines, "", "=== Recent Conversation ===")
		for _, turn := range history {
			speaker := "User"
			if turn.Role == RoleModel {
				speaker = "You (Model)"
			}
			lines = append(lines, speaker+": "+turn.Text)
		}
	}

	lines = append(lines, "", "=== Interrupted Response ===")
	lines = append(lines, "Model native transcription (ground truth, full output): "+snap.FullTranscript)
	lines = append(lines, "Real-time audio transcription (what user heard before interruption): "+snap.HeardTranscript)
	if snap.FullTranscript != "" && snap.HeardTranscript != "" && snap.FullTranscript != snap.HeardTranscript {
		if remainder := UnheardRemainder(snap.FullTranscript, snap.HeardTranscript); remainder != "" {
			lines = append(lines, "Unheard remainder (user missed this): "+remainder)
		}
	}

	if snap.InterruptingUserText != "" {
		lines = append(lines, "", "=== What the User Said (interruption) ===", snap.InterruptingUserText)
	}

	lines = append(lines, "", resumeInstructions)
	return strings.Join(lines, "\n")
}
