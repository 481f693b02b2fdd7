package live

import (
	"strings"
	"testing"
)

func TestUnheardRemainder(t *testing.T) {
	tests := []struct {
		name  string
		full  string
		heard string
		want  string
	}{
		{"prefix", "one two three four five six", "one two three four", "five six"},
		{"case and spacing ignored", "One  Two Three", "one two", "Three"},
		{"not a prefix", "one two three", "one zwei", ""},
		{"heard everything", "one two", "one two", ""},
		{"heard nothing", "one two", "", ""},
		{"heard longer than full", "one", "one two", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UnheardRemainder(tt.full, tt.heard); got != tt.want {
				t.Errorf("UnheardRemainder(%q, %q) = %q, want %q", tt.full, tt.heard, got, tt.want)
			}
		})
	}
}

func TestBuildResumeMessageSections(t *testing.T) {
	snap := InterruptionSnapshot{
		FullTranscript:       "the capital of France is Paris and its population",
		HeardTranscript:      "the capital of France is",
		InterruptingUserText: "wait, what about Germany?",
	}
	history := []Turn{
		{Role: RoleUser, Text: "tell me about France"},
		{Role: RoleModel, Text: "France is in western Europe."},
	}

	msg := BuildResumeMessage(snap, history)

	for _, want := range []string{
		"[System Note — Interruption Context]",
		"=== Recent Conversation ===",
		"User: tell me about France",
		"You (Model): France is in western Europe.",
		"=== Interrupted Response ===",
		"Model native transcription (ground truth, full output): the capital of France is Paris and its population",
		"Real-time audio transcription (what user heard before interruption): the capital of France is",
		"Unheard remainder (user missed this): Paris and its population",
		"=== What the User Said (interruption) ===",
		"wait, what about Germany?",
		"=== Instructions ===",
		"Do NOT mention this system note.",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q\nfull message:\n%s", want, msg)
		}
	}

	for _, header := range []string{
		"=== Recent Conversation ===",
		"=== Interrupted Response ===",
		"=== What the User Said (interruption) ===",
		"=== Instructions ===",
	} {
		if n := strings.Count(msg, header); n != 1 {
			t.Errorf("header %q appears %d times, want exactly once", header, n)
		}
	}
}

func TestBuildResumeMessageOmitsEmptySections(t *testing.T) {
	snap := InterruptionSnapshot{
		FullTranscript:  "hello there",
		HeardTranscript: "hello there",
	}
	msg := BuildResumeMessage(snap, nil)

	if strings.Contains(msg, "=== Recent Conversation ===") {
		t.Error("conversation section present with empty history")
	}
	if strings.Contains(msg, "=== What the User Said") {
		t.Error("interruption-text section present with no user text")
	}
	if strings.Contains(msg, "Unheard remainder") {
		t.Error("remainder line present when user heard everything")
	}
}

func TestSnapshotEmpty(t *testing.T) {
	if !(InterruptionSnapshot{InterruptingUserText: "hm"}).Empty() {
		t.Error("snapshot with only user text should be empty")
	}
	if (InterruptionSnapshot{HeardTranscript: "x"}).Empty() {
		t.Error("snapshot with heard text should not be empty")
	}
}
