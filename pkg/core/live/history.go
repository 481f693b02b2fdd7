package live

// Turn is one recorded conversation entry.
type Turn struct {
	Role Role
	Text string
}

// ConversationHistory is a bounded rolling log of conversation turns.
// On overflow the oldest turn is evicted. It is owned and mutated
// exclusively by the engine's single-threaded event path.
type ConversationHistory struct {
	turns    []Turn
	capacity int
}

// NewConversationHistory creates a history bounded to capacity turns.
func NewConversationHistory(capacity int) *ConversationHistory {
	if capacity <= 0 {
		capacity = 4
	}
	return &ConversationHistory{capacity: capacity}
}

// Record appends a turn, evicting the oldest if over capacity.
// Empty text is ignored.
func (h *ConversationHistory) Record(role Role, text string) {
	if text == "" {
		return
	}
	h.turns = append(h.turns, Turn{Role: role, Text: text})
	if len(h.turns) > h.capacity {
		h.turns = h.turns[len(h.turns)-h.capacity:]
	}
}

// Turns returns a copy of the recorded turns, oldest first.
func (h *ConversationHistory) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of recorded turns.
func (h *ConversationHistory) Len() int {
	return len(h.turns)
}
