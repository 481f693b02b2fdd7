package live

import "context"

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Stage classifies a transcript line.
type Stage string

const (
	// StagePartial is an in-progress transcript segment.
	StagePartial Stage = "PARTIAL"
	// StageFinal is a committed transcript segment.
	StageFinal Stage = "FINAL"
	// StageInterrupted marks the last audible model text when the user cut in.
	StageInterrupted Stage = "INTERRUPTED"
)

// TranscriptLine is a caption released by the synchronizer, timed against
// audio playback rather than network arrival.
type TranscriptLine struct {
	Speaker Role
	Stage   Stage
	Text    string
}

// TranscriptSink receives released transcript lines.
type TranscriptSink interface {
	WriteLine(line TranscriptLine)
}

// TranscriptSinkFunc adapts a function to a TranscriptSink.
type TranscriptSinkFunc func(line TranscriptLine)

// WriteLine implements TranscriptSink.
func (f TranscriptSinkFunc) WriteLine(line TranscriptLine) { f(line) }

// Transcription is one increment of speech-to-text output.
type Transcription struct {
	Text     string
	Finished bool
}

// ServerEvent is the consumed shape of one inbound event from the remote
// streaming session. All fields are optional; a single event may carry any
// combination.
type ServerEvent struct {
	// InputTranscription is transcribed user speech.
	InputTranscription *Transcription

	// OutputTranscription is transcribed model speech. It feeds both the
	// ground-truth accumulator and the playback-gated segment queue.
	OutputTranscription *Transcription

	// AudioChunks carry model speech PCM for the playback buffer.
	AudioChunks [][]byte

	// Interrupted signals that server-side VAD detected the user cutting
	// into in-progress model speech.
	Interrupted bool

	// TurnComplete signals the end of the current model response cycle.
	TurnComplete bool

	// TurnCompleteReason is the provider-reported reason, when present.
	TurnCompleteReason string
}

// SessionPort is the narrow interface to the external streaming session.
// Establishing and authenticating the session is the adapter's concern;
// the core consumes only these operations.
type SessionPort interface {
	// SendAudioFrame sends one microphone frame on the uplink.
	SendAudioFrame(pcm []byte) error

	// SendTextTurn sends a text turn on behalf of role. When complete is
	// true the model is expected to respond.
	SendTextTurn(role Role, text string, complete bool) error

	// EndAudioStream signals best-effort end of the uplink audio stream.
	EndAudioStream() error

	// ReceiveTurn returns the event stream for one logical model turn.
	// The stream ends (io.EOF) after the turn-scoped sequence is exhausted;
	// the caller re-invokes ReceiveTurn to keep the session alive.
	ReceiveTurn(ctx context.Context) (EventStream, error)
}

// EventStream is a lazy sequence of inbound server events.
type EventStream interface {
	// Next blocks for the next event. It returns io.EOF when the
	// turn-scoped stream ends.
	Next(ctx context.Context) (*ServerEvent, error)
}
