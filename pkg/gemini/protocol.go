// Package gemini adapts the Gemini Live BidiGenerateContent websocket
// protocol to the session port the live engine consumes.
package gemini

import (
	"encoding/base64"
	"fmt"

	"github.com/livescribe-ai/livescribe/pkg/core"
	"github.com/livescribe-ai/livescribe/pkg/core/live"
)

// Client-bound frames. Field names follow the BidiGenerateContent JSON
// wire format, which uses lowerCamelCase.

type setupMessage struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model                    string               `json:"model"`
	GenerationConfig         *generationConfig    `json:"generationConfig,omitempty"`
	SystemInstruction        *content             `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *struct{}            `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}            `json:"outputAudioTranscription,omitempty"`
	RealtimeInputConfig      *realtimeInputConfig `json:"realtimeInputConfig,omitempty"`
	Proactivity              *proactivity         `json:"proactivity,omitempty"`
	EnableAffectiveDialog    bool                 `json:"enableAffectiveDialog,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig *voiceConfig `json:"voiceConfig,omitempty"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig *prebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type realtimeInputConfig struct {
	AutomaticActivityDetection *automaticActivityDetection `json:"automaticActivityDetection,omitempty"`
	ActivityHandling           string                      `json:"activityHandling,omitempty"`
	TurnCoverage               string                      `json:"turnCoverage,omitempty"`
}

type automaticActivityDetection struct {
	StartOfSpeechSensitivity string `json:"startOfSpeechSensitivity,omitempty"`
	EndOfSpeechSensitivity   string `json:"endOfSpeechSensitivity,omitempty"`
	PrefixPaddingMs          int    `json:"prefixPaddingMs,omitempty"`
	SilenceDurationMs        int    `json:"silenceDurationMs,omitempty"`
}

type proactivity struct {
	ProactiveAudio bool `json:"proactiveAudio,omitempty"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	Audio          *inlineBlob `json:"audio,omitempty"`
	AudioStreamEnd bool        `json:"audioStreamEnd,omitempty"`
}

type inlineBlob struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data"`
}

type clientContentMessage struct {
	ClientContent clientContent `json:"clientContent"`
}

type clientContent struct {
	Turns        []content `json:"turns,omitempty"`
	TurnComplete bool      `json:"turnComplete"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts,omitempty"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineBlob `json:"inlineData,omitempty"`
}

// Server-bound frames.

type serverMessage struct {
	SetupComplete           *struct{}                `json:"setupComplete,omitempty"`
	ServerContent           *serverContent           `json:"serverContent,omitempty"`
	GoAway                  *goAway                  `json:"goAway,omitempty"`
	SessionResumptionUpdate *sessionResumptionUpdate `json:"sessionResumptionUpdate,omitempty"`
}

type serverContent struct {
	ModelTurn           *content              `json:"modelTurn,omitempty"`
	InputTranscription  *transcriptionPayload `json:"inputTranscription,omitempty"`
	OutputTranscription *transcriptionPayload `json:"outputTranscription,omitempty"`
	Interrupted         bool                  `json:"interrupted,omitempty"`
	TurnComplete        bool                  `json:"turnComplete,omitempty"`
	GenerationComplete  bool                  `json:"generationComplete,omitempty"`
}

type transcriptionPayload struct {
	Text     string `json:"text,omitempty"`
	Finished bool   `json:"finished,omitempty"`
}

type goAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

type sessionResumptionUpdate struct {
	NewHandle string `json:"newHandle,omitempty"`
	Resumable bool   `json:"resumable,omitempty"`
}

// toServerEvent flattens one serverContent frame into the engine's event
// shape, decoding inline audio. A bad audio part fails the whole frame;
// the caller skips it as a protocol violation.
func toServerEvent(sc *serverContent) (*live.ServerEvent, error) {
	ev := &live.ServerEvent{
		Interrupted:  sc.Interrupted,
		TurnComplete: sc.TurnComplete,
	}
	if sc.TurnComplete {
		ev.TurnCompleteReason = "turn_complete"
	} else if sc.GenerationComplete {
		ev.TurnCompleteReason = "generation_complete"
	}
	if t := sc.InputTranscription; t != nil {
		ev.InputTranscription = &live.Transcription{Text: t.Text, Finished: t.Finished}
	}
	if t := sc.OutputTranscription; t != nil {
		ev.OutputTranscription = &live.Transcription{Text: t.Text, Finished: t.Finished}
	}
	if sc.ModelTurn != nil {
		for i, p := range sc.ModelTurn.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			pcm, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return nil, core.NewProtocolError(fmt.Sprintf("model turn part %d: bad audio payload: %v", i, err))
			}
			ev.AudioChunks = append(ev.AudioChunks, pcm)
		}
	}
	return ev, nil
}
