package core

import (
	"errors"
	"fmt"
)

// Error is the canonical error shape for the livescribe runtime.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrConfig indicates invalid or missing configuration.
	ErrConfig ErrorType = "config_error"
	// ErrProtocol indicates a malformed or unexpected inbound frame.
	// Protocol errors are logged and skipped; processing continues.
	ErrProtocol ErrorType = "protocol_error"
	// ErrSession indicates the remote session terminated unexpectedly or a
	// supervised operation failed. Session errors trigger orchestrated shutdown.
	ErrSession ErrorType = "session_error"
	// ErrAudio indicates an audio device failure.
	ErrAudio ErrorType = "audio_error"
)

// NewConfigError creates a configuration error.
func NewConfigError(message string) *Error {
	return &Error{
		Type:    ErrConfig,
		Message: message,
	}
}

// NewProtocolError creates a protocol error.
func NewProtocolError(message string) *Error {
	return &Error{
		Type:    ErrProtocol,
		Message: message,
	}
}

// NewSessionError creates a session error.
func NewSessionError(message string) *Error {
	return &Error{
		Type:    ErrSession,
		Message: message,
	}
}

// NewAudioError creates an audio device error.
func NewAudioError(message string) *Error {
	return &Error{
		Type:    ErrAudio,
		Message: message,
	}
}

// IsFatal returns true if the error should trigger session shutdown.
// Protocol errors are recoverable: the offending frame is skipped.
func (e *Error) IsFatal() bool {
	switch e.Type {
	case ErrSession, ErrAudio, ErrConfig:
		return true
	default:
		return false
	}
}

// IsProtocol reports whether err is a recoverable protocol error.
func IsProtocol(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == ErrProtocol
	}
	return false
}
