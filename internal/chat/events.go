// Package chat orchestrates one conversation turn: persist the user
// message, assemble context, stream the model answer, validate it, compose
// the final response and remember what matters.
package chat

import "github.com/veritaslocal/veritas/internal/validate"

// EventType identifies a stream event.
type EventType string

const (
	// EventToken is one answer token delta.
	EventToken EventType = "token"
	// EventAnswerComplete carries the full raw answer text.
	EventAnswerComplete EventType = "answer_complete"
	// EventReasoningToken is one token of the self-explanation pass.
	EventReasoningToken EventType = "reasoning_token"
	// EventVerificationStarting marks the start of validation.
	EventVerificationStarting EventType = "verification_starting"
	// EventVerificationComplete carries the confidence record.
	EventVerificationComplete EventType = "verification_complete"
	// EventDone carries the composed final message.
	EventDone EventType = "done"
	// EventError carries a turn-fatal error message.
	EventError EventType = "error"
)

// Event is one item in the reply stream. Fields are populated per type:
// Token for token events, Text for answer_complete/done/error, Record for
// verification_complete.
type Event struct {
	Type   EventType                  `json:"type"`
	Token  string                     `json:"token,omitempty"`
	Text   string                     `json:"text,omitempty"`
	Record *validate.ConfidenceRecord `json:"record,omitempty"`
}
