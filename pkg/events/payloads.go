package events

import (
	"time"

	"github.com/dialogcore/engine/pkg/models"
)

// MessagePayload backs the "v2-message" event: a newly appended message.
type MessagePayload struct {
	SessionID string         `json:"sessionId"`
	Message   models.Message `json:"message"`
	Round     int            `json:"round"`
}

// RoundStartPayload backs the "v2-round-start" event.
type RoundStartPayload struct {
	SessionID string    `json:"sessionId"`
	Round     int       `json:"round"`
	Timestamp time.Time `json:"timestamp"`
}

// ConsensusUpdatePayload backs the "v2-consensus-update" event.
type ConsensusUpdatePayload struct {
	SessionID      string  `json:"sessionId"`
	ConsensusLevel float64 `json:"consensusLevel"`
	Round          int     `json:"round"`
}

// FacilitatorActionPayload backs the "v2-facilitator-action" event.
type FacilitatorActionPayload struct {
	SessionID string `json:"sessionId"`
	Action    string `json:"action"`
	Target    string `json:"target"`
	Reason    string `json:"reason"`
}

// ProgressEvent is the v1 staged router's progress callback argument,
// invoked once per appended message with either a Message or a full
// Session snapshot (the latter on terminal transitions such as
// completion).
type ProgressEvent struct {
	Message *models.Message
	Session *models.Session
}

// ProgressFunc is the v1 staged router's progress callback contract. A nil
// ProgressFunc is valid and means no one is listening.
type ProgressFunc func(ProgressEvent)
