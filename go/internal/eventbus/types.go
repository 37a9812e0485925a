package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event
type EventType string

const (
	EventTypeExamStarted         EventType = "ExamStarted"
	EventTypeExamStopped         EventType = "ExamStopped"
	EventTypeExamReset           EventType = "ExamReset"
	EventTypeResultSubmitted     EventType = "ResultSubmitted"
	EventTypeParticipantsEvicted EventType = "ParticipantsEvicted"
)

// Event is the envelope published for every domain event
type Event struct {
	ID         uuid.UUID       `json:"eventId"`
	Type       EventType       `json:"eventType"`
	OccurredAt time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher delivers domain events to an external sink
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// ExamStartedPayload is published when the countdown starts
type ExamStartedPayload struct {
	StartTime       time.Time `json:"startTime"`
	DurationMinutes int       `json:"durationMinutes"`
}

// ExamStoppedPayload is published when the admin stops the exam
type ExamStoppedPayload struct {
	StoppedAt time.Time `json:"stoppedAt"`
}

// ExamResetPayload is published when the admin resets the exam
type ExamResetPayload struct {
	ResetAt time.Time `json:"resetAt"`
}

// ResultSubmittedPayload is published after a result is stored
type ResultSubmittedPayload struct {
	StudentID int64  `json:"studentId"`
	Phone     string `json:"phone"`
	ExamID    string `json:"examId"`
	Score     int    `json:"score"`
	Total     int    `json:"total"`
}

// ParticipantsEvictedPayload is published after the janitor removes inactive participants
type ParticipantsEvictedPayload struct {
	ParticipantIDs []string `json:"participantIds"`
}

// NewEvent builds an event with a fresh id
func NewEvent(eventType EventType, occurredAt time.Time, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: occurredAt.UTC(),
		Payload:    data,
	}, nil
}
