package models

import (
	"time"
)

// ParticipantStatus defines the progress of a participant through the exam.
type ParticipantStatus string

const (
	ParticipantStatusConnected ParticipantStatus = "connected"
	ParticipantStatusActive    ParticipantStatus = "active"
	ParticipantStatusSubmitted ParticipantStatus = "submitted"
)

// Participant represents a logged-in student tracked for live presence.
type Participant struct {
	ID             string            `json:"id"` // phone number
	DisplayName    string            `json:"displayName"`
	JoinedAt       time.Time         `json:"joinedAt"`
	LastActivityAt time.Time         `json:"lastActivityAt"`
	Status         ParticipantStatus `json:"status"`
	CurrentExamID  *string           `json:"currentExamId,omitempty"`
	LastScore      *string           `json:"lastScore,omitempty"`
}
