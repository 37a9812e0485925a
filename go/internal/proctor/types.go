package proctor

import (
	"encoding/json"
	"time"

	"github.com/mcdev12/proctor/go/internal/models"
)

// AnonymousStudentName is used when a submission arrives for an unknown phone without a name
const AnonymousStudentName = "Anonyme"

// LoginRequest represents the request to log a student in
type LoginRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// LoginResponse is returned after a successful login
type LoginResponse struct {
	Success     bool               `json:"success"`
	Student     *models.Student    `json:"student"`
	Participant models.Participant `json:"participant"`
}

// SubmitRequest represents a graded submission from the quiz client
type SubmitRequest struct {
	Phone       string          `json:"phone"`
	ExamID      string          `json:"exam_id"`
	Score       int             `json:"score"`
	Total       int             `json:"total"`
	Answers     json.RawMessage `json:"answers"`
	StudentName string          `json:"student_name,omitempty"`
}

// SubmitResponse acknowledges a stored submission
type SubmitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HeartbeatRequest signals that a student is still on the exam page
type HeartbeatRequest struct {
	Phone  string `json:"phone"`
	ExamID string `json:"exam_id,omitempty"`
}

// ConfigureRequest sets the exam duration and starts the exam
type ConfigureRequest struct {
	DurationMinutes int `json:"durationMinutes"`
}

// StatusResponse is the public view of the exam
type StatusResponse struct {
	Status          models.ExamStatus `json:"status"`
	StartTime       *time.Time        `json:"startTime"`
	DurationMinutes int               `json:"durationMinutes"`
	TimeRemainingMs int64             `json:"timeRemainingMs"`
}

// ParticipantsResponse lists the students currently present
type ParticipantsResponse struct {
	Count        int                  `json:"count"`
	Participants []models.Participant `json:"participants"`
}

// SuccessResponse is the generic acknowledgement body
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorBody is the error payload rendered for every failed request
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorBody
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
