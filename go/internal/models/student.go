package models

import (
	"encoding/json"
	"time"
)

// Student represents the durable record of a student
type Student struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// Result represents a graded submission for one exam
type Result struct {
	StudentID   int64           `json:"student_id"`
	ExamID      string          `json:"exam_id"`
	Score       int             `json:"score"`
	Total       int             `json:"total"`
	Answers     json.RawMessage `json:"answers,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// StudentWithResults is a student together with every result recorded for them
type StudentWithResults struct {
	Student
	Results []Result `json:"results"`
}
