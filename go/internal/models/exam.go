package models

import (
	"time"
)

// ExamStatus defines the lifecycle status of the exam.
type ExamStatus string

const (
	ExamStatusWaiting  ExamStatus = "waiting"
	ExamStatusRunning  ExamStatus = "running"
	ExamStatusFinished ExamStatus = "finished"
)

// ExamConfig holds the configurable settings of the exam.
type ExamConfig struct {
	DurationMinutes int `json:"durationMinutes" yaml:"duration_minutes"`
}

// Duration returns the configured exam length.
func (c ExamConfig) Duration() time.Duration {
	return time.Duration(c.DurationMinutes) * time.Minute
}

// TimerSnapshot is a point-in-time view of the exam countdown.
type TimerSnapshot struct {
	Status      ExamStatus `json:"status"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	RemainingMs int64      `json:"remainingMs"`
	TotalMs     int64      `json:"totalMs"`
	IsRunning   bool       `json:"isRunning"`
}
