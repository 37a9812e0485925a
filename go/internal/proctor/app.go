package proctor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/proctor/go/internal/apperr"
	"github.com/mcdev12/proctor/go/internal/eventbus"
	"github.com/mcdev12/proctor/go/internal/exam"
	"github.com/mcdev12/proctor/go/internal/models"
	"github.com/mcdev12/proctor/go/internal/presence"
	"github.com/rs/zerolog/log"
)

const publishTimeout = 2 * time.Second

// Store defines what the app layer needs from durable storage
type Store interface {
	FindOrCreateStudent(ctx context.Context, name, phone string) (*models.Student, error)
	GetStudentByPhone(ctx context.Context, phone string) (*models.Student, error)
	RecordResult(ctx context.Context, studentID int64, examID string, score, total int, answers json.RawMessage) error
	GetStudentResults(ctx context.Context, phone string) (*models.StudentWithResults, error)
	ListStudents(ctx context.Context) ([]models.StudentWithResults, error)
	GetExamConfig(ctx context.Context) (models.ExamConfig, error)
	SetExamConfig(ctx context.Context, cfg models.ExamConfig) error
}

// Notifier pushes fresh snapshots to live dashboards
type Notifier interface {
	NotifyParticipants()
	NotifyTimer()
}

// App handles exam administration business logic
type App struct {
	store    Store
	machine  *exam.Machine
	registry *presence.Registry
	notifier Notifier
	bus      eventbus.Publisher
	clock    clockwork.Clock
}

// NewApp creates a new proctor App
func NewApp(store Store, machine *exam.Machine, registry *presence.Registry, notifier Notifier, bus eventbus.Publisher, clock clockwork.Clock) *App {
	if bus == nil {
		bus = eventbus.NewLogPublisher()
	}
	return &App{
		store:    store,
		machine:  machine,
		registry: registry,
		notifier: notifier,
		bus:      bus,
		clock:    clock,
	}
}

// RestoreConfig seeds the exam machine with the stored config
func (a *App) RestoreConfig(ctx context.Context) error {
	cfg, err := a.store.GetExamConfig(ctx)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil
		}
		return fmt.Errorf("failed to restore exam config: %w", err)
	}
	a.machine.Restore(cfg)
	log.Info().Int("duration_minutes", cfg.DurationMinutes).Msg("restored exam config")
	return nil
}

// Status returns the public view of the exam
func (a *App) Status() StatusResponse {
	state := a.machine.State()
	snap := state.SnapshotAt(a.clock.Now())
	return StatusResponse{
		Status:          snap.Status,
		StartTime:       state.StartTime,
		DurationMinutes: state.Config.DurationMinutes,
		TimeRemainingMs: snap.RemainingMs,
	}
}

// Login records the student durably and marks them present
func (a *App) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	name := strings.TrimSpace(req.Name)
	phone := strings.TrimSpace(req.Phone)
	if name == "" || phone == "" {
		return nil, apperr.Validation("name and phone are required")
	}

	student, err := a.store.FindOrCreateStudent(ctx, name, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create student: %w", err)
	}

	participant, err := a.registry.Login(phone, name)
	if err != nil {
		return nil, fmt.Errorf("failed to register participant: %w", err)
	}
	a.notifier.NotifyParticipants()

	log.Info().
		Int64("student_id", student.ID).
		Str("phone", phone).
		Msg("student logged in")

	return &LoginResponse{
		Success:     true,
		Student:     student,
		Participant: participant,
	}, nil
}

// Submit stores a graded result and marks the participant as submitted
func (a *App) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	phone := strings.TrimSpace(req.Phone)
	examID := strings.TrimSpace(req.ExamID)
	if phone == "" || examID == "" {
		return nil, apperr.Validation("phone and exam_id are required")
	}
	if req.Score < 0 || req.Total < 0 {
		return nil, apperr.Validation("score and total must not be negative")
	}
	if req.Score > math.MaxInt32 || req.Total > math.MaxInt32 {
		return nil, apperr.Validation("score and total are too large")
	}

	student, err := a.studentForSubmission(ctx, phone, req.StudentName)
	if err != nil {
		return nil, err
	}

	if err := a.store.RecordResult(ctx, student.ID, examID, req.Score, req.Total, req.Answers); err != nil {
		return nil, fmt.Errorf("failed to record result: %w", err)
	}

	if a.registry.RecordSubmission(phone, req.Score, req.Total, examID) {
		a.notifier.NotifyParticipants()
	}

	log.Info().
		Int64("student_id", student.ID).
		Str("exam_id", examID).
		Int("score", req.Score).
		Int("total", req.Total).
		Msg("result recorded")

	a.publish(ctx, eventbus.EventTypeResultSubmitted, eventbus.ResultSubmittedPayload{
		StudentID: student.ID,
		Phone:     phone,
		ExamID:    examID,
		Score:     req.Score,
		Total:     req.Total,
	})

	return &SubmitResponse{
		Success: true,
		Message: fmt.Sprintf("results for %s recorded", examID),
	}, nil
}

// studentForSubmission finds the student by phone, creating one if the login never reached the store
func (a *App) studentForSubmission(ctx context.Context, phone, name string) (*models.Student, error) {
	student, err := a.store.GetStudentByPhone(ctx, phone)
	if err == nil {
		return student, nil
	}
	if apperr.KindOf(err) != apperr.KindNotFound {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = AnonymousStudentName
	}
	log.Warn().Str("phone", phone).Msg("student not found on submit, creating")

	student, err = a.store.FindOrCreateStudent(ctx, name, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to create student: %w", err)
	}
	return student, nil
}

// Heartbeat refreshes a participant's presence. It never fails.
func (a *App) Heartbeat(ctx context.Context, req HeartbeatRequest) {
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return
	}

	var changed bool
	if a.machine.IsRunning() {
		changed = a.registry.Heartbeat(phone, strings.TrimSpace(req.ExamID))
	} else {
		changed = a.registry.Touch(phone)
	}
	if changed {
		a.notifier.NotifyParticipants()
	}
}

// Configure sets a new duration and starts the exam
func (a *App) Configure(ctx context.Context, req ConfigureRequest) (models.TimerSnapshot, error) {
	if req.DurationMinutes < 1 {
		return models.TimerSnapshot{}, exam.ErrInvalidDuration
	}

	cfg := models.ExamConfig{DurationMinutes: req.DurationMinutes}
	if err := a.store.SetExamConfig(ctx, cfg); err != nil {
		return models.TimerSnapshot{}, fmt.Errorf("failed to save exam config: %w", err)
	}

	snap, err := a.machine.Configure(req.DurationMinutes)
	if err != nil {
		return models.TimerSnapshot{}, err
	}
	a.notifier.NotifyTimer()

	log.Info().Int("duration_minutes", req.DurationMinutes).Msg("exam configured and started")
	a.publishStarted(ctx, snap, cfg)
	return snap, nil
}

// Start begins the exam with the current config
func (a *App) Start(ctx context.Context) models.TimerSnapshot {
	snap := a.machine.Start()
	a.notifier.NotifyTimer()

	log.Info().Msg("exam started")
	a.publishStarted(ctx, snap, a.machine.Config())
	return snap
}

// Stop ends the exam
func (a *App) Stop(ctx context.Context) models.TimerSnapshot {
	snap := a.machine.Stop()
	a.notifier.NotifyTimer()

	log.Info().Msg("exam stopped")
	a.publish(ctx, eventbus.EventTypeExamStopped, eventbus.ExamStoppedPayload{StoppedAt: a.clock.Now().UTC()})
	return snap
}

// Reset returns the exam to waiting
func (a *App) Reset(ctx context.Context) models.TimerSnapshot {
	snap := a.machine.Reset()
	a.notifier.NotifyTimer()

	log.Info().Msg("exam reset")
	a.publish(ctx, eventbus.EventTypeExamReset, eventbus.ExamResetPayload{ResetAt: a.clock.Now().UTC()})
	return snap
}

// ListStudents returns every known student with results
func (a *App) ListStudents(ctx context.Context) ([]models.StudentWithResults, error) {
	list, err := a.store.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return list, nil
}

// GetStudentResults returns one student's stored results
func (a *App) GetStudentResults(ctx context.Context, phone string) (*models.StudentWithResults, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, apperr.Validation("phone is required")
	}
	results, err := a.store.GetStudentResults(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to get student results: %w", err)
	}
	return results, nil
}

// Participants returns the current presence list
func (a *App) Participants() ParticipantsResponse {
	list := a.registry.Snapshot()
	return ParticipantsResponse{Count: len(list), Participants: list}
}

// HandleEviction is called by the presence janitor after a sweep removed participants
func (a *App) HandleEviction(ctx context.Context, ids []string) {
	a.notifier.NotifyParticipants()
	a.publish(ctx, eventbus.EventTypeParticipantsEvicted, eventbus.ParticipantsEvictedPayload{ParticipantIDs: ids})
}

func (a *App) publishStarted(ctx context.Context, snap models.TimerSnapshot, cfg models.ExamConfig) {
	payload := eventbus.ExamStartedPayload{DurationMinutes: cfg.DurationMinutes}
	if snap.StartTime != nil {
		payload.StartTime = snap.StartTime.UTC()
	}
	a.publish(ctx, eventbus.EventTypeExamStarted, payload)
}

// publish is best-effort: failures are logged and never reach the caller
func (a *App) publish(ctx context.Context, eventType eventbus.EventType, payload interface{}) {
	event, err := eventbus.NewEvent(eventType, a.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build domain event")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := a.bus.Publish(ctx, event); err != nil {
		log.Error().Err(err).
			Str("event_id", event.ID.String()).
			Str("event_type", string(eventType)).
			Msg("failed to publish domain event")
	}
}
