package students

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/mcdev12/proctor/go/internal/apperr"
	"github.com/mcdev12/proctor/go/internal/models"
	"github.com/mcdev12/proctor/go/internal/sqlutil"
)

// Postgres error codes
const (
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// Repository implements durable student, result and exam config storage on Postgres
type Repository struct {
	db      *sql.DB
	queries *Queries
}

// NewRepository creates a new students repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db:      db,
		queries: New(db),
	}
}

// FindOrCreateStudent inserts the student or updates the name of the existing one with the same phone
func (r *Repository) FindOrCreateStudent(ctx context.Context, name, phone string) (*models.Student, error) {
	row, err := r.queries.UpsertStudent(ctx, name, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert student: %w", translateError(err, "student not found"))
	}
	return rowToStudent(row), nil
}

// GetStudentByPhone retrieves a student by phone
func (r *Repository) GetStudentByPhone(ctx context.Context, phone string) (*models.Student, error) {
	row, err := r.queries.GetStudentByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to get student by phone: %w", translateError(err, "student not found"))
	}
	return rowToStudent(row), nil
}

// RecordResult stores or overwrites the student's result for an exam
func (r *Repository) RecordResult(ctx context.Context, studentID int64, examID string, score, total int, answers json.RawMessage) error {
	err := sqlutil.Run(ctx, r.db, r.queries.WithTx, func(q *Queries) error {
		if err := q.LockStudent(ctx, studentID); err != nil {
			return err
		}
		return q.UpsertResult(ctx, upsertResultParams{
			StudentID: studentID,
			ExamID:    examID,
			Score:     int32(score),
			Total:     int32(total),
			Answers:   sqlutil.ToNullRawMessage(answers),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to record result: %w", translateError(err, "student not found"))
	}
	return nil
}

// GetStudentResults retrieves a student by phone with all recorded results
func (r *Repository) GetStudentResults(ctx context.Context, phone string) (*models.StudentWithResults, error) {
	rows, err := r.queries.ListResultsForPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to list student results: %w", translateError(err, "student not found"))
	}
	grouped := groupStudentResults(rows)
	if len(grouped) == 0 {
		return nil, apperr.NotFound("student not found")
	}
	return &grouped[0], nil
}

// ListStudents retrieves every student with results, newest student first
func (r *Repository) ListStudents(ctx context.Context) ([]models.StudentWithResults, error) {
	rows, err := r.queries.ListStudentResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", translateError(err, "students not found"))
	}
	return groupStudentResults(rows), nil
}

// GetExamConfig retrieves the stored exam config
func (r *Repository) GetExamConfig(ctx context.Context) (models.ExamConfig, error) {
	minutes, err := r.queries.GetExamConfig(ctx)
	if err != nil {
		return models.ExamConfig{}, fmt.Errorf("failed to get exam config: %w", translateError(err, "exam config not found"))
	}
	return models.ExamConfig{DurationMinutes: int(minutes)}, nil
}

// SetExamConfig stores the exam config
func (r *Repository) SetExamConfig(ctx context.Context, cfg models.ExamConfig) error {
	if err := r.queries.UpsertExamConfig(ctx, int32(cfg.DurationMinutes)); err != nil {
		return fmt.Errorf("failed to set exam config: %w", translateError(err, "exam config not found"))
	}
	return nil
}

// translateError maps database errors onto the application error kinds
func translateError(err error, notFound string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(notFound)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pgForeignKeyViolation:
			return apperr.NotFound(notFound)
		case pgCheckViolation:
			return &apperr.Error{Kind: apperr.KindValidation, Message: "value rejected by store", Err: err}
		}
	}

	return apperr.Transient("store unavailable", err)
}

func rowToStudent(row studentRow) *models.Student {
	return &models.Student{
		ID:        row.ID,
		Name:      row.Name,
		Phone:     row.Phone,
		CreatedAt: row.CreatedAt,
	}
}

// groupStudentResults folds joined rows into one entry per student, keeping row order
func groupStudentResults(rows []studentResultRow) []models.StudentWithResults {
	var out []models.StudentWithResults
	index := make(map[int64]int)

	for _, row := range rows {
		i, seen := index[row.ID]
		if !seen {
			out = append(out, models.StudentWithResults{
				Student: *rowToStudent(row.studentRow),
				Results: []models.Result{},
			})
			i = len(out) - 1
			index[row.ID] = i
		}

		examID := sqlutil.FromSqlStringPtr(row.ExamID)
		if examID == nil {
			continue
		}
		out[i].Results = append(out[i].Results, models.Result{
			StudentID:   row.ID,
			ExamID:      *examID,
			Score:       sqlutil.FromSqlInt32(row.Score, 0),
			Total:       sqlutil.FromSqlInt32(row.Total, 0),
			Answers:     sqlutil.FromNullRawMessage(row.Answers),
			SubmittedAt: sqlutil.FromSqlTime(row.SubmittedAt, time.Time{}),
		})
	}

	return out
}
