package students

import (
	"context"
	"database/sql"
	"time"

	"github.com/sqlc-dev/pqtype"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the SQL used by Repository, bound to a connection or transaction
type Queries struct {
	db DBTX
}

// New creates Queries bound to db
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to tx
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type studentRow struct {
	ID        int64
	Name      string
	Phone     string
	CreatedAt time.Time
}

type upsertResultParams struct {
	StudentID int64
	ExamID    string
	Score     int32
	Total     int32
	Answers   pqtype.NullRawMessage
}

type studentResultRow struct {
	studentRow
	ExamID      sql.NullString
	Score       sql.NullInt32
	Total       sql.NullInt32
	Answers     pqtype.NullRawMessage
	SubmittedAt sql.NullTime
}

const upsertStudent = `
INSERT INTO students (name, phone)
VALUES ($1, $2)
ON CONFLICT (phone) DO UPDATE SET name = EXCLUDED.name
RETURNING id, name, phone, created_at`

func (q *Queries) UpsertStudent(ctx context.Context, name, phone string) (studentRow, error) {
	var s studentRow
	err := q.db.QueryRowContext(ctx, upsertStudent, name, phone).
		Scan(&s.ID, &s.Name, &s.Phone, &s.CreatedAt)
	return s, err
}

const getStudentByPhone = `
SELECT id, name, phone, created_at FROM students WHERE phone = $1`

func (q *Queries) GetStudentByPhone(ctx context.Context, phone string) (studentRow, error) {
	var s studentRow
	err := q.db.QueryRowContext(ctx, getStudentByPhone, phone).
		Scan(&s.ID, &s.Name, &s.Phone, &s.CreatedAt)
	return s, err
}

const lockStudent = `
SELECT id FROM students WHERE id = $1 FOR UPDATE`

func (q *Queries) LockStudent(ctx context.Context, id int64) error {
	var locked int64
	return q.db.QueryRowContext(ctx, lockStudent, id).Scan(&locked)
}

const upsertResult = `
INSERT INTO results (student_id, exam_id, score, total, answers)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (student_id, exam_id)
DO UPDATE SET score = EXCLUDED.score, total = EXCLUDED.total, answers = EXCLUDED.answers, submitted_at = NOW()`

func (q *Queries) UpsertResult(ctx context.Context, arg upsertResultParams) error {
	_, err := q.db.ExecContext(ctx, upsertResult, arg.StudentID, arg.ExamID, arg.Score, arg.Total, arg.Answers)
	return err
}

const listStudentResults = `
SELECT s.id, s.name, s.phone, s.created_at,
       r.exam_id, r.score, r.total, r.answers, r.submitted_at
FROM students s
LEFT JOIN results r ON r.student_id = s.id
ORDER BY s.created_at DESC, s.id, r.submitted_at`

func (q *Queries) ListStudentResults(ctx context.Context) ([]studentResultRow, error) {
	rows, err := q.db.QueryContext(ctx, listStudentResults)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStudentResults(rows)
}

const listResultsForPhone = `
SELECT s.id, s.name, s.phone, s.created_at,
       r.exam_id, r.score, r.total, r.answers, r.submitted_at
FROM students s
LEFT JOIN results r ON r.student_id = s.id
WHERE s.phone = $1
ORDER BY r.submitted_at`

func (q *Queries) ListResultsForPhone(ctx context.Context, phone string) ([]studentResultRow, error) {
	rows, err := q.db.QueryContext(ctx, listResultsForPhone, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStudentResults(rows)
}

const getExamConfig = `
SELECT duration_minutes FROM exam_state WHERE id = 1`

func (q *Queries) GetExamConfig(ctx context.Context) (int32, error) {
	var minutes int32
	err := q.db.QueryRowContext(ctx, getExamConfig).Scan(&minutes)
	return minutes, err
}

const upsertExamConfig = `
INSERT INTO exam_state (id, duration_minutes, updated_at)
VALUES (1, $1, NOW())
ON CONFLICT (id) DO UPDATE SET duration_minutes = EXCLUDED.duration_minutes, updated_at = NOW()`

func (q *Queries) UpsertExamConfig(ctx context.Context, durationMinutes int32) error {
	_, err := q.db.ExecContext(ctx, upsertExamConfig, durationMinutes)
	return err
}

func scanStudentResults(rows *sql.Rows) ([]studentResultRow, error) {
	var items []studentResultRow
	for rows.Next() {
		var i studentResultRow
		if err := rows.Scan(
			&i.ID, &i.Name, &i.Phone, &i.CreatedAt,
			&i.ExamID, &i.Score, &i.Total, &i.Answers, &i.SubmittedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
