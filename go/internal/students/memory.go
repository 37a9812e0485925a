package students

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/proctor/go/internal/apperr"
	"github.com/mcdev12/proctor/go/internal/models"
)

// MemoryStore keeps students, results and the exam config in process memory.
// It is used for local runs without Postgres and by handler tests.
type MemoryStore struct {
	mu    sync.RWMutex
	clock clockwork.Clock

	nextID   int64
	byPhone  map[string]int64
	students map[int64]models.Student
	results  map[int64]map[string]models.Result
	config   *models.ExamConfig
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		clock:    clock,
		byPhone:  make(map[string]int64),
		students: make(map[int64]models.Student),
		results:  make(map[int64]map[string]models.Result),
	}
}

// FindOrCreateStudent inserts the student or updates the name of the existing one with the same phone
func (m *MemoryStore) FindOrCreateStudent(ctx context.Context, name, phone string) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byPhone[phone]; ok {
		s := m.students[id]
		s.Name = name
		m.students[id] = s
		return &s, nil
	}

	m.nextID++
	s := models.Student{
		ID:        m.nextID,
		Name:      name,
		Phone:     phone,
		CreatedAt: m.clock.Now(),
	}
	m.students[s.ID] = s
	m.byPhone[phone] = s.ID
	return &s, nil
}

// GetStudentByPhone retrieves a student by phone
func (m *MemoryStore) GetStudentByPhone(ctx context.Context, phone string) (*models.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byPhone[phone]
	if !ok {
		return nil, apperr.NotFound("student not found")
	}
	s := m.students[id]
	return &s, nil
}

// RecordResult stores or overwrites the student's result for an exam
func (m *MemoryStore) RecordResult(ctx context.Context, studentID int64, examID string, score, total int, answers json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.students[studentID]; !ok {
		return apperr.NotFound("student not found")
	}
	if m.results[studentID] == nil {
		m.results[studentID] = make(map[string]models.Result)
	}
	m.results[studentID][examID] = models.Result{
		StudentID:   studentID,
		ExamID:      examID,
		Score:       score,
		Total:       total,
		Answers:     append(json.RawMessage(nil), answers...),
		SubmittedAt: m.clock.Now(),
	}
	return nil
}

// GetStudentResults retrieves a student by phone with all recorded results
func (m *MemoryStore) GetStudentResults(ctx context.Context, phone string) (*models.StudentWithResults, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byPhone[phone]
	if !ok {
		return nil, apperr.NotFound("student not found")
	}
	out := m.withResults(m.students[id])
	return &out, nil
}

// ListStudents retrieves every student with results, newest student first
func (m *MemoryStore) ListStudents(ctx context.Context) ([]models.StudentWithResults, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.StudentWithResults, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, m.withResults(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetExamConfig retrieves the stored exam config
func (m *MemoryStore) GetExamConfig(ctx context.Context) (models.ExamConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return models.ExamConfig{}, apperr.NotFound("exam config not found")
	}
	return *m.config, nil
}

// SetExamConfig stores the exam config
func (m *MemoryStore) SetExamConfig(ctx context.Context, cfg models.ExamConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = &cfg
	return nil
}

// withResults must be called with mu held
func (m *MemoryStore) withResults(s models.Student) models.StudentWithResults {
	results := make([]models.Result, 0, len(m.results[s.ID]))
	for _, r := range m.results[s.ID] {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].SubmittedAt.Equal(results[j].SubmittedAt) {
			return results[i].SubmittedAt.Before(results[j].SubmittedAt)
		}
		return results[i].ExamID < results[j].ExamID
	})
	return models.StudentWithResults{Student: s, Results: results}
}
