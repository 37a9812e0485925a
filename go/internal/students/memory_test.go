package students

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/proctor/go/internal/apperr"
	"github.com/mcdev12/proctor/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryStore() (*MemoryStore, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	return NewMemoryStore(clock), clock
}

func TestMemoryStore_FindOrCreateStudent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestMemoryStore()

	first, err := store.FindOrCreateStudent(ctx, "Amina", "0600000001")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)

	again, err := store.FindOrCreateStudent(ctx, "Amina B.", "0600000001")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Amina B.", again.Name)

	other, err := store.FindOrCreateStudent(ctx, "Karim", "0600000002")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestMemoryStore_GetStudentByPhone_NotFound(t *testing.T) {
	store, _ := newTestMemoryStore()

	_, err := store.GetStudentByPhone(context.Background(), "0699999999")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestMemoryStore_RecordResult_Overwrites(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestMemoryStore()

	s, err := store.FindOrCreateStudent(ctx, "Amina", "0600000001")
	require.NoError(t, err)

	require.NoError(t, store.RecordResult(ctx, s.ID, "math-1", 10, 20, json.RawMessage(`{"q1":"a"}`)))
	clock.Advance(time.Minute)
	require.NoError(t, store.RecordResult(ctx, s.ID, "math-1", 15, 20, json.RawMessage(`{"q1":"b"}`)))
	clock.Advance(time.Minute)
	require.NoError(t, store.RecordResult(ctx, s.ID, "physics-1", 8, 10, nil))

	got, err := store.GetStudentResults(ctx, "0600000001")
	require.NoError(t, err)
	require.Len(t, got.Results, 2)

	assert.Equal(t, "math-1", got.Results[0].ExamID)
	assert.Equal(t, 15, got.Results[0].Score)
	assert.JSONEq(t, `{"q1":"b"}`, string(got.Results[0].Answers))
	assert.Equal(t, "physics-1", got.Results[1].ExamID)
}

func TestMemoryStore_RecordResult_UnknownStudent(t *testing.T) {
	store, _ := newTestMemoryStore()

	err := store.RecordResult(context.Background(), 42, "math-1", 1, 2, nil)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestMemoryStore_ListStudents_NewestFirst(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestMemoryStore()

	_, err := store.FindOrCreateStudent(ctx, "Amina", "0600000001")
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = store.FindOrCreateStudent(ctx, "Karim", "0600000002")
	require.NoError(t, err)

	list, err := store.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Karim", list[0].Name)
	assert.Equal(t, "Amina", list[1].Name)
	assert.NotNil(t, list[0].Results)
}

func TestMemoryStore_ExamConfig(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestMemoryStore()

	_, err := store.GetExamConfig(ctx)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	require.NoError(t, store.SetExamConfig(ctx, models.ExamConfig{DurationMinutes: 45}))
	cfg, err := store.GetExamConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.DurationMinutes)
}
