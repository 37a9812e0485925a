package presence

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/proctor/go/internal/apperr"
	"github.com/mcdev12/proctor/go/internal/models"
)

// DefaultInactivityTimeout is how long a participant may stay silent before eviction
const DefaultInactivityTimeout = 5 * time.Minute

// Registry tracks the participants currently taking part in the exam, keyed by phone.
// Callers only ever receive copies of the records it owns.
type Registry struct {
	mu           sync.Mutex
	clock        clockwork.Clock
	participants map[string]*models.Participant
}

// NewRegistry creates an empty participant registry
func NewRegistry(clock clockwork.Clock) *Registry {
	return &Registry{
		clock:        clock,
		participants: make(map[string]*models.Participant),
	}
}

// Login creates the participant or refreshes an existing one. Status and
// exam history of an existing participant are kept.
func (r *Registry) Login(id, displayName string) (models.Participant, error) {
	id = strings.TrimSpace(id)
	displayName = strings.TrimSpace(displayName)
	if id == "" {
		return models.Participant{}, apperr.Validation("phone is required")
	}
	if displayName == "" {
		return models.Participant{}, apperr.Validation("name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	p, exists := r.participants[id]
	if !exists {
		p = &models.Participant{
			ID:       id,
			JoinedAt: now,
			Status:   models.ParticipantStatusConnected,
		}
		r.participants[id] = p
	}
	p.DisplayName = displayName
	p.LastActivityAt = now

	return copyParticipant(p), nil
}

// Heartbeat marks a known participant active. Unknown ids are ignored.
// It reports whether the participant's status or exam changed.
func (r *Registry) Heartbeat(id, examID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.participants[id]
	if !exists {
		return false
	}

	p.LastActivityAt = r.clock.Now()

	previous := p.Status
	examChanged := examID != "" && (p.CurrentExamID == nil || *p.CurrentExamID != examID)
	if examChanged {
		p.CurrentExamID = &examID
	}
	p.Status = models.ParticipantStatusActive

	return examChanged || p.Status != previous
}

// Touch refreshes the activity time of a known participant without changing its status
func (r *Registry) Touch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.participants[id]
	if !exists {
		return false
	}
	p.LastActivityAt = r.clock.Now()
	return true
}

// RecordSubmission marks a known participant as submitted with its score. Unknown ids are ignored.
func (r *Registry) RecordSubmission(id string, score, total int, examID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.participants[id]
	if !exists {
		return false
	}

	lastScore := fmt.Sprintf("%d/%d", score, total)
	p.Status = models.ParticipantStatusSubmitted
	p.LastScore = &lastScore
	p.CurrentExamID = &examID
	p.LastActivityAt = r.clock.Now()

	return true
}

// EvictStale removes every participant idle for longer than timeout and
// returns the removed ids in snapshot order.
func (r *Registry) EvictStale(now time.Time, timeout time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []*models.Participant
	for id, p := range r.participants {
		if now.Sub(p.LastActivityAt) > timeout {
			evicted = append(evicted, p)
			delete(r.participants, id)
		}
	}

	sortParticipants(evicted)
	ids := make([]string, 0, len(evicted))
	for _, p := range evicted {
		ids = append(ids, p.ID)
	}
	return ids
}

// Get returns a copy of one participant
func (r *Registry) Get(id string) (models.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.participants[id]
	if !exists {
		return models.Participant{}, false
	}
	return copyParticipant(p), true
}

// Snapshot returns copies of all participants ordered by join time, then id
func (r *Registry) Snapshot() []models.Participant {
	r.mu.Lock()
	list := make([]*models.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		list = append(list, p)
	}
	sortParticipants(list)

	out := make([]models.Participant, 0, len(list))
	for _, p := range list {
		out = append(out, copyParticipant(p))
	}
	r.mu.Unlock()

	return out
}

// Len returns the number of tracked participants
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

func sortParticipants(list []*models.Participant) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].JoinedAt.Equal(list[j].JoinedAt) {
			return list[i].JoinedAt.Before(list[j].JoinedAt)
		}
		return list[i].ID < list[j].ID
	})
}

func copyParticipant(p *models.Participant) models.Participant {
	c := *p
	if p.CurrentExamID != nil {
		examID := *p.CurrentExamID
		c.CurrentExamID = &examID
	}
	if p.LastScore != nil {
		score := *p.LastScore
		c.LastScore = &score
	}
	return c
}
