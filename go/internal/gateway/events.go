package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/proctor/go/internal/models"
)

// Event is the envelope of every message pushed to dashboard connections.
// Each event is a full snapshot; a client only needs the latest one of each type.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType represents the type of pushed event
type EventType string

const (
	EventTypeParticipants EventType = "participants"
	EventTypeTimer        EventType = "timer"
)

// ParticipantsPayload carries the full participant list
type ParticipantsPayload struct {
	Count        int                  `json:"count"`
	Participants []models.Participant `json:"participants"`
}

// NewParticipantsEvent builds a participants snapshot event
func NewParticipantsEvent(at time.Time, participants []models.Participant) (*Event, error) {
	if participants == nil {
		participants = []models.Participant{}
	}
	return newEvent(EventTypeParticipants, at, ParticipantsPayload{
		Count:        len(participants),
		Participants: participants,
	})
}

// NewTimerEvent builds a countdown snapshot event
func NewTimerEvent(at time.Time, snap models.TimerSnapshot) (*Event, error) {
	return newEvent(EventTypeTimer, at, snap)
}

func newEvent(eventType EventType, at time.Time, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Event{
		Type:      eventType,
		Timestamp: at.UTC(),
		Data:      data,
	}, nil
}

// ParseEventPayload parses event data into the appropriate payload struct
func ParseEventPayload(event *Event) (interface{}, error) {
	switch event.Type {
	case EventTypeParticipants:
		var payload ParticipantsPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeTimer:
		var payload models.TimerSnapshot
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, fmt.Errorf("unknown event type: %s", event.Type)
	}
}
