package amqp

import (
	"encoding/json"
	"time"

	"github.com/tankkwon/delivery-app/internal/core"
)

// Event types published to the exchange.
const (
	EventRecordCreated = "record.created"
	EventRecordDeleted = "record.deleted"
	EventGoalUpdated   = "goal.updated"
)

// RecordEvent describes one change to the records or the monthly goal.
// Only the fields relevant to Type are set.
type RecordEvent struct {
	Type      string    `json:"type"`
	RecordID  int64     `json:"record_id,omitempty"`
	Date      string    `json:"date,omitempty"`
	Platform  string    `json:"platform,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	Goal      *int64    `json:"goal,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecordCreatedEvent creates an event for a newly stored record
func NewRecordCreatedEvent(rec core.Record) *RecordEvent {
	return &RecordEvent{
		Type:      EventRecordCreated,
		RecordID:  rec.ID,
		Date:      rec.Date,
		Platform:  string(rec.Platform),
		Amount:    rec.Amount,
		Timestamp: time.Now(),
	}
}

// NewRecordDeletedEvent creates an event for a deleted record id
func NewRecordDeletedEvent(id int64) *RecordEvent {
	return &RecordEvent{
		Type:      EventRecordDeleted,
		RecordID:  id,
		Timestamp: time.Now(),
	}
}

// NewGoalUpdatedEvent creates an event for a goal change; 0 means cleared
func NewGoalUpdatedEvent(goal int64) *RecordEvent {
	return &RecordEvent{
		Type:      EventGoalUpdated,
		Goal:      &goal,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordEventFromJSON creates a message from JSON bytes
func RecordEventFromJSON(data []byte) (*RecordEvent, error) {
	var msg RecordEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
