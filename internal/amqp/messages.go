package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// HabitToggledMessage announces a completion flip for a habit on a date.
type HabitToggledMessage struct {
	HabitID   uuid.UUID `json:"habit_id"`
	Date      string    `json:"date"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func NewHabitToggledMessage(habitID uuid.UUID, date, status string) *HabitToggledMessage {
	return &HabitToggledMessage{
		HabitID:   habitID,
		Date:      date,
		Status:    status,
		Timestamp: time.Now(),
	}
}

func (m *HabitToggledMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionCreatedMessage announces a newly recorded transaction.
type TransactionCreatedMessage struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	AmountCents   int64     `json:"amount_cents"`
	OccurredAt    string    `json:"occurred_at"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionCreatedMessage(id uuid.UUID, amountCents int64, occurredAt string) *TransactionCreatedMessage {
	return &TransactionCreatedMessage{
		TransactionID: id,
		AmountCents:   amountCents,
		OccurredAt:    occurredAt,
		Timestamp:     time.Now(),
	}
}

func (m *TransactionCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// HabitReminderMessage tells downstream consumers that a habit is due
// today and not yet checked.
type HabitReminderMessage struct {
	HabitID   uuid.UUID `json:"habit_id"`
	Name      string    `json:"name"`
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
}

func NewHabitReminderMessage(habitID uuid.UUID, name, date string) *HabitReminderMessage {
	return &HabitReminderMessage{
		HabitID:   habitID,
		Name:      name,
		Date:      date,
		Timestamp: time.Now(),
	}
}

func (m *HabitReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func HabitReminderMessageFromJSON(data []byte) (*HabitReminderMessage, error) {
	var msg HabitReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
