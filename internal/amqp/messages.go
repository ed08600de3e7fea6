package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ChangeMessage announces that a storage key was rewritten. It carries no
// payload; consumers read the current value from the primary store.
type ChangeMessage struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// SnapshotKey asks consumers to copy every key.
const SnapshotKey = "*"

func NewChangeMessage(key string, count int) *ChangeMessage {
	return &ChangeMessage{
		ID:        uuid.NewString(),
		Key:       key,
		Count:     count,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Key == "" {
		return nil, errors.New("change message without key")
	}
	return &msg, nil
}
