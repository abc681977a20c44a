package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Operation tells the consumer what to do with the referenced record.
type Operation string

const (
	OpSync   Operation = "sync"
	OpDelete Operation = "delete"
)

// RecordSyncMessage is a lightweight pointer to a stored record.
// The worker fetches the current document from the store, so a stale message
// only ever results in the latest state being mirrored.
type RecordSyncMessage struct {
	MessageID  string    `json:"message_id"`
	Operation  Operation `json:"operation"`
	Collection string    `json:"collection"`
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewRecordSyncMessage creates a message with a fresh id.
func NewRecordSyncMessage(op Operation, collection string, id int64, userID string) *RecordSyncMessage {
	return &RecordSyncMessage{
		MessageID:  uuid.NewString(),
		Operation:  op,
		Collection: collection,
		ID:         id,
		UserID:     userID,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordSyncMessageFromJSON decodes and validates a message.
func RecordSyncMessageFromJSON(data []byte) (*RecordSyncMessage, error) {
	var msg RecordSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Collection == "" || msg.ID <= 0 {
		return nil, fmt.Errorf("message %q missing collection or id", msg.MessageID)
	}
	switch msg.Operation {
	case OpSync, OpDelete:
	case "":
		msg.Operation = OpSync
	default:
		return nil, fmt.Errorf("unknown operation %q", msg.Operation)
	}
	return &msg, nil
}
