package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/core"
)

// TodoEventMessage is the wire form of a core.TodoEvent. It carries ids only;
// consumers read current state from the store.
type TodoEventMessage struct {
	EventID    string         `json:"event_id"`
	Type       core.EventType `json:"type"`
	TodoID     int64          `json:"todo_id,omitempty"`
	CategoryID int64          `json:"category_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewTodoEventMessage wraps e with a fresh event id and the current time.
func NewTodoEventMessage(e core.TodoEvent) *TodoEventMessage {
	return &TodoEventMessage{
		EventID:    uuid.NewString(),
		Type:       e.Type,
		TodoID:     e.TodoID,
		CategoryID: e.CategoryID,
		Timestamp:  time.Now().UTC(),
	}
}

// Event converts the message back into the domain event.
func (m *TodoEventMessage) Event() core.TodoEvent {
	return core.TodoEvent{Type: m.Type, TodoID: m.TodoID, CategoryID: m.CategoryID}
}

func (m *TodoEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TodoEventMessageFromJSON decodes and checks a message body.
func TodoEventMessageFromJSON(data []byte) (*TodoEventMessage, error) {
	var msg TodoEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if _, err := uuid.Parse(msg.EventID); err != nil {
		return nil, fmt.Errorf("invalid event id: %w", err)
	}
	return &msg, nil
}
