package core

// EventType names a change that can affect the statistics.
type EventType string

const (
	EventTodoCreated     EventType = "todo.created"
	EventTodoUpdated     EventType = "todo.updated"
	EventTodoToggled     EventType = "todo.toggled"
	EventTodoDeleted     EventType = "todo.deleted"
	EventCategoryCreated EventType = "category.created"
	EventCategoryUpdated EventType = "category.updated"
	EventCategoryDeleted EventType = "category.deleted"
)

// TodoEvent is emitted after every successful write. Exactly one of TodoID
// and CategoryID is set, depending on the kind of entity that changed.
type TodoEvent struct {
	Type       EventType
	TodoID     int64
	CategoryID int64
}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventTodoCreated, EventTodoUpdated, EventTodoToggled, EventTodoDeleted,
		EventCategoryCreated, EventCategoryUpdated, EventCategoryDeleted:
		return true
	}
	return false
}
