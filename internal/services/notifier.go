package services

import (
	"context"

	"taskboard/internal/core"
	"taskboard/internal/log"
	"taskboard/internal/ports"
)

// Invalidator drops cached statistics.
type Invalidator interface {
	Invalidate()
}

// notifier runs the side effects of a successful write. Both parts are
// optional and neither can fail the write.
type notifier struct {
	events ports.EventPublisher
	stats  Invalidator
}

func (n notifier) changed(ctx context.Context, e core.TodoEvent) {
	if n.stats != nil {
		n.stats.Invalidate()
	}
	if n.events == nil {
		return
	}
	if err := n.events.PublishTodoEvent(ctx, e); err != nil {
		fields := log.NewFields().
			WithOperation(log.OpPublish).
			WithEvent(string(e.Type)).
			WithTodo(e.TodoID).
			WithCategory(e.CategoryID).
			WithError(err)
		log.FromContext(ctx).WithComponent(log.ComponentAMQP).
			ErrorContext(ctx, "Failed to publish change event", fields.ToSlice()...)
	}
}
