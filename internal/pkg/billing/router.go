package billing

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/SubFox/app/models"
)

// HandlerFunc applies one provider event to local state. A nil return means
// the event was processed (including expected soft-skips); an error marks
// the audit record failed and bubbles to the HTTP layer.
type HandlerFunc func(ctx context.Context, ev *Event, record *models.WebhookEvent) error

// EventRouter maps provider event types to handlers. Unregistered types are
// expected and reported as ignored, never as failures.
type EventRouter struct {
	handlers map[string]HandlerFunc
}

// NewEventRouter creates an empty router.
func NewEventRouter() *EventRouter {
	return &EventRouter{handlers: make(map[string]HandlerFunc)}
}

// Register binds a handler to an event type.
func (r *EventRouter) Register(eventType string, handler HandlerFunc) {
	r.handlers[eventType] = handler
}

// Lookup returns the handler for an event type, or nil when the type is
// unhandled.
func (r *EventRouter) Lookup(eventType string) HandlerFunc {
	return r.handlers[eventType]
}

// Dispatch executes the handler for the event. Panics are converted into
// errors with their stack so the ledger can record them before the error
// propagates.
func (r *EventRouter) Dispatch(ctx context.Context, ev *Event, record *models.WebhookEvent) (handled bool, err error) {
	handler := r.Lookup(ev.Type)
	if handler == nil {
		log.Infof("[Webhook] no handler for event type %s, ignoring (event=%s)", ev.Type, record.EventID)
		return false, nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic for %s: %v\n%s", ev.Type, rec, debug.Stack())
		}
	}()
	return true, handler(ctx, ev, record)
}
