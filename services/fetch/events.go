package fetch

import (
	"context"
	"fmt"
	"strings"
)

// DefaultEventSubject prefixes the subjects outcomes are published on.
const DefaultEventSubject = "hubfetch.outcomes"

// Publisher is satisfied by *bus.Bus.
type Publisher interface {
	Publish(ctx context.Context, subj string, v any, msgID string) error
}

// EventPublisher publishes each outcome on <subject>.<status>.
type EventPublisher struct {
	bus     Publisher
	subject string
}

func NewEventPublisher(bus Publisher, subject string) *EventPublisher {
	subject = strings.TrimSuffix(strings.TrimSpace(subject), ".")
	if subject == "" {
		subject = DefaultEventSubject
	}
	return &EventPublisher{bus: bus, subject: subject}
}

func (p *EventPublisher) Observe(ctx context.Context, o Outcome) error {
	subj := p.subject + "." + string(o.Status)
	msgID := o.RunID.String() + "/" + o.Resource + "/" + o.Filename
	if err := p.bus.Publish(ctx, subj, o, msgID); err != nil {
		return fmt.Errorf("publish %s: %w", subj, err)
	}
	return nil
}
