// Package events fans reservation lifecycle events out to realtime
// transports. Every publisher here is best-effort.
package events

import (
	"context"
	"errors"
	"fmt"

	"parkease/internal/domain"
)

// Publisher matches service.EventPublisher.
type Publisher interface {
	Publish(ctx context.Context, event domain.ReservationEvent) error
}

// Noop drops every event. It stands in where no transport is configured.
type Noop struct{}

func (Noop) Publish(context.Context, domain.ReservationEvent) error { return nil }

// Multi delivers each event to all of its publishers and joins their errors.
// One failing transport does not stop delivery to the others.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event domain.ReservationEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
