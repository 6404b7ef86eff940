// Package command contains write operations (CQRS - Commands).
// Commands change companions and announce the change as domain events.
package command

import (
	"context"
	"errors"
	"time"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
	"github.com/alem-hub/alem-companion/pkg/logger"
)

var errOwnerRequired = errors.New("owner_id is required")

// Deps holds the collaborators shared by every command handler.
type Deps struct {
	Pets        companion.Repository
	Accessories companion.AccessoryRepository

	// Cache is optional. Handlers invalidate it after writes.
	Cache companion.Cache

	// Publisher is optional. Publishing is best-effort.
	Publisher shared.EventPublisher

	Logger *logger.Logger
	Now    func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

func (d Deps) invalidate(ctx context.Context, ownerID string) {
	if d.Cache == nil {
		return
	}
	if err := d.Cache.InvalidatePet(ctx, ownerID); err != nil {
		d.Logger.Warn("cache invalidation failed", logger.OwnerID(ownerID), logger.Err(err))
	}
}

// publish sends events without failing the command.
func (d Deps) publish(events ...shared.Event) {
	if d.Publisher == nil {
		return
	}
	for _, event := range events {
		if err := d.Publisher.Publish(event); err != nil {
			d.Logger.Warn("event publish failed",
				logger.String("event_type", string(event.EventType())),
				logger.Err(err),
			)
		}
	}
}
