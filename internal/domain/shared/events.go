// Package shared contains common domain types, errors and events
// that are used across the companion packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// Companion lifecycle events
	EventCompanionCreated EventType = "companion.created"
	EventCompanionRenamed EventType = "companion.renamed"
	EventCompanionRemoved EventType = "companion.removed"

	// Progression events
	EventLevelUp           EventType = "companion.level_up"
	EventAccessoryUnlocked EventType = "companion.accessory_unlocked"

	// Accessory events
	EventAccessoryEquipped   EventType = "companion.accessory_equipped"
	EventAccessoryUnequipped EventType = "companion.accessory_unequipped"

	// Behavior events (client side)
	EventStateChanged EventType = "companion.state_changed"

	// System events
	EventSyncCompleted EventType = "system.sync_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Companion Events
// ═══════════════════════════════════════════════════════════════════════════

// CompanionCreatedEvent is emitted when an owner adopts a companion.
type CompanionCreatedEvent struct {
	BaseEvent
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	Species string `json:"species"`
}

// Payload implements Event interface.
func (e CompanionCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"owner_id": e.OwnerID,
		"name":     e.Name,
		"species":  e.Species,
	}
}

// NewCompanionCreatedEvent creates a new CompanionCreatedEvent.
func NewCompanionCreatedEvent(petID, ownerID, name, species string, at time.Time) CompanionCreatedEvent {
	return CompanionCreatedEvent{
		BaseEvent: NewBaseEvent(EventCompanionCreated, petID, at),
		OwnerID:   ownerID,
		Name:      name,
		Species:   species,
	}
}

// CompanionRenamedEvent is emitted when the owner changes the companion's name.
type CompanionRenamedEvent struct {
	BaseEvent
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

// Payload implements Event interface.
func (e CompanionRenamedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_name": e.OldName,
		"new_name": e.NewName,
	}
}

// NewCompanionRenamedEvent creates a new CompanionRenamedEvent.
func NewCompanionRenamedEvent(petID, oldName, newName string, at time.Time) CompanionRenamedEvent {
	return CompanionRenamedEvent{
		BaseEvent: NewBaseEvent(EventCompanionRenamed, petID, at),
		OldName:   oldName,
		NewName:   newName,
	}
}

// CompanionRemovedEvent is emitted when the owner discards the companion.
type CompanionRemovedEvent struct {
	BaseEvent
	OwnerID string `json:"owner_id"`
}

// Payload implements Event interface.
func (e CompanionRemovedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"owner_id": e.OwnerID}
}

// NewCompanionRemovedEvent creates a new CompanionRemovedEvent.
func NewCompanionRemovedEvent(petID, ownerID string, at time.Time) CompanionRemovedEvent {
	return CompanionRemovedEvent{
		BaseEvent: NewBaseEvent(EventCompanionRemoved, petID, at),
		OwnerID:   ownerID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progression Events
// ═══════════════════════════════════════════════════════════════════════════

// LevelUpEvent is emitted once per reconciliation that raised the level.
type LevelUpEvent struct {
	BaseEvent
	OldLevel int `json:"old_level"`
	NewLevel int `json:"new_level"`
	LevelUps int `json:"level_ups"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"level_ups": e.LevelUps,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(petID string, oldLevel, newLevel int, at time.Time) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, petID, at),
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		LevelUps:  newLevel - oldLevel,
	}
}

// AccessoryUnlockedEvent is emitted once per accessory that became eligible.
type AccessoryUnlockedEvent struct {
	BaseEvent
	AccessoryID   string `json:"accessory_id"`
	AccessoryName string `json:"accessory_name"`
	LevelRequired int    `json:"level_required"`
}

// Payload implements Event interface.
func (e AccessoryUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"accessory_id":   e.AccessoryID,
		"accessory_name": e.AccessoryName,
		"level_required": e.LevelRequired,
	}
}

// NewAccessoryUnlockedEvent creates a new AccessoryUnlockedEvent.
func NewAccessoryUnlockedEvent(petID, accessoryID, name string, levelRequired int, at time.Time) AccessoryUnlockedEvent {
	return AccessoryUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventAccessoryUnlocked, petID, at),
		AccessoryID:   accessoryID,
		AccessoryName: name,
		LevelRequired: levelRequired,
	}
}

// AccessoryChangedEvent is emitted on a successful equip or unequip.
type AccessoryChangedEvent struct {
	BaseEvent
	AccessoryID string `json:"accessory_id"`
	Slot        string `json:"slot"`
}

// Payload implements Event interface.
func (e AccessoryChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"accessory_id": e.AccessoryID,
		"slot":         e.Slot,
	}
}

// NewAccessoryChangedEvent creates an equip (equipped=true) or unequip event.
func NewAccessoryChangedEvent(petID, accessoryID, slot string, equipped bool, at time.Time) AccessoryChangedEvent {
	eventType := EventAccessoryUnequipped
	if equipped {
		eventType = EventAccessoryEquipped
	}
	return AccessoryChangedEvent{
		BaseEvent:   NewBaseEvent(eventType, petID, at),
		AccessoryID: accessoryID,
		Slot:        slot,
	}
}

// StateChangedEvent is emitted by the engine when the derived display state changes.
type StateChangedEvent struct {
	BaseEvent
	From string `json:"from"`
	To   string `json:"to"`
}

// Payload implements Event interface.
func (e StateChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"from": e.From,
		"to":   e.To,
	}
}

// NewStateChangedEvent creates a new StateChangedEvent.
func NewStateChangedEvent(petID, from, to string, at time.Time) StateChangedEvent {
	return StateChangedEvent{
		BaseEvent: NewBaseEvent(EventStateChanged, petID, at),
		From:      from,
		To:        to,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// SyncCompletedEvent is emitted after a worker reconciliation pass.
type SyncCompletedEvent struct {
	BaseEvent
	Processed int           `json:"processed"`
	LeveledUp int           `json:"leveled_up"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Payload implements Event interface.
func (e SyncCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"processed":  e.Processed,
		"leveled_up": e.LeveledUp,
		"failed":     e.Failed,
		"duration":   e.Duration.String(),
	}
}

// NewSyncCompletedEvent creates a new SyncCompletedEvent.
func NewSyncCompletedEvent(processed, leveledUp, failed int, duration time.Duration, at time.Time) SyncCompletedEvent {
	return SyncCompletedEvent{
		BaseEvent: NewBaseEvent(EventSyncCompleted, "system", at),
		Processed: processed,
		LeveledUp: leveledUp,
		Failed:    failed,
		Duration:  duration,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
