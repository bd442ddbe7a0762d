package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events that change ledger state. These are
	// the auditable history of the ledger and require guaranteed persistence.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational visibility.
	// These can be sampled or aggregated with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Height is the block height the action was committed at.
	Height uint64
	// Subject is the principal whose state changed.
	Subject string
	// ActorID is the caller, when different from Subject (e.g. a validator
	// endorsing someone else's skill).
	ActorID  string
	Action   string
	Resource string
	Detail   string
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string
}

// Store persists audit events. Implementations must honor a transaction
// carried in ctx so events commit atomically with the state they describe.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Reader lists persisted audit events.
type Reader interface {
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}

// OutboxEntry is a persisted event awaiting publication to the event stream.
// Payload is the JSON encoding consumers receive.
type OutboxEntry struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
}

type AuditEvent string

const (
	EventPlatformInitialized AuditEvent = "platform_initialized"
	EventPlatformFeeUpdated  AuditEvent = "platform_fee_updated"
	EventUserRegistered      AuditEvent = "user_registered"
	EventSkillRegistered     AuditEvent = "skill_registered"
	EventValidatorRegistered AuditEvent = "validator_registered"
	EventSkillValidated      AuditEvent = "skill_validated"
	EventSkillCompleted      AuditEvent = "skill_completed"
	EventEmploymentRecorded  AuditEvent = "employment_recorded"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventPlatformInitialized: CategoryCompliance,
	EventPlatformFeeUpdated:  CategoryCompliance,
	EventUserRegistered:      CategoryCompliance,
	EventSkillRegistered:     CategoryCompliance,
	EventValidatorRegistered: CategoryCompliance,
	EventSkillValidated:      CategoryCompliance,
	EventSkillCompleted:      CategoryCompliance,
	EventEmploymentRecorded:  CategoryCompliance,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// ComplianceEvent captures a committed ledger mutation.
// Use with the compliance publisher for fail-closed semantics.
type ComplianceEvent struct {
	Timestamp time.Time // When the event occurred (set automatically if zero)
	Height    uint64
	Subject   string // The principal affected (required)
	ActorID   string
	Action    AuditEvent // required
	Resource  string     // e.g. "skill:3"
	Detail    string
	RequestID string
}

// Category returns CategoryCompliance (always).
func (e ComplianceEvent) Category() EventCategory { return CategoryCompliance }

// ToEvent converts to the storage Event type.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:  CategoryCompliance,
		Timestamp: e.Timestamp,
		Height:    e.Height,
		Subject:   e.Subject,
		ActorID:   e.ActorID,
		Action:    string(e.Action),
		Resource:  e.Resource,
		Detail:    e.Detail,
		RequestID: e.RequestID,
	}
}
