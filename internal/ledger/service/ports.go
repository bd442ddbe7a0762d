package service

import (
	"context"

	"skillproof/internal/ledger/models"
	id "skillproof/pkg/domain"
	audit "skillproof/pkg/platform/audit"
)

// AuditPublisher records compliance events. Emit runs inside the caller's
// transaction and a failure aborts it.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// Reader serves the read-only queries.
type Reader interface {
	FindUser(ctx context.Context, owner id.Principal) (*models.UserProfile, error)
	FindSkill(ctx context.Context, skillID id.SkillID) (*models.Skill, error)
	FindValidator(ctx context.Context, owner id.Principal) (*models.ValidatorProfile, error)
}

// Cache is a Reader that must be told which keys a committed call changed.
type Cache interface {
	Reader
	Invalidate(ctx context.Context, changes models.ChangeSet) error
}
