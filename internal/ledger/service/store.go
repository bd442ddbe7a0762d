package service

import (
	"context"

	"skillproof/internal/ledger/models"
	id "skillproof/pkg/domain"
)

// Lookups return sentinel.ErrNotFound when the row is absent. Creates return
// sentinel.ErrAlreadyUsed when the key is taken.

type UserStore interface {
	FindUser(ctx context.Context, owner id.Principal) (*models.UserProfile, error)
	CreateUser(ctx context.Context, profile *models.UserProfile) error
	UpdateUser(ctx context.Context, profile *models.UserProfile) error
}

type SkillStore interface {
	// NextSkillID reserves the next global skill id.
	NextSkillID(ctx context.Context) (id.SkillID, error)
	CreateSkill(ctx context.Context, skill *models.Skill) error
	FindSkill(ctx context.Context, skillID id.SkillID) (*models.Skill, error)
	UpdateSkill(ctx context.Context, skill *models.Skill) error
	ListSkillsByOwner(ctx context.Context, owner id.Principal) ([]*models.Skill, error)
}

type ValidatorStore interface {
	CreateValidator(ctx context.Context, profile *models.ValidatorProfile) error
	FindValidator(ctx context.Context, owner id.Principal) (*models.ValidatorProfile, error)
}

type ValidationStore interface {
	CreateValidation(ctx context.Context, validation *models.SkillValidation) error
	HasValidation(ctx context.Context, skillID id.SkillID, validator id.Principal) (bool, error)
	ListValidations(ctx context.Context, skillID id.SkillID) ([]*models.SkillValidation, error)
}

type EmploymentStore interface {
	// NextEmploymentSequence returns the sequence id the owner's next record takes.
	NextEmploymentSequence(ctx context.Context, owner id.Principal) (uint64, error)
	AppendEmployment(ctx context.Context, record *models.EmploymentRecord) error
	ListEmployment(ctx context.Context, owner id.Principal) ([]*models.EmploymentRecord, error)
}

type PlatformStore interface {
	FindPlatformConfig(ctx context.Context) (*models.PlatformConfig, error)
	CreatePlatformConfig(ctx context.Context, cfg *models.PlatformConfig) error
	UpdatePlatformConfig(ctx context.Context, cfg *models.PlatformConfig) error
}

// StoreTx runs fn as one atomic unit. Store calls made with txCtx join the
// transaction; an error from fn discards every write made through it.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Store is the ledger's single source of truth.
type Store interface {
	UserStore
	SkillStore
	ValidatorStore
	ValidationStore
	EmploymentStore
	PlatformStore
	StoreTx
}
