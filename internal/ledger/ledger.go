// Package ledger is the entry point the transport layer talks to. Mutations
// are queued on the sequencer and stamped with the caller and block height
// there; reads go straight to the service.
package ledger

import (
	"context"

	"skillproof/internal/ledger/models"
	"skillproof/internal/ledger/sequencer"
	"skillproof/internal/ledger/service"
	id "skillproof/pkg/domain"
)

type Ledger struct {
	svc *service.Service
	seq *sequencer.Sequencer
}

func New(svc *service.Service, seq *sequencer.Sequencer) *Ledger {
	return &Ledger{svc: svc, seq: seq}
}

// Bootstrap seals the genesis block if the chain is empty and records the
// platform owner and initial fee at that height. Run it before the sequencer
// starts; on a restart it leaves the existing configuration alone.
func Bootstrap(ctx context.Context, heights sequencer.HeightStore, svc *service.Service, owner id.Principal, feeBasisPoints uint64) (*models.PlatformConfig, error) {
	h, err := heights.CurrentHeight(ctx)
	if err != nil {
		return nil, err
	}
	if h == 0 {
		if h, err = heights.AdvanceHeight(ctx); err != nil {
			return nil, err
		}
	}
	return svc.InitPlatform(ctx, owner, feeBasisPoints, h)
}

// Height is the most recently sealed block.
func (l *Ledger) Height() id.Height {
	return l.seq.Height()
}

func (l *Ledger) RegisterUser(ctx context.Context, caller id.Principal, name, bio string) error {
	return l.seq.Submit(ctx, caller, func(ctx context.Context, call models.Call) error {
		return l.svc.RegisterUser(ctx, call, name, bio)
	})
}

func (l *Ledger) RegisterSkill(ctx context.Context, caller id.Principal, decl models.SkillDeclaration) (*models.Skill, error) {
	var skill *models.Skill
	err := l.seq.Submit(ctx, caller, func(ctx context.Context, call models.Call) error {
		var err error
		skill, err = l.svc.RegisterSkill(ctx, call, decl)
		return err
	})
	return skill, err
}

func (l *Ledger) RegisterValidator(ctx context.Context, caller id.Principal, expertise []id.CategoryID) error {
	return l.seq.Submit(ctx, caller, func(ctx context.Context, call models.Call) error {
		return l.svc.RegisterValidator(ctx, call, expertise)
	})
}

func (l *Ledger) ValidateSkill(ctx context.Context, caller, owner id.Principal, skillID id.SkillID) (*service.ValidationResult, error) {
	var res *service.ValidationResult
	err := l.seq.Submit(ctx, caller, func(ctx context.Context, call models.Call) error {
		var err error
		res, err = l.svc.ValidateSkill(ctx, call, owner, skillID)
		return err
	})
	return res, err
}

func (l *Ledger) AddEmploymentRecord(ctx context.Context, caller id.Principal, entry models.EmploymentEntry) (*models.EmploymentRecord, error) {
	var rec *models.EmploymentRecord
	err := l.seq.Submit(ctx, caller, func(ctx context.Context, call models.Call) error {
		var err error
		rec, err = l.svc.AddEmploymentRecord(ctx, call, entry)
		return err
	})
	return rec, err
}

func (l *Ledger) UpdatePlatformFee(ctx context.Context, caller id.Principal, feeBasisPoints uint64) error {
	return l.seq.Submit(ctx, caller, func(ctx context.Context, call models.Call) error {
		return l.svc.UpdatePlatformFee(ctx, call, feeBasisPoints)
	})
}

func (l *Ledger) GetUserProfile(ctx context.Context, owner id.Principal) (*models.UserProfile, error) {
	return l.svc.GetUserProfile(ctx, owner)
}

func (l *Ledger) GetSkill(ctx context.Context, owner id.Principal, skillID id.SkillID) (*models.Skill, error) {
	return l.svc.GetSkill(ctx, owner, skillID)
}

func (l *Ledger) ListSkills(ctx context.Context, owner id.Principal) ([]*models.Skill, error) {
	return l.svc.ListSkills(ctx, owner)
}

func (l *Ledger) ListSkillValidations(ctx context.Context, owner id.Principal, skillID id.SkillID) ([]*models.SkillValidation, error) {
	return l.svc.ListSkillValidations(ctx, owner, skillID)
}

func (l *Ledger) HasValidated(ctx context.Context, skillID id.SkillID, validator id.Principal) (bool, error) {
	return l.svc.HasValidated(ctx, skillID, validator)
}

func (l *Ledger) GetValidatorProfile(ctx context.Context, owner id.Principal) (*models.ValidatorProfile, error) {
	return l.svc.GetValidatorProfile(ctx, owner)
}

func (l *Ledger) ListEmploymentRecords(ctx context.Context, owner id.Principal) ([]*models.EmploymentRecord, error) {
	return l.svc.ListEmploymentRecords(ctx, owner)
}

func (l *Ledger) GetPlatformConfig(ctx context.Context) (*models.PlatformConfig, error) {
	return l.svc.GetPlatformConfig(ctx)
}

// Categories is the closed category table skills are declared against.
func (l *Ledger) Categories() []models.Category {
	return l.svc.Policy().Categories.All()
}
