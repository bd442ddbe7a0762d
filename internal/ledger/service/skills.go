package service

import (
	"context"
	"errors"
	"strconv"

	"skillproof/internal/ledger/access"
	"skillproof/internal/ledger/models"
	id "skillproof/pkg/domain"
	dErrors "skillproof/pkg/domain-errors"
	audit "skillproof/pkg/platform/audit"
	"skillproof/pkg/platform/sentinel"
)

// RegisterSkill declares a new skill owned by the caller and returns it with
// its freshly assigned id.
func (s *Service) RegisterSkill(ctx context.Context, call models.Call, decl models.SkillDeclaration) (*models.Skill, error) {
	var created *models.Skill
	err := s.mutate(ctx, "register_skill", call, func(txCtx context.Context, changes *models.ChangeSet) error {
		owner, err := s.loadUser(txCtx, call.Caller)
		if err != nil {
			return err
		}
		if err := access.RequireRegistered(owner); err != nil {
			return err
		}

		category, err := s.policy.Categories.Resolve(decl.Category)
		if err != nil {
			return err
		}
		skillID, err := s.store.NextSkillID(txCtx)
		if err != nil {
			return wrapStoreErr(err, "failed to allocate skill id")
		}
		skill, err := models.NewSkill(skillID, call.Caller, decl, category, call.Height)
		if err != nil {
			return err
		}
		if err := s.store.CreateSkill(txCtx, skill); err != nil {
			return wrapStoreErr(err, "failed to create skill")
		}
		detail := "required_validations=" + strconv.FormatUint(uint64(skill.RequiredValidations), 10)
		if err := s.emit(txCtx, call, audit.EventSkillRegistered, call.Caller.String(), skillResource(skill.ID), detail); err != nil {
			return err
		}
		changes.Skills = append(changes.Skills, skill.ID)
		created = skill
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetSkill resolves a skill by owner and id. A skill owned by someone else
// is reported as not found.
func (s *Service) GetSkill(ctx context.Context, owner id.Principal, skillID id.SkillID) (*models.Skill, error) {
	skill, err := s.reads.FindSkill(ctx, skillID)
	return ownedSkill(skill, err, owner)
}

func (s *Service) ListSkills(ctx context.Context, owner id.Principal) ([]*models.Skill, error) {
	skills, err := s.store.ListSkillsByOwner(ctx, owner)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list skills")
	}
	return skills, nil
}

// ListSkillValidations returns the endorsements a skill has received, oldest first.
func (s *Service) ListSkillValidations(ctx context.Context, owner id.Principal, skillID id.SkillID) ([]*models.SkillValidation, error) {
	if _, err := s.GetSkill(ctx, owner, skillID); err != nil {
		return nil, err
	}
	validations, err := s.store.ListValidations(ctx, skillID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list validations")
	}
	return validations, nil
}

// HasValidated reports whether validator already endorsed the skill.
func (s *Service) HasValidated(ctx context.Context, skillID id.SkillID, validator id.Principal) (bool, error) {
	ok, err := s.store.HasValidation(ctx, skillID, validator)
	if err != nil {
		return false, wrapStoreErr(err, "failed to check validation")
	}
	return ok, nil
}

func ownedSkill(skill *models.Skill, err error, owner id.Principal) (*models.Skill, error) {
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeSkillNotFound, "skill not found")
	}
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load skill")
	}
	if skill.Owner != owner {
		return nil, dErrors.New(dErrors.CodeSkillNotFound, "skill not found")
	}
	return skill, nil
}

func skillResource(skillID id.SkillID) string {
	return "skill:" + skillID.String()
}
