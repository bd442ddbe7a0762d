package service

import (
	"context"
	"errors"

	"skillproof/internal/ledger/access"
	"skillproof/internal/ledger/models"
	id "skillproof/pkg/domain"
	dErrors "skillproof/pkg/domain-errors"
	audit "skillproof/pkg/platform/audit"
	"skillproof/pkg/platform/sentinel"
)

// ValidationResult describes what a successful validate_skill call did.
type ValidationResult struct {
	Skill *models.Skill
	// Completed is true when this endorsement validated the skill.
	Completed bool
}

// ValidateSkill records the caller's endorsement of owner's skill.
//
// Checks run in a fixed order and each maps to one error kind:
// not_registered, not_authorized (caller is no validator), skill_not_found,
// skill_already_validated, self_validation, category_mismatch,
// duplicate_validation. Nothing is written until all of them pass.
func (s *Service) ValidateSkill(ctx context.Context, call models.Call, owner id.Principal, skillID id.SkillID) (*ValidationResult, error) {
	var result *ValidationResult
	err := s.mutate(ctx, "validate_skill", call, func(txCtx context.Context, changes *models.ChangeSet) error {
		validatorUser, err := s.loadUser(txCtx, call.Caller)
		if err != nil {
			return err
		}
		if err := access.RequireRegistered(validatorUser); err != nil {
			return err
		}
		validator, err := s.loadValidator(txCtx, call.Caller)
		if err != nil {
			return err
		}
		if err := access.RequireValidator(validatorUser, validator); err != nil {
			return err
		}

		skill, err := s.store.FindSkill(txCtx, skillID)
		skill, err = ownedSkill(skill, err, owner)
		if err != nil {
			return err
		}
		if err := skill.CanAcceptValidation(); err != nil {
			return err
		}
		if call.Caller == owner {
			return dErrors.New(dErrors.CodeSelfValidation, "validators cannot validate their own skills")
		}
		if !validator.HasExpertise(skill.CategoryID) {
			return dErrors.New(dErrors.CodeCategoryMismatch, "skill category is outside the validator's expertise")
		}
		seen, err := s.store.HasValidation(txCtx, skillID, call.Caller)
		if err != nil {
			return wrapStoreErr(err, "failed to check validation")
		}
		if seen {
			return dErrors.New(dErrors.CodeDuplicateValidation, "skill already validated by this validator")
		}

		if err := s.store.CreateValidation(txCtx, &models.SkillValidation{
			SkillID:     skillID,
			Validator:   call.Caller,
			ValidatedAt: call.Height,
		}); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeDuplicateValidation, "skill already validated by this validator")
			}
			return wrapStoreErr(err, "failed to record validation")
		}

		completed := skill.ApplyValidation()
		if err := s.store.UpdateSkill(txCtx, skill); err != nil {
			return wrapStoreErr(err, "failed to update skill")
		}
		if completed {
			if err := s.rewardOwner(txCtx, owner); err != nil {
				return err
			}
			changes.Users = append(changes.Users, owner)
		}

		validatorUser.RecordValidationPerformed(s.policy.ValidatorReward)
		if err := s.store.UpdateUser(txCtx, validatorUser); err != nil {
			return wrapStoreErr(err, "failed to update validator")
		}

		if err := s.emit(txCtx, call, audit.EventSkillValidated, owner.String(), skillResource(skillID), ""); err != nil {
			return err
		}
		if completed {
			if err := s.emit(txCtx, call, audit.EventSkillCompleted, owner.String(), skillResource(skillID), ""); err != nil {
				return err
			}
		}
		changes.Users = append(changes.Users, call.Caller)
		changes.Skills = append(changes.Skills, skillID)
		result = &ValidationResult{Skill: skill, Completed: completed}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Completed && s.metrics != nil {
		s.metrics.IncSkillsValidated()
	}
	return result, nil
}

func (s *Service) rewardOwner(ctx context.Context, owner id.Principal) error {
	profile, err := s.loadUser(ctx, owner)
	if err != nil {
		return err
	}
	if profile == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "skill owner has no profile")
	}
	profile.AddReputation(s.policy.ValidationReward)
	if err := s.store.UpdateUser(ctx, profile); err != nil {
		return wrapStoreErr(err, "failed to update skill owner")
	}
	return nil
}
