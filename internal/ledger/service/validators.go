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

// RegisterValidator promotes the caller to validator with the given
// expertise. Duplicates in expertise collapse; order is irrelevant.
func (s *Service) RegisterValidator(ctx context.Context, call models.Call, expertise []id.CategoryID) error {
	return s.mutate(ctx, "register_validator", call, func(txCtx context.Context, changes *models.ChangeSet) error {
		user, err := s.loadUser(txCtx, call.Caller)
		if err != nil {
			return err
		}
		if err := access.RequireRegistered(user); err != nil {
			return err
		}
		if err := access.RequireMinReputation(user, s.policy.ValidatorMinReputation); err != nil {
			return err
		}
		existing, err := s.loadValidator(txCtx, call.Caller)
		if err != nil {
			return err
		}
		if user.IsValidator || existing != nil {
			return dErrors.New(dErrors.CodeAlreadyValidator, "caller is already a validator")
		}

		profile, err := models.NewValidatorProfile(call.Caller, expertise, call.Height)
		if err != nil {
			return err
		}
		if err := s.policy.Categories.RequireKnown(profile.Expertise); err != nil {
			return err
		}

		if err := s.store.CreateValidator(txCtx, profile); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeAlreadyValidator, "caller is already a validator")
			}
			return wrapStoreErr(err, "failed to create validator")
		}
		user.ApplyValidatorPromotion()
		if err := s.store.UpdateUser(txCtx, user); err != nil {
			return wrapStoreErr(err, "failed to update user")
		}
		if err := s.emit(txCtx, call, audit.EventValidatorRegistered, call.Caller.String(), "validator:"+call.Caller.String(), ""); err != nil {
			return err
		}
		changes.Users = append(changes.Users, call.Caller)
		changes.Validators = append(changes.Validators, call.Caller)
		return nil
	})
}

// GetValidatorProfile returns not_found when the principal is not a validator.
func (s *Service) GetValidatorProfile(ctx context.Context, owner id.Principal) (*models.ValidatorProfile, error) {
	profile, err := s.reads.FindValidator(ctx, owner)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "validator not found")
	}
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load validator")
	}
	return profile, nil
}
