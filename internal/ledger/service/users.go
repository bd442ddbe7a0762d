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

// RegisterUser creates the caller's profile with the default reputation.
// A second registration fails already_registered whatever its arguments.
func (s *Service) RegisterUser(ctx context.Context, call models.Call, name, bio string) error {
	return s.mutate(ctx, "register_user", call, func(txCtx context.Context, changes *models.ChangeSet) error {
		existing, err := s.loadUser(txCtx, call.Caller)
		if err != nil {
			return err
		}
		if err := access.RequireNotRegistered(existing); err != nil {
			return err
		}

		profile, err := models.NewUserProfile(call.Caller, name, bio, s.policy.DefaultReputation, call.Height)
		if err != nil {
			return err
		}
		if err := s.store.CreateUser(txCtx, profile); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeAlreadyRegistered, "caller is already registered")
			}
			return wrapStoreErr(err, "failed to create user")
		}
		if err := s.emit(txCtx, call, audit.EventUserRegistered, call.Caller.String(), "user:"+call.Caller.String(), ""); err != nil {
			return err
		}
		changes.Users = append(changes.Users, call.Caller)
		return nil
	})
}

// GetUserProfile returns not_found when the principal never registered.
func (s *Service) GetUserProfile(ctx context.Context, owner id.Principal) (*models.UserProfile, error) {
	profile, err := s.reads.FindUser(ctx, owner)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load user")
	}
	return profile, nil
}
