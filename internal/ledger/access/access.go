// Package access holds the ledger's authorization predicates. Each predicate
// is pure: callers load whatever state it needs and pass it in.
package access

import (
	"skillproof/internal/ledger/models"
	id "skillproof/pkg/domain"
	dErrors "skillproof/pkg/domain-errors"
)

// RequireOwner fails with not_authorized unless caller is the platform owner.
func RequireOwner(caller id.Principal, cfg *models.PlatformConfig) error {
	if cfg == nil || caller != cfg.Owner {
		return dErrors.New(dErrors.CodeNotAuthorized, "caller is not the platform owner")
	}
	return nil
}

// RequireRegistered fails with not_registered when the caller has no profile.
func RequireRegistered(profile *models.UserProfile) error {
	if profile == nil {
		return dErrors.New(dErrors.CodeNotRegistered, "caller is not registered")
	}
	return nil
}

// RequireNotRegistered fails with already_registered when a profile exists.
func RequireNotRegistered(profile *models.UserProfile) error {
	if profile != nil {
		return dErrors.New(dErrors.CodeAlreadyRegistered, "caller is already registered")
	}
	return nil
}

// RequireMinReputation fails with insufficient_reputation below threshold.
func RequireMinReputation(profile *models.UserProfile, threshold uint64) error {
	if err := RequireRegistered(profile); err != nil {
		return err
	}
	if profile.ReputationScore < threshold {
		return dErrors.New(dErrors.CodeInsufficientReputation, "reputation below validator threshold")
	}
	return nil
}

// RequireValidator fails with not_authorized unless the profile is flagged as
// a validator and a validator profile exists.
func RequireValidator(profile *models.UserProfile, validator *models.ValidatorProfile) error {
	if profile == nil || !profile.IsValidator || validator == nil {
		return dErrors.New(dErrors.CodeNotAuthorized, "caller is not a validator")
	}
	return nil
}
