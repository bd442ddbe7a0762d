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

const platformResource = "platform"

// InitPlatform creates the platform configuration at genesis. It is a no-op
// when the configuration already exists: the owner is fixed forever.
func (s *Service) InitPlatform(ctx context.Context, owner id.Principal, feeBasisPoints uint64, height id.Height) (*models.PlatformConfig, error) {
	call := models.Call{Caller: owner, Height: height}
	var cfg *models.PlatformConfig
	err := s.mutate(ctx, "init_platform", call, func(txCtx context.Context, _ *models.ChangeSet) error {
		existing, err := s.loadPlatform(txCtx)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Owner != owner {
				s.logger.WarnContext(txCtx, "configured platform owner differs from recorded owner; keeping recorded owner",
					"recorded_owner", existing.Owner,
					"configured_owner", owner,
				)
			}
			cfg = existing
			return nil
		}

		if err := models.CheckAmount("fee_basis_points", feeBasisPoints); err != nil {
			return err
		}
		cfg = &models.PlatformConfig{Owner: owner, FeeBasisPoints: feeBasisPoints, UpdatedAt: height}
		if err := s.store.CreatePlatformConfig(txCtx, cfg); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "platform already initialized")
			}
			return wrapStoreErr(err, "failed to create platform config")
		}
		return s.emit(txCtx, call, audit.EventPlatformInitialized, owner.String(), platformResource, feeDetail(feeBasisPoints))
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// UpdatePlatformFee replaces the fee. Only the platform owner may call it.
func (s *Service) UpdatePlatformFee(ctx context.Context, call models.Call, feeBasisPoints uint64) error {
	return s.mutate(ctx, "update_platform_fee", call, func(txCtx context.Context, _ *models.ChangeSet) error {
		cfg, err := s.loadPlatform(txCtx)
		if err != nil {
			return err
		}
		if err := access.RequireOwner(call.Caller, cfg); err != nil {
			return err
		}
		if err := models.CheckAmount("fee_basis_points", feeBasisPoints); err != nil {
			return err
		}
		cfg.FeeBasisPoints = feeBasisPoints
		cfg.UpdatedAt = call.Height
		if err := s.store.UpdatePlatformConfig(txCtx, cfg); err != nil {
			return wrapStoreErr(err, "failed to update platform config")
		}
		return s.emit(txCtx, call, audit.EventPlatformFeeUpdated, call.Caller.String(), platformResource, feeDetail(feeBasisPoints))
	})
}

func (s *Service) GetPlatformConfig(ctx context.Context) (*models.PlatformConfig, error) {
	cfg, err := s.store.FindPlatformConfig(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "platform is not initialized")
	}
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load platform config")
	}
	return cfg, nil
}

func feeDetail(fee uint64) string {
	return "fee_basis_points=" + strconv.FormatUint(fee, 10)
}
