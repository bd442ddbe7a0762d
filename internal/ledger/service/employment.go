package service

import (
	"context"
	"strconv"

	"skillproof/internal/ledger/access"
	"skillproof/internal/ledger/models"
	id "skillproof/pkg/domain"
	audit "skillproof/pkg/platform/audit"
)

// AddEmploymentRecord appends to the caller's employment history. Existing
// records are never touched.
func (s *Service) AddEmploymentRecord(ctx context.Context, call models.Call, entry models.EmploymentEntry) (*models.EmploymentRecord, error) {
	var created *models.EmploymentRecord
	err := s.mutate(ctx, "add_employment_record", call, func(txCtx context.Context, _ *models.ChangeSet) error {
		user, err := s.loadUser(txCtx, call.Caller)
		if err != nil {
			return err
		}
		if err := access.RequireRegistered(user); err != nil {
			return err
		}

		seq, err := s.store.NextEmploymentSequence(txCtx, call.Caller)
		if err != nil {
			return wrapStoreErr(err, "failed to allocate employment sequence")
		}
		record, err := models.NewEmploymentRecord(call.Caller, seq, entry, call.Height)
		if err != nil {
			return err
		}
		if err := s.store.AppendEmployment(txCtx, record); err != nil {
			return wrapStoreErr(err, "failed to append employment record")
		}
		resource := "employment:" + call.Caller.String() + "/" + strconv.FormatUint(seq, 10)
		if err := s.emit(txCtx, call, audit.EventEmploymentRecorded, call.Caller.String(), resource, "employer="+entry.Employer.String()); err != nil {
			return err
		}
		created = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ListEmploymentRecords returns the owner's history in insertion order.
func (s *Service) ListEmploymentRecords(ctx context.Context, owner id.Principal) ([]*models.EmploymentRecord, error) {
	records, err := s.store.ListEmployment(ctx, owner)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list employment records")
	}
	return records, nil
}
