package service

import (
	"context"

	"skillproof/internal/ledger/models"
	dErrors "skillproof/pkg/domain-errors"
	audit "skillproof/pkg/platform/audit"
	"skillproof/pkg/requestcontext"
)

// emit writes a compliance event inside the current transaction. Without a
// publisher the call still goes through.
func (s *Service) emit(ctx context.Context, call models.Call, action audit.AuditEvent, subject, resource, detail string) error {
	if s.audit == nil {
		return nil
	}
	err := s.audit.Emit(ctx, audit.ComplianceEvent{
		Timestamp: requestcontext.Now(ctx),
		Height:    uint64(call.Height),
		Subject:   subject,
		ActorID:   call.Caller.String(),
		Action:    action,
		Resource:  resource,
		Detail:    detail,
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}
