// Package postgres persists the ledger in PostgreSQL. Every transaction takes
// a single advisory lock, so ledger calls are applied one at a time in commit
// order even when several processes share the database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"skillproof/internal/ledger/models"
	id "skillproof/pkg/domain"
	dErrors "skillproof/pkg/domain-errors"
	"skillproof/pkg/platform/sentinel"
	txcontext "skillproof/pkg/platform/tx"
)

const (
	defaultTxTimeout = 5 * time.Second

	// ledgerLockKey identifies the ledger's transaction-scoped advisory lock.
	ledgerLockKey int64 = 0x736b696c6c

	uniqueViolation pq.ErrorCode = "23505"
)

type Store struct {
	db      *sql.DB
	timeout time.Duration
}

func New(db *sql.DB, txTimeout time.Duration) *Store {
	return &Store{db: db, timeout: txTimeout}
}

// execer joins the transaction carried by ctx, if any.
func (s *Store) execer(ctx context.Context) txcontext.DBTX {
	return txcontext.Executor(ctx, s.db)
}

// RunInTx runs fn in a transaction holding the ledger lock. A nested call
// joins the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := s.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerLockKey); err != nil {
		return fmt.Errorf("acquire ledger lock: %w", err)
	}
	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// NextSkillID bumps the global skill counter.
func (s *Store) NextSkillID(ctx context.Context) (id.SkillID, error) {
	var next id.SkillID
	err := s.execer(ctx).QueryRowContext(ctx,
		`UPDATE ledger_counters SET last_skill_id = last_skill_id + 1 WHERE id = 1 RETURNING last_skill_id`,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("allocate skill id: %w", err)
	}
	return next, nil
}

func (s *Store) CurrentHeight(ctx context.Context) (id.Height, error) {
	var h id.Height
	if err := s.execer(ctx).QueryRowContext(ctx, `SELECT height FROM ledger_counters WHERE id = 1`).Scan(&h); err != nil {
		return 0, fmt.Errorf("read height: %w", err)
	}
	return h, nil
}

// AdvanceHeight seals a new block and returns its height.
func (s *Store) AdvanceHeight(ctx context.Context) (id.Height, error) {
	var h id.Height
	err := s.execer(ctx).QueryRowContext(ctx,
		`UPDATE ledger_counters SET height = height + 1 WHERE id = 1 RETURNING height`,
	).Scan(&h)
	if err != nil {
		return 0, fmt.Errorf("advance height: %w", err)
	}
	return h, nil
}

func (s *Store) FindPlatformConfig(ctx context.Context) (*models.PlatformConfig, error) {
	var cfg models.PlatformConfig
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT owner, fee_basis_points, updated_at FROM platform_config WHERE id = 1`,
	).Scan(&cfg.Owner, &cfg.FeeBasisPoints, &cfg.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "find platform config")
	}
	return &cfg, nil
}

func (s *Store) CreatePlatformConfig(ctx context.Context, cfg *models.PlatformConfig) error {
	_, err := s.execer(ctx).ExecContext(ctx,
		`INSERT INTO platform_config (id, owner, fee_basis_points, updated_at) VALUES (1, $1, $2, $3)`,
		cfg.Owner, cfg.FeeBasisPoints, cfg.UpdatedAt,
	)
	return conflict(err, "create platform config")
}

func (s *Store) UpdatePlatformConfig(ctx context.Context, cfg *models.PlatformConfig) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE platform_config SET fee_basis_points = $1, updated_at = $2 WHERE id = 1`,
		cfg.FeeBasisPoints, cfg.UpdatedAt,
	)
	return affected(res, err, "update platform config")
}

// notFound maps sql.ErrNoRows to sentinel.ErrNotFound.
func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// conflict maps unique violations to sentinel.ErrAlreadyUsed.
func conflict(err error, op string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return sentinel.ErrAlreadyUsed
	}
	return fmt.Errorf("%s: %w", op, err)
}

// affected reports sentinel.ErrNotFound when an update matched no row.
func affected(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
