package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"skillproof/internal/ledger/models"
	id "skillproof/pkg/domain"
)

const skillColumns = `id, owner, name, category, category_id, description,
	required_validations, current_validations, validated, created_time`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSkill(row rowScanner) (*models.Skill, error) {
	var sk models.Skill
	err := row.Scan(&sk.ID, &sk.Owner, &sk.Name, &sk.Category, &sk.CategoryID, &sk.Description,
		&sk.RequiredValidations, &sk.CurrentValidations, &sk.Validated, &sk.CreatedTime)
	if err != nil {
		return nil, err
	}
	return &sk, nil
}

func (s *Store) CreateSkill(ctx context.Context, sk *models.Skill) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO skills (`+skillColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, sk.ID, sk.Owner, sk.Name, sk.Category, sk.CategoryID, sk.Description,
		sk.RequiredValidations, sk.CurrentValidations, sk.Validated, sk.CreatedTime)
	return conflict(err, "create skill")
}

func (s *Store) FindSkill(ctx context.Context, skillID id.SkillID) (*models.Skill, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `SELECT `+skillColumns+` FROM skills WHERE id = $1`, skillID)
	sk, err := scanSkill(row)
	if err != nil {
		return nil, notFound(err, "find skill")
	}
	return sk, nil
}

// UpdateSkill writes the validation progress.
func (s *Store) UpdateSkill(ctx context.Context, sk *models.Skill) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE skills SET current_validations = $2, validated = $3 WHERE id = $1
	`, sk.ID, sk.CurrentValidations, sk.Validated)
	return affected(res, err, "update skill")
}

func (s *Store) ListSkillsByOwner(ctx context.Context, owner id.Principal) ([]*models.Skill, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `SELECT `+skillColumns+` FROM skills WHERE owner = $1 ORDER BY id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	defer rows.Close()

	skills := []*models.Skill{}
	for rows.Next() {
		sk, err := scanSkill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		skills = append(skills, sk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	return skills, nil
}

func (s *Store) CreateValidation(ctx context.Context, v *models.SkillValidation) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO skill_validations (skill_id, validator, validated_at) VALUES ($1, $2, $3)
	`, v.SkillID, v.Validator, v.ValidatedAt)
	return conflict(err, "create validation")
}

func (s *Store) HasValidation(ctx context.Context, skillID id.SkillID, validator id.Principal) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM skill_validations WHERE skill_id = $1 AND validator = $2)
	`, skillID, validator).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check validation: %w", err)
	}
	return exists, nil
}

func (s *Store) ListValidations(ctx context.Context, skillID id.SkillID) ([]*models.SkillValidation, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT skill_id, validator, validated_at
		FROM skill_validations
		WHERE skill_id = $1
		ORDER BY validated_at, validator
	`, skillID)
	if err != nil {
		return nil, fmt.Errorf("list validations: %w", err)
	}
	defer rows.Close()

	out := []*models.SkillValidation{}
	for rows.Next() {
		var v models.SkillValidation
		if err := rows.Scan(&v.SkillID, &v.Validator, &v.ValidatedAt); err != nil {
			return nil, fmt.Errorf("scan validation: %w", err)
		}
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list validations: %w", err)
	}
	return out, nil
}

// NextEmploymentSequence numbers each owner's records from 1. The ledger
// lock held by the transaction keeps the read and the insert together.
func (s *Store) NextEmploymentSequence(ctx context.Context, owner id.Principal) (uint64, error) {
	var next sql.NullInt64
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT MAX(sequence_id) FROM employment_records WHERE owner = $1`, owner,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next employment sequence: %w", err)
	}
	return uint64(next.Int64) + 1, nil
}

func (s *Store) AppendEmployment(ctx context.Context, r *models.EmploymentRecord) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO employment_records (owner, sequence_id, employer, title, start_date, end_date, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.Owner, r.SequenceID, r.Employer, r.Title, r.StartDate, r.EndDate, r.RecordedAt)
	return conflict(err, "append employment record")
}

func (s *Store) ListEmployment(ctx context.Context, owner id.Principal) ([]*models.EmploymentRecord, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT owner, sequence_id, employer, title, start_date, end_date, recorded_at
		FROM employment_records
		WHERE owner = $1
		ORDER BY sequence_id
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("list employment: %w", err)
	}
	defer rows.Close()

	out := []*models.EmploymentRecord{}
	for rows.Next() {
		var r models.EmploymentRecord
		if err := rows.Scan(&r.Owner, &r.SequenceID, &r.Employer, &r.Title, &r.StartDate, &r.EndDate, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan employment record: %w", err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list employment: %w", err)
	}
	return out, nil
}
