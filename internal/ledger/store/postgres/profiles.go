package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"skillproof/internal/ledger/models"
	id "skillproof/pkg/domain"
)

func (s *Store) FindUser(ctx context.Context, owner id.Principal) (*models.UserProfile, error) {
	var u models.UserProfile
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT owner, name, bio, reputation_score, is_validator, total_validations, registration_time
		FROM user_profiles
		WHERE owner = $1
	`, owner).Scan(&u.Owner, &u.Name, &u.Bio, &u.ReputationScore, &u.IsValidator, &u.TotalValidations, &u.RegistrationTime)
	if err != nil {
		return nil, notFound(err, "find user")
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.UserProfile) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO user_profiles (owner, name, bio, reputation_score, is_validator, total_validations, registration_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.Owner, u.Name, u.Bio, u.ReputationScore, u.IsValidator, u.TotalValidations, u.RegistrationTime)
	return conflict(err, "create user")
}

// UpdateUser writes the mutable columns. Name, bio and registration time are fixed.
func (s *Store) UpdateUser(ctx context.Context, u *models.UserProfile) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE user_profiles
		SET reputation_score = $2, is_validator = $3, total_validations = $4
		WHERE owner = $1
	`, u.Owner, u.ReputationScore, u.IsValidator, u.TotalValidations)
	return affected(res, err, "update user")
}

func (s *Store) CreateValidator(ctx context.Context, v *models.ValidatorProfile) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO validator_profiles (owner, expertise, registered_time)
		VALUES ($1, $2, $3)
	`, v.Owner, pq.Array(categoryInts(v.Expertise)), v.RegisteredTime)
	return conflict(err, "create validator")
}

func (s *Store) FindValidator(ctx context.Context, owner id.Principal) (*models.ValidatorProfile, error) {
	var (
		v         models.ValidatorProfile
		expertise []int64
	)
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT owner, expertise, registered_time
		FROM validator_profiles
		WHERE owner = $1
	`, owner).Scan(&v.Owner, pq.Array(&expertise), &v.RegisteredTime)
	if err != nil {
		return nil, notFound(err, "find validator")
	}
	v.Expertise = make([]id.CategoryID, 0, len(expertise))
	for _, c := range expertise {
		if c <= 0 || c > int64(^uint32(0)) {
			return nil, fmt.Errorf("find validator: category id %d out of range", c)
		}
		v.Expertise = append(v.Expertise, id.CategoryID(c))
	}
	return &v, nil
}

func categoryInts(ids []id.CategoryID) []int64 {
	out := make([]int64, len(ids))
	for i, c := range ids {
		out[i] = int64(c)
	}
	return out
}
