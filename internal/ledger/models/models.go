package models

import (
	"math"
	"strconv"
	"unicode/utf8"

	id "skillproof/pkg/domain"
	dErrors "skillproof/pkg/domain-errors"
	"skillproof/pkg/platform/sets"
)

// Field bounds, in runes.
const (
	MaxNameLength        = 100
	MaxBioLength         = 500
	MaxSkillNameLength   = 100
	MaxCategoryLength    = 50
	MaxDescriptionLength = 500
	MaxTitleLength       = 100
	MaxExpertise         = 10
)

// MaxAmount bounds fees, dates and reputation so that every stored counter
// fits a signed 64-bit column.
const MaxAmount uint64 = math.MaxInt64

// Call carries the host-supplied context of a single ledger entry point:
// who is calling and at which block height.
type Call struct {
	Caller id.Principal
	Height id.Height
}

// UserProfile is the registration record of a principal.
//
// Invariants:
//   - At most one profile per principal; profiles are never deleted
//   - ReputationScore never decreases
//   - IsValidator flips false→true once, together with a ValidatorProfile
type UserProfile struct {
	Owner            id.Principal `json:"owner"`
	Name             string       `json:"name"`
	Bio              string       `json:"bio"`
	ReputationScore  uint64       `json:"reputation_score"`
	IsValidator      bool         `json:"is_validator"`
	TotalValidations uint64       `json:"total_validations"`
	RegistrationTime id.Height    `json:"registration_time"`
}

func NewUserProfile(owner id.Principal, name, bio string, reputation uint64, now id.Height) (*UserProfile, error) {
	if err := checkLength("name", name, MaxNameLength); err != nil {
		return nil, err
	}
	if err := checkLength("bio", bio, MaxBioLength); err != nil {
		return nil, err
	}
	return &UserProfile{
		Owner:            owner,
		Name:             name,
		Bio:              bio,
		ReputationScore:  reputation,
		RegistrationTime: now,
	}, nil
}

// AddReputation credits the profile, saturating at MaxAmount.
func (u *UserProfile) AddReputation(amount uint64) {
	if u.ReputationScore >= MaxAmount || amount > MaxAmount-u.ReputationScore {
		u.ReputationScore = MaxAmount
		return
	}
	u.ReputationScore += amount
}

// ApplyValidatorPromotion marks the profile as a validator.
func (u *UserProfile) ApplyValidatorPromotion() {
	u.IsValidator = true
}

// RecordValidationPerformed counts an endorsement given by this user and
// credits the validator reward.
func (u *UserProfile) RecordValidationPerformed(reward uint64) {
	u.TotalValidations++
	u.AddReputation(reward)
}

// Skill is a declaration owned by a user, advanced by peer validations.
//
// States: unvalidated (Current < Required) → validated (Current == Required, terminal).
type Skill struct {
	ID                  id.SkillID    `json:"id"`
	Owner               id.Principal  `json:"owner"`
	Name                string        `json:"name"`
	Category            string        `json:"category"`
	CategoryID          id.CategoryID `json:"category_id"`
	Description         string        `json:"description"`
	RequiredValidations uint32        `json:"required_validations"`
	CurrentValidations  uint32        `json:"current_validations"`
	Validated           bool          `json:"validated"`
	CreatedTime         id.Height     `json:"created_time"`
}

// SkillDeclaration is the caller-supplied part of a new skill.
type SkillDeclaration struct {
	Name                string
	Category            string
	Description         string
	RequiredValidations uint32
}

func NewSkill(skillID id.SkillID, owner id.Principal, decl SkillDeclaration, category Category, now id.Height) (*Skill, error) {
	if decl.RequiredValidations == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidParameter, "required_validations must be greater than zero")
	}
	if err := checkLength("skill name", decl.Name, MaxSkillNameLength); err != nil {
		return nil, err
	}
	if err := checkLength("description", decl.Description, MaxDescriptionLength); err != nil {
		return nil, err
	}
	return &Skill{
		ID:                  skillID,
		Owner:               owner,
		Name:                decl.Name,
		Category:            category.Name,
		CategoryID:          category.ID,
		Description:         decl.Description,
		RequiredValidations: decl.RequiredValidations,
		CreatedTime:         now,
	}, nil
}

// CanAcceptValidation reports whether the skill is still open for endorsement.
func (s *Skill) CanAcceptValidation() error {
	if s.Validated {
		return dErrors.New(dErrors.CodeSkillAlreadyValidated, "skill is already validated")
	}
	return nil
}

// ApplyValidation records one endorsement and returns true when it was the
// one that completed the skill. Call CanAcceptValidation first.
func (s *Skill) ApplyValidation() bool {
	if s.Validated {
		return false
	}
	s.CurrentValidations++
	if s.CurrentValidations >= s.RequiredValidations {
		s.CurrentValidations = s.RequiredValidations
		s.Validated = true
		return true
	}
	return false
}

// ValidatorProfile holds the category ids a validator may endorse.
// Expertise is kept sorted and de-duplicated.
type ValidatorProfile struct {
	Owner          id.Principal    `json:"owner"`
	Expertise      []id.CategoryID `json:"expertise"`
	RegisteredTime id.Height       `json:"registered_time"`
}

func NewValidatorProfile(owner id.Principal, expertise []id.CategoryID, now id.Height) (*ValidatorProfile, error) {
	set := sets.Canonical(expertise)
	if len(set) > MaxExpertise {
		return nil, dErrors.New(dErrors.CodeInvalidParameter, "too many expertise categories")
	}
	if set == nil {
		set = []id.CategoryID{}
	}
	return &ValidatorProfile{Owner: owner, Expertise: set, RegisteredTime: now}, nil
}

// HasExpertise is the on-demand matching test between a validator and a skill category.
func (v *ValidatorProfile) HasExpertise(category id.CategoryID) bool {
	return sets.Contains(v.Expertise, category)
}

// SkillValidation records that Validator endorsed SkillID. Its existence is
// the de-duplication guard.
type SkillValidation struct {
	SkillID     id.SkillID   `json:"skill_id"`
	Validator   id.Principal `json:"validator"`
	ValidatedAt id.Height    `json:"validated_at"`
}

// EmploymentRecord is one append-only entry of a user's employment history.
// EndDate zero means the employment is ongoing.
type EmploymentRecord struct {
	Owner      id.Principal `json:"owner"`
	SequenceID uint64       `json:"sequence_id"`
	Employer   id.Principal `json:"employer"`
	Title      string       `json:"title"`
	StartDate  uint64       `json:"start_date"`
	EndDate    uint64       `json:"end_date"`
	RecordedAt id.Height    `json:"recorded_at"`
}

// EmploymentEntry is the caller-supplied part of a new employment record.
type EmploymentEntry struct {
	Employer  id.Principal
	Title     string
	StartDate uint64
	EndDate   uint64
}

func NewEmploymentRecord(owner id.Principal, seq uint64, entry EmploymentEntry, now id.Height) (*EmploymentRecord, error) {
	if err := CheckAmount("start_date", entry.StartDate); err != nil {
		return nil, err
	}
	if err := CheckAmount("end_date", entry.EndDate); err != nil {
		return nil, err
	}
	if entry.EndDate != 0 && entry.EndDate < entry.StartDate {
		return nil, dErrors.New(dErrors.CodeInvalidDateRange, "end_date must not precede start_date")
	}
	if err := checkLength("title", entry.Title, MaxTitleLength); err != nil {
		return nil, err
	}
	return &EmploymentRecord{
		Owner:      owner,
		SequenceID: seq,
		Employer:   entry.Employer,
		Title:      entry.Title,
		StartDate:  entry.StartDate,
		EndDate:    entry.EndDate,
		RecordedAt: now,
	}, nil
}

func (e *EmploymentRecord) IsOngoing() bool {
	return e.EndDate == 0
}

// PlatformConfig is the singleton governance record. Owner is fixed at bootstrap.
type PlatformConfig struct {
	Owner          id.Principal `json:"owner"`
	FeeBasisPoints uint64       `json:"fee_basis_points"`
	UpdatedAt      id.Height    `json:"updated_at"`
}

// CheckAmount rejects values above MaxAmount.
func CheckAmount(field string, value uint64) error {
	if value > MaxAmount {
		return dErrors.New(dErrors.CodeInvalidParameter, field+" exceeds "+strconv.FormatUint(MaxAmount, 10))
	}
	return nil
}

func checkLength(field, value string, limit int) error {
	if !utf8.ValidString(value) {
		return dErrors.New(dErrors.CodeInvalidParameter, field+" must be valid UTF-8")
	}
	if utf8.RuneCountInString(value) > limit {
		return dErrors.New(dErrors.CodeInvalidParameter, field+" is too long")
	}
	return nil
}

// ChangeSet lists the keys a committed call touched. Read caches drop them.
type ChangeSet struct {
	Users      []id.Principal
	Skills     []id.SkillID
	Validators []id.Principal
}

func (c ChangeSet) IsEmpty() bool {
	return len(c.Users) == 0 && len(c.Skills) == 0 && len(c.Validators) == 0
}
