package handler

import (
	"skillproof/internal/ledger/models"
	id "skillproof/pkg/domain"
)

type RegisterUserRequest struct {
	Name string `json:"name"`
	Bio  string `json:"bio"`
}

type RegisterSkillRequest struct {
	Name                string `json:"name"`
	Category            string `json:"category"`
	Description         string `json:"description"`
	RequiredValidations uint32 `json:"required_validations"`
}

func (r RegisterSkillRequest) declaration() models.SkillDeclaration {
	return models.SkillDeclaration{
		Name:                r.Name,
		Category:            r.Category,
		Description:         r.Description,
		RequiredValidations: r.RequiredValidations,
	}
}

type RegisterValidatorRequest struct {
	Expertise []uint32 `json:"expertise"`
}

func (r RegisterValidatorRequest) categories() []id.CategoryID {
	out := make([]id.CategoryID, len(r.Expertise))
	for i, c := range r.Expertise {
		out[i] = id.CategoryID(c)
	}
	return out
}

type ValidateSkillRequest struct {
	Owner   string `json:"owner"`
	SkillID uint64 `json:"skill_id"`
}

func (r ValidateSkillRequest) parse() (id.Principal, id.SkillID, error) {
	owner, err := id.ParsePrincipal(r.Owner)
	if err != nil {
		return "", 0, err
	}
	return owner, id.SkillID(r.SkillID), nil
}

type AddEmploymentRequest struct {
	Employer  string `json:"employer"`
	Title     string `json:"title"`
	StartDate uint64 `json:"start_date"`
	EndDate   uint64 `json:"end_date"`
}

func (r AddEmploymentRequest) entry() (models.EmploymentEntry, error) {
	employer, err := id.ParsePrincipal(r.Employer)
	if err != nil {
		return models.EmploymentEntry{}, err
	}
	return models.EmploymentEntry{
		Employer:  employer,
		Title:     r.Title,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
	}, nil
}

type UpdateFeeRequest struct {
	FeeBasisPoints *uint64 `json:"fee_basis_points"`
}

type SkillResponse struct {
	OK    bool          `json:"ok"`
	Skill *models.Skill `json:"skill"`
}

type ValidationResponse struct {
	OK        bool          `json:"ok"`
	Completed bool          `json:"completed"`
	Skill     *models.Skill `json:"skill"`
}

type EmploymentResponse struct {
	OK     bool                     `json:"ok"`
	Record *models.EmploymentRecord `json:"record"`
}

type PlatformResponse struct {
	Owner          id.Principal `json:"owner"`
	FeeBasisPoints uint64       `json:"fee_basis_points"`
	UpdatedAt      id.Height    `json:"updated_at"`
	Height         id.Height    `json:"height"`
}

type HasValidatedResponse struct {
	Validated bool `json:"validated"`
}
