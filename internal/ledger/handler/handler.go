package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"skillproof/internal/ledger/models"
	"skillproof/internal/ledger/service"
	id "skillproof/pkg/domain"
	dErrors "skillproof/pkg/domain-errors"
	"skillproof/pkg/platform/httputil"
	"skillproof/pkg/platform/middleware/auth"
	"skillproof/pkg/platform/middleware/request"
	"skillproof/pkg/platform/middleware/requesttime"
	"skillproof/pkg/requestcontext"
)

const defaultRequestTimeout = 30 * time.Second

// Ledger defines the interface for ledger operations.
type Ledger interface {
	Height() id.Height
	Categories() []models.Category

	RegisterUser(ctx context.Context, caller id.Principal, name, bio string) error
	RegisterSkill(ctx context.Context, caller id.Principal, decl models.SkillDeclaration) (*models.Skill, error)
	RegisterValidator(ctx context.Context, caller id.Principal, expertise []id.CategoryID) error
	ValidateSkill(ctx context.Context, caller, owner id.Principal, skillID id.SkillID) (*service.ValidationResult, error)
	AddEmploymentRecord(ctx context.Context, caller id.Principal, entry models.EmploymentEntry) (*models.EmploymentRecord, error)
	UpdatePlatformFee(ctx context.Context, caller id.Principal, feeBasisPoints uint64) error

	GetUserProfile(ctx context.Context, owner id.Principal) (*models.UserProfile, error)
	GetSkill(ctx context.Context, owner id.Principal, skillID id.SkillID) (*models.Skill, error)
	ListSkills(ctx context.Context, owner id.Principal) ([]*models.Skill, error)
	ListSkillValidations(ctx context.Context, owner id.Principal, skillID id.SkillID) ([]*models.SkillValidation, error)
	HasValidated(ctx context.Context, skillID id.SkillID, validator id.Principal) (bool, error)
	GetValidatorProfile(ctx context.Context, owner id.Principal) (*models.ValidatorProfile, error)
	ListEmploymentRecords(ctx context.Context, owner id.Principal) ([]*models.EmploymentRecord, error)
	GetPlatformConfig(ctx context.Context) (*models.PlatformConfig, error)
}

// Handler serves the ledger's HTTP API under /v1.
type Handler struct {
	ledger         Ledger
	logger         *slog.Logger
	jwtValidator   auth.JWTValidator
	requestTimeout time.Duration
	writeLimit     func(http.Handler) http.Handler
}

type Option func(*Handler)

func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.requestTimeout = d
		}
	}
}

// WithWriteLimiter throttles authenticated mutations. The middleware runs
// after the caller is resolved.
func WithWriteLimiter(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.writeLimit = mw
	}
}

func New(ledger Ledger, logger *slog.Logger, jwtValidator auth.JWTValidator, opts ...Option) *Handler {
	h := &Handler{
		ledger:         ledger,
		logger:         logger,
		jwtValidator:   jwtValidator,
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the ledger routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Use(request.Recovery(h.logger))
		r.Use(request.RequestID)
		r.Use(requesttime.Middleware)
		r.Use(request.Logger(h.logger))
		r.Use(request.Timeout(h.requestTimeout))
		r.Use(request.ContentTypeJSON)

		r.Get("/categories", h.handleListCategories)
		r.Get("/platform", h.handleGetPlatform)
		r.Get("/users/{principal}", h.handleGetUser)
		r.Get("/users/{principal}/skills", h.handleListSkills)
		r.Get("/users/{principal}/skills/{skillID}", h.handleGetSkill)
		r.Get("/users/{principal}/skills/{skillID}/validations", h.handleListValidations)
		r.Get("/users/{principal}/skills/{skillID}/validations/{validator}", h.handleHasValidated)
		r.Get("/users/{principal}/employment", h.handleListEmployment)
		r.Get("/validators/{principal}", h.handleGetValidator)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireCaller(h.jwtValidator, h.logger))
			if h.writeLimit != nil {
				r.Use(h.writeLimit)
			}
			r.Post("/users", h.handleRegisterUser)
			r.Post("/skills", h.handleRegisterSkill)
			r.Post("/validators", h.handleRegisterValidator)
			r.Post("/validations", h.handleValidateSkill)
			r.Post("/employment", h.handleAddEmployment)
			r.Put("/platform/fee", h.handleUpdateFee)
		})
	})
}

func (h *Handler) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.ledger.RegisterUser(r.Context(), caller(r), req.Name, req.Bio); err != nil {
		h.writeError(w, r, "register_user", err)
		return
	}
	httputil.WriteOK(w)
}

func (h *Handler) handleRegisterSkill(w http.ResponseWriter, r *http.Request) {
	var req RegisterSkillRequest
	if !h.decode(w, r, &req) {
		return
	}
	skill, err := h.ledger.RegisterSkill(r.Context(), caller(r), req.declaration())
	if err != nil {
		h.writeError(w, r, "register_skill", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SkillResponse{OK: true, Skill: skill})
}

func (h *Handler) handleRegisterValidator(w http.ResponseWriter, r *http.Request) {
	var req RegisterValidatorRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.ledger.RegisterValidator(r.Context(), caller(r), req.categories()); err != nil {
		h.writeError(w, r, "register_validator", err)
		return
	}
	httputil.WriteOK(w)
}

func (h *Handler) handleValidateSkill(w http.ResponseWriter, r *http.Request) {
	var req ValidateSkillRequest
	if !h.decode(w, r, &req) {
		return
	}
	owner, skillID, err := req.parse()
	if err != nil {
		h.writeError(w, r, "validate_skill", err)
		return
	}
	res, err := h.ledger.ValidateSkill(r.Context(), caller(r), owner, skillID)
	if err != nil {
		h.writeError(w, r, "validate_skill", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ValidationResponse{OK: true, Completed: res.Completed, Skill: res.Skill})
}

func (h *Handler) handleAddEmployment(w http.ResponseWriter, r *http.Request) {
	var req AddEmploymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	entry, err := req.entry()
	if err != nil {
		h.writeError(w, r, "add_employment_record", err)
		return
	}
	rec, err := h.ledger.AddEmploymentRecord(r.Context(), caller(r), entry)
	if err != nil {
		h.writeError(w, r, "add_employment_record", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, EmploymentResponse{OK: true, Record: rec})
}

func (h *Handler) handleUpdateFee(w http.ResponseWriter, r *http.Request) {
	var req UpdateFeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.FeeBasisPoints == nil {
		h.writeError(w, r, "update_platform_fee", dErrors.New(dErrors.CodeInvalidInput, "fee_basis_points is required"))
		return
	}
	if err := h.ledger.UpdatePlatformFee(r.Context(), caller(r), *req.FeeBasisPoints); err != nil {
		h.writeError(w, r, "update_platform_fee", err)
		return
	}
	httputil.WriteOK(w)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.principalParam(w, r, "principal")
	if !ok {
		return
	}
	profile, err := h.ledger.GetUserProfile(r.Context(), owner)
	if err != nil {
		h.writeError(w, r, "get_user_profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleListSkills(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.principalParam(w, r, "principal")
	if !ok {
		return
	}
	skills, err := h.ledger.ListSkills(r.Context(), owner)
	if err != nil {
		h.writeError(w, r, "list_skills", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, nonNil(skills))
}

func (h *Handler) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	owner, skillID, ok := h.skillParams(w, r)
	if !ok {
		return
	}
	skill, err := h.ledger.GetSkill(r.Context(), owner, skillID)
	if err != nil {
		h.writeError(w, r, "get_skill", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, skill)
}

func (h *Handler) handleListValidations(w http.ResponseWriter, r *http.Request) {
	owner, skillID, ok := h.skillParams(w, r)
	if !ok {
		return
	}
	validations, err := h.ledger.ListSkillValidations(r.Context(), owner, skillID)
	if err != nil {
		h.writeError(w, r, "list_skill_validations", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, nonNil(validations))
}

func (h *Handler) handleHasValidated(w http.ResponseWriter, r *http.Request) {
	owner, skillID, ok := h.skillParams(w, r)
	if !ok {
		return
	}
	validator, ok := h.principalParam(w, r, "validator")
	if !ok {
		return
	}
	ctx := r.Context()
	if _, err := h.ledger.GetSkill(ctx, owner, skillID); err != nil {
		h.writeError(w, r, "has_validated", err)
		return
	}
	validated, err := h.ledger.HasValidated(ctx, skillID, validator)
	if err != nil {
		h.writeError(w, r, "has_validated", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HasValidatedResponse{Validated: validated})
}

func (h *Handler) handleListEmployment(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.principalParam(w, r, "principal")
	if !ok {
		return
	}
	records, err := h.ledger.ListEmploymentRecords(r.Context(), owner)
	if err != nil {
		h.writeError(w, r, "list_employment_records", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, nonNil(records))
}

func (h *Handler) handleGetValidator(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.principalParam(w, r, "principal")
	if !ok {
		return
	}
	profile, err := h.ledger.GetValidatorProfile(r.Context(), owner)
	if err != nil {
		h.writeError(w, r, "get_validator_profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleGetPlatform(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.ledger.GetPlatformConfig(r.Context())
	if err != nil {
		h.writeError(w, r, "get_platform_config", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PlatformResponse{
		Owner:          cfg.Owner,
		FeeBasisPoints: cfg.FeeBasisPoints,
		UpdatedAt:      cfg.UpdatedAt,
		Height:         h.ledger.Height(),
	})
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.ledger.Categories())
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httputil.DecodeJSON(w, r, httputil.DefaultMaxBodyBytes, dst); err != nil {
		h.logger.WarnContext(r.Context(), "invalid request body",
			"path", r.URL.Path,
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, err)
		return false
	}
	return true
}

func (h *Handler) principalParam(w http.ResponseWriter, r *http.Request, name string) (id.Principal, bool) {
	p, err := id.ParsePrincipal(chi.URLParam(r, name))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return p, true
}

func (h *Handler) skillParams(w http.ResponseWriter, r *http.Request) (id.Principal, id.SkillID, bool) {
	owner, ok := h.principalParam(w, r, "principal")
	if !ok {
		return "", 0, false
	}
	skillID, err := id.ParseSkillID(chi.URLParam(r, "skillID"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", 0, false
	}
	return owner, skillID, true
}

// writeError logs rejections at Warn and failures at Error before writing
// the envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	status := httputil.StatusFor(dErrors.CodeOf(err))
	attrs := []any{
		"operation", op,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "ledger call failed", attrs...)
	} else {
		h.logger.WarnContext(ctx, "ledger call rejected", attrs...)
	}
	httputil.WriteError(w, err)
}

func caller(r *http.Request) id.Principal {
	return requestcontext.Caller(r.Context())
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
