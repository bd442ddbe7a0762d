// Package memory is the in-process ledger store. Transactions hold the store
// lock for their whole duration and keep an undo journal, so a failed call
// leaves no trace.
package memory

import (
	"context"
	"slices"
	"sync"

	"skillproof/internal/ledger/models"
	id "skillproof/pkg/domain"
	dErrors "skillproof/pkg/domain-errors"
	audit "skillproof/pkg/platform/audit"
	auditmemory "skillproof/pkg/platform/audit/store/memory"
	"skillproof/pkg/platform/sentinel"
)

type Store struct {
	mu          sync.Mutex
	users       map[id.Principal]*models.UserProfile
	skills      map[id.SkillID]*models.Skill
	skillsBy    map[id.Principal][]id.SkillID
	validators  map[id.Principal]*models.ValidatorProfile
	validations map[id.SkillID][]*models.SkillValidation
	employment  map[id.Principal][]*models.EmploymentRecord
	platform    *models.PlatformConfig
	lastSkillID id.SkillID
	height      id.Height
	events      *auditmemory.InMemoryStore
}

func New() *Store {
	return &Store{
		users:       make(map[id.Principal]*models.UserProfile),
		skills:      make(map[id.SkillID]*models.Skill),
		skillsBy:    make(map[id.Principal][]id.SkillID),
		validators:  make(map[id.Principal]*models.ValidatorProfile),
		validations: make(map[id.SkillID][]*models.SkillValidation),
		employment:  make(map[id.Principal][]*models.EmploymentRecord),
		events:      auditmemory.NewInMemoryStore(),
	}
}

type txKey struct{}

type txState struct {
	store *Store
	undo  []func()
}

func (t *txState) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// RunInTx serializes fn against every other store access. A nested call
// joins the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) (err error) {
	if s.tx(ctx) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := &txState{store: s}
	defer func() {
		if r := recover(); r != nil {
			state.rollback()
			panic(r)
		}
	}()
	if err := fn(context.WithValue(ctx, txKey{}, state)); err != nil {
		state.rollback()
		return err
	}
	return nil
}

func (s *Store) tx(ctx context.Context) *txState {
	state, ok := ctx.Value(txKey{}).(*txState)
	if !ok || state.store != s {
		return nil
	}
	return state
}

// acquire locks the store unless ctx already runs inside one of its transactions.
func (s *Store) acquire(ctx context.Context) func() {
	if s.tx(ctx) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// journal registers undo for the current transaction. Outside a
// transaction writes commit immediately.
func (s *Store) journal(ctx context.Context, undo func()) {
	if state := s.tx(ctx); state != nil {
		state.undo = append(state.undo, undo)
	}
}

func (s *Store) FindUser(ctx context.Context, owner id.Principal) (*models.UserProfile, error) {
	defer s.acquire(ctx)()
	u, ok := s.users[owner]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) CreateUser(ctx context.Context, profile *models.UserProfile) error {
	defer s.acquire(ctx)()
	if _, ok := s.users[profile.Owner]; ok {
		return sentinel.ErrAlreadyUsed
	}
	cp := *profile
	s.users[profile.Owner] = &cp
	s.journal(ctx, func() { delete(s.users, profile.Owner) })
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, profile *models.UserProfile) error {
	defer s.acquire(ctx)()
	prev, ok := s.users[profile.Owner]
	if !ok {
		return sentinel.ErrNotFound
	}
	cp := *profile
	s.users[profile.Owner] = &cp
	s.journal(ctx, func() { s.users[profile.Owner] = prev })
	return nil
}

func (s *Store) NextSkillID(ctx context.Context) (id.SkillID, error) {
	defer s.acquire(ctx)()
	prev := s.lastSkillID
	s.lastSkillID++
	s.journal(ctx, func() { s.lastSkillID = prev })
	return s.lastSkillID, nil
}

func (s *Store) CreateSkill(ctx context.Context, skill *models.Skill) error {
	defer s.acquire(ctx)()
	if _, ok := s.skills[skill.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	cp := *skill
	s.skills[skill.ID] = &cp
	prevOwned := s.skillsBy[skill.Owner]
	s.skillsBy[skill.Owner] = append(slices.Clip(prevOwned), skill.ID)
	s.journal(ctx, func() {
		delete(s.skills, skill.ID)
		s.skillsBy[skill.Owner] = prevOwned
	})
	return nil
}

func (s *Store) FindSkill(ctx context.Context, skillID id.SkillID) (*models.Skill, error) {
	defer s.acquire(ctx)()
	sk, ok := s.skills[skillID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *sk
	return &cp, nil
}

func (s *Store) UpdateSkill(ctx context.Context, skill *models.Skill) error {
	defer s.acquire(ctx)()
	prev, ok := s.skills[skill.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	cp := *skill
	s.skills[skill.ID] = &cp
	s.journal(ctx, func() { s.skills[skill.ID] = prev })
	return nil
}

func (s *Store) ListSkillsByOwner(ctx context.Context, owner id.Principal) ([]*models.Skill, error) {
	defer s.acquire(ctx)()
	out := make([]*models.Skill, 0, len(s.skillsBy[owner]))
	for _, skillID := range s.skillsBy[owner] {
		cp := *s.skills[skillID]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) CreateValidator(ctx context.Context, profile *models.ValidatorProfile) error {
	defer s.acquire(ctx)()
	if _, ok := s.validators[profile.Owner]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.validators[profile.Owner] = cloneValidator(profile)
	s.journal(ctx, func() { delete(s.validators, profile.Owner) })
	return nil
}

func (s *Store) FindValidator(ctx context.Context, owner id.Principal) (*models.ValidatorProfile, error) {
	defer s.acquire(ctx)()
	v, ok := s.validators[owner]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneValidator(v), nil
}

func (s *Store) CreateValidation(ctx context.Context, validation *models.SkillValidation) error {
	defer s.acquire(ctx)()
	prev := s.validations[validation.SkillID]
	for _, v := range prev {
		if v.Validator == validation.Validator {
			return sentinel.ErrAlreadyUsed
		}
	}
	cp := *validation
	s.validations[validation.SkillID] = append(slices.Clip(prev), &cp)
	s.journal(ctx, func() { s.validations[validation.SkillID] = prev })
	return nil
}

func (s *Store) HasValidation(ctx context.Context, skillID id.SkillID, validator id.Principal) (bool, error) {
	defer s.acquire(ctx)()
	for _, v := range s.validations[skillID] {
		if v.Validator == validator {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListValidations(ctx context.Context, skillID id.SkillID) ([]*models.SkillValidation, error) {
	defer s.acquire(ctx)()
	out := make([]*models.SkillValidation, 0, len(s.validations[skillID]))
	for _, v := range s.validations[skillID] {
		cp := *v
		out = append(out, &cp)
	}
	return out, nil
}

// NextEmploymentSequence numbers each owner's records from 1.
func (s *Store) NextEmploymentSequence(ctx context.Context, owner id.Principal) (uint64, error) {
	defer s.acquire(ctx)()
	return uint64(len(s.employment[owner])) + 1, nil
}

func (s *Store) AppendEmployment(ctx context.Context, record *models.EmploymentRecord) error {
	defer s.acquire(ctx)()
	prev := s.employment[record.Owner]
	for _, r := range prev {
		if r.SequenceID == record.SequenceID {
			return sentinel.ErrAlreadyUsed
		}
	}
	cp := *record
	s.employment[record.Owner] = append(slices.Clip(prev), &cp)
	s.journal(ctx, func() { s.employment[record.Owner] = prev })
	return nil
}

func (s *Store) ListEmployment(ctx context.Context, owner id.Principal) ([]*models.EmploymentRecord, error) {
	defer s.acquire(ctx)()
	out := make([]*models.EmploymentRecord, 0, len(s.employment[owner]))
	for _, r := range s.employment[owner] {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) FindPlatformConfig(ctx context.Context) (*models.PlatformConfig, error) {
	defer s.acquire(ctx)()
	if s.platform == nil {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.platform
	return &cp, nil
}

func (s *Store) CreatePlatformConfig(ctx context.Context, cfg *models.PlatformConfig) error {
	defer s.acquire(ctx)()
	if s.platform != nil {
		return sentinel.ErrAlreadyUsed
	}
	cp := *cfg
	s.platform = &cp
	s.journal(ctx, func() { s.platform = nil })
	return nil
}

func (s *Store) UpdatePlatformConfig(ctx context.Context, cfg *models.PlatformConfig) error {
	defer s.acquire(ctx)()
	prev := s.platform
	if prev == nil {
		return sentinel.ErrNotFound
	}
	cp := *cfg
	s.platform = &cp
	s.journal(ctx, func() { s.platform = prev })
	return nil
}

func (s *Store) CurrentHeight(ctx context.Context) (id.Height, error) {
	defer s.acquire(ctx)()
	return s.height, nil
}

// AdvanceHeight seals a new block and returns its height.
func (s *Store) AdvanceHeight(ctx context.Context) (id.Height, error) {
	defer s.acquire(ctx)()
	prev := s.height
	s.height = prev.Next()
	s.journal(ctx, func() { s.height = prev })
	return s.height, nil
}

// Audit returns an audit store whose appends join the ledger transaction
// carried by ctx.
func (s *Store) Audit() *AuditLog {
	return &AuditLog{store: s}
}

// AuditLog is the transactional view of the in-memory audit trail.
type AuditLog struct {
	store *Store
}

func (a *AuditLog) Append(ctx context.Context, event audit.Event) error {
	n := a.store.events.Len()
	if err := a.store.events.Append(ctx, event); err != nil {
		return err
	}
	a.store.journal(ctx, func() { a.store.events.Truncate(n) })
	return nil
}

func (a *AuditLog) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	return a.store.events.ListBySubject(ctx, subject)
}

func (a *AuditLog) ListAll(ctx context.Context) ([]audit.Event, error) {
	return a.store.events.ListAll(ctx)
}

func cloneValidator(v *models.ValidatorProfile) *models.ValidatorProfile {
	cp := *v
	cp.Expertise = slices.Clone(v.Expertise)
	return &cp
}
