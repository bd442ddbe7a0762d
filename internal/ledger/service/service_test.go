package service

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"skillproof/internal/ledger/models"
	"skillproof/internal/ledger/service/mocks"
	"skillproof/internal/ledger/store/memory"
	id "skillproof/pkg/domain"
	dErrors "skillproof/pkg/domain-errors"
	audit "skillproof/pkg/platform/audit"
	"skillproof/pkg/platform/audit/publishers/compliance"
)

const (
	owner    id.Principal = "platform-owner"
	alice    id.Principal = "alice"
	bob      id.Principal = "bob"
	carol    id.Principal = "carol"
	outsider id.Principal = "mallory"

	blockchain = "blockchain"
)

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memory.Store
	service *Service
	height  id.Height
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.service = New(s.store, WithAuditPublisher(compliance.New(s.store.Audit())))
	s.height = 1
	_, err := s.service.InitPlatform(s.ctx, owner, 250, s.height)
	s.Require().NoError(err)
}

// at returns the context of the next call from caller, one block later.
func (s *ServiceSuite) at(caller id.Principal) models.Call {
	s.height++
	return models.Call{Caller: caller, Height: s.height}
}

func (s *ServiceSuite) register(p id.Principal) {
	s.Require().NoError(s.service.RegisterUser(s.ctx, s.at(p), string(p), "bio"))
}

func (s *ServiceSuite) skill(p id.Principal, required uint32) *models.Skill {
	sk, err := s.service.RegisterSkill(s.ctx, s.at(p), models.SkillDeclaration{
		Name:                "Clarity",
		Category:            blockchain,
		Description:         "smart contracts",
		RequiredValidations: required,
	})
	s.Require().NoError(err)
	return sk
}

func (s *ServiceSuite) validator(p id.Principal, expertise ...id.CategoryID) {
	s.register(p)
	s.Require().NoError(s.service.RegisterValidator(s.ctx, s.at(p), expertise))
}

func (s *ServiceSuite) requireCode(err error, code dErrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	s.Equal(code, dErrors.CodeOf(err), err.Error())
}

func (s *ServiceSuite) TestRegisterUser() {
	s.Run("creates profile with defaults at the call height", func() {
		call := s.at(alice)
		s.Require().NoError(s.service.RegisterUser(s.ctx, call, "John Doe", "bio"))

		profile, err := s.service.GetUserProfile(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal("John Doe", profile.Name)
		s.Equal(uint64(100), profile.ReputationScore)
		s.False(profile.IsValidator)
		s.Zero(profile.TotalValidations)
		s.Equal(call.Height, profile.RegistrationTime)
	})

	s.Run("second registration fails whatever the arguments", func() {
		err := s.service.RegisterUser(s.ctx, s.at(alice), "Someone Else", "other")
		s.requireCode(err, dErrors.CodeAlreadyRegistered)

		profile, err := s.service.GetUserProfile(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal("John Doe", profile.Name)
	})

	s.Run("overlong name is an invalid parameter", func() {
		long := strings.Repeat("x", models.MaxNameLength+1)
		err := s.service.RegisterUser(s.ctx, s.at(bob), long, "")
		s.requireCode(err, dErrors.CodeInvalidParameter)

		_, err = s.service.GetUserProfile(s.ctx, bob)
		s.requireCode(err, dErrors.CodeNotFound)
	})
}

func (s *ServiceSuite) TestRegisterSkill() {
	s.Run("unregistered caller", func() {
		_, err := s.service.RegisterSkill(s.ctx, s.at(alice), models.SkillDeclaration{Name: "x", Category: blockchain, RequiredValidations: 1})
		s.requireCode(err, dErrors.CodeNotRegistered)
	})

	s.register(alice)
	s.register(bob)

	s.Run("zero required validations", func() {
		_, err := s.service.RegisterSkill(s.ctx, s.at(alice), models.SkillDeclaration{Name: "x", Category: blockchain})
		s.requireCode(err, dErrors.CodeInvalidParameter)
	})

	s.Run("unknown category", func() {
		_, err := s.service.RegisterSkill(s.ctx, s.at(alice), models.SkillDeclaration{Name: "x", Category: "astrology", RequiredValidations: 1})
		s.requireCode(err, dErrors.CodeInvalidParameter)
	})

	s.Run("ids are global and sequential", func() {
		first := s.skill(alice, 1)
		second := s.skill(bob, 2)
		third := s.skill(alice, 3)
		s.Equal(id.SkillID(1), first.ID, "rejected declarations do not consume ids")
		s.Equal(first.ID+1, second.ID)
		s.Equal(second.ID+1, third.ID)
		s.Equal(id.CategoryID(1), first.CategoryID)
		s.False(first.Validated)
		s.Zero(first.CurrentValidations)

		owned, err := s.service.ListSkills(s.ctx, alice)
		s.Require().NoError(err)
		s.Len(owned, 2)
	})

	s.Run("lookup is scoped by owner", func() {
		_, err := s.service.GetSkill(s.ctx, bob, 1)
		s.requireCode(err, dErrors.CodeSkillNotFound)

		sk, err := s.service.GetSkill(s.ctx, alice, 1)
		s.Require().NoError(err)
		s.Equal(alice, sk.Owner)
	})
}

func (s *ServiceSuite) TestRegisterValidator() {
	s.Run("unregistered caller", func() {
		s.requireCode(s.service.RegisterValidator(s.ctx, s.at(alice), []id.CategoryID{1}), dErrors.CodeNotRegistered)
	})

	s.Run("expertise is stored as a set", func() {
		s.register(alice)
		s.Require().NoError(s.service.RegisterValidator(s.ctx, s.at(alice), []id.CategoryID{3, 1, 3, 1}))

		v, err := s.service.GetValidatorProfile(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal([]id.CategoryID{1, 3}, v.Expertise)

		profile, err := s.service.GetUserProfile(s.ctx, alice)
		s.Require().NoError(err)
		s.True(profile.IsValidator)
	})

	s.Run("already a validator", func() {
		s.requireCode(s.service.RegisterValidator(s.ctx, s.at(alice), []id.CategoryID{2}), dErrors.CodeAlreadyValidator)
	})

	s.Run("unknown or too many categories", func() {
		s.register(bob)
		s.requireCode(s.service.RegisterValidator(s.ctx, s.at(bob), []id.CategoryID{42}), dErrors.CodeInvalidParameter)
		many := []id.CategoryID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
		s.requireCode(s.service.RegisterValidator(s.ctx, s.at(bob), many), dErrors.CodeInvalidParameter)

		profile, err := s.service.GetUserProfile(s.ctx, bob)
		s.Require().NoError(err)
		s.False(profile.IsValidator, "rejected promotion leaves the flag untouched")
	})

	s.Run("not a validator", func() {
		_, err := s.service.GetValidatorProfile(s.ctx, bob)
		s.requireCode(err, dErrors.CodeNotFound)
	})
}

func (s *ServiceSuite) TestRegisterValidatorReputationThreshold() {
	policy := models.DefaultPolicy()
	policy.ValidatorMinReputation = 150
	s.service = New(s.store, WithPolicy(policy))

	s.register(alice)
	s.requireCode(s.service.RegisterValidator(s.ctx, s.at(alice), []id.CategoryID{1}), dErrors.CodeInsufficientReputation)
}

func (s *ServiceSuite) TestValidateSkillCompletesAndRewards() {
	s.register(alice)
	sk := s.skill(alice, 1)
	s.validator(bob, 1)

	result, err := s.service.ValidateSkill(s.ctx, s.at(bob), alice, sk.ID)
	s.Require().NoError(err)
	s.True(result.Completed)
	s.True(result.Skill.Validated)
	s.Equal(uint32(1), result.Skill.CurrentValidations)

	ownerProfile, err := s.service.GetUserProfile(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal(uint64(110), ownerProfile.ReputationScore)

	validatorProfile, err := s.service.GetUserProfile(s.ctx, bob)
	s.Require().NoError(err)
	s.Equal(uint64(1), validatorProfile.TotalValidations)
	s.Equal(uint64(100), validatorProfile.ReputationScore)

	done, err := s.service.HasValidated(s.ctx, sk.ID, bob)
	s.Require().NoError(err)
	s.True(done)

	events, err := s.store.Audit().ListBySubject(s.ctx, alice.String())
	s.Require().NoError(err)
	var actions []string
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	s.Contains(actions, string(audit.EventSkillValidated))
	s.Contains(actions, string(audit.EventSkillCompleted))
}

func (s *ServiceSuite) TestValidateSkillProgress() {
	s.register(alice)
	sk := s.skill(alice, 2)
	s.validator(bob, 1)
	s.validator(carol, 1, 2)

	first, err := s.service.ValidateSkill(s.ctx, s.at(bob), alice, sk.ID)
	s.Require().NoError(err)
	s.False(first.Completed)
	s.Equal(uint32(1), first.Skill.CurrentValidations)

	profile, err := s.service.GetUserProfile(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal(uint64(100), profile.ReputationScore, "no reward before completion")

	second, err := s.service.ValidateSkill(s.ctx, s.at(carol), alice, sk.ID)
	s.Require().NoError(err)
	s.True(second.Completed)

	validations, err := s.service.ListSkillValidations(s.ctx, alice, sk.ID)
	s.Require().NoError(err)
	s.Require().Len(validations, 2)
	s.Equal(bob, validations[0].Validator)
	s.Equal(carol, validations[1].Validator)
}

func (s *ServiceSuite) TestValidateSkillRejections() {
	s.register(alice)
	sk := s.skill(alice, 2)
	s.validator(bob, 1)
	s.validator(carol, 4)
	s.register(outsider)

	tests := []struct {
		name   string
		caller id.Principal
		owner  id.Principal
		skill  id.SkillID
		code   dErrors.Code
	}{
		{"caller not registered", "ghost", alice, sk.ID, dErrors.CodeNotRegistered},
		{"caller not a validator", outsider, alice, sk.ID, dErrors.CodeNotAuthorized},
		{"unknown skill", bob, alice, 99, dErrors.CodeSkillNotFound},
		{"wrong owner", bob, outsider, sk.ID, dErrors.CodeSkillNotFound},
		{"category mismatch", carol, alice, sk.ID, dErrors.CodeCategoryMismatch},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.ValidateSkill(s.ctx, s.at(tt.caller), tt.owner, tt.skill)
			s.requireCode(err, tt.code)
		})
	}

	s.Run("self validation is rejected regardless of expertise", func() {
		s.Require().NoError(s.service.RegisterValidator(s.ctx, s.at(alice), []id.CategoryID{1}))
		_, err := s.service.ValidateSkill(s.ctx, s.at(alice), alice, sk.ID)
		s.requireCode(err, dErrors.CodeSelfValidation)
	})

	s.Run("duplicate validation", func() {
		_, err := s.service.ValidateSkill(s.ctx, s.at(bob), alice, sk.ID)
		s.Require().NoError(err)
		_, err = s.service.ValidateSkill(s.ctx, s.at(bob), alice, sk.ID)
		s.requireCode(err, dErrors.CodeDuplicateValidation)

		got, err := s.service.GetSkill(s.ctx, alice, sk.ID)
		s.Require().NoError(err)
		s.Equal(uint32(1), got.CurrentValidations)
	})

	s.Run("validated skills are terminal", func() {
		s.validator("dave", 1)
		_, err := s.service.ValidateSkill(s.ctx, s.at("dave"), alice, sk.ID)
		s.Require().NoError(err)

		s.validator("erin", 1)
		_, err = s.service.ValidateSkill(s.ctx, s.at("erin"), alice, sk.ID)
		s.requireCode(err, dErrors.CodeSkillAlreadyValidated)

		got, err := s.service.GetSkill(s.ctx, alice, sk.ID)
		s.Require().NoError(err)
		s.True(got.Validated)
		s.Equal(got.RequiredValidations, got.CurrentValidations)

		profile, err := s.service.GetUserProfile(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal(uint64(110), profile.ReputationScore, "reward is paid once")
	})

	s.Run("already validated wins over self validation", func() {
		_, err := s.service.ValidateSkill(s.ctx, s.at(alice), alice, sk.ID)
		s.requireCode(err, dErrors.CodeSkillAlreadyValidated)
	})
}

func (s *ServiceSuite) TestEmployment() {
	entry := models.EmploymentEntry{Employer: "acme", Title: "Engineer", StartDate: 100, EndDate: 200}

	s.Run("unregistered caller", func() {
		_, err := s.service.AddEmploymentRecord(s.ctx, s.at(alice), entry)
		s.requireCode(err, dErrors.CodeNotRegistered)
	})

	s.register(alice)

	s.Run("end before start stores nothing", func() {
		bad := entry
		bad.StartDate, bad.EndDate = 200, 100
		_, err := s.service.AddEmploymentRecord(s.ctx, s.at(alice), bad)
		s.requireCode(err, dErrors.CodeInvalidDateRange)

		records, err := s.service.ListEmploymentRecords(s.ctx, alice)
		s.Require().NoError(err)
		s.Empty(records)
	})

	s.Run("dates beyond the storable range", func() {
		far := entry
		far.StartDate, far.EndDate = models.MaxAmount+1, 0
		_, err := s.service.AddEmploymentRecord(s.ctx, s.at(alice), far)
		s.requireCode(err, dErrors.CodeInvalidParameter)

		records, err := s.service.ListEmploymentRecords(s.ctx, alice)
		s.Require().NoError(err)
		s.Empty(records)
	})

	s.Run("append only history", func() {
		first, err := s.service.AddEmploymentRecord(s.ctx, s.at(alice), entry)
		s.Require().NoError(err)
		ongoing := entry
		ongoing.EndDate = 0
		second, err := s.service.AddEmploymentRecord(s.ctx, s.at(alice), ongoing)
		s.Require().NoError(err)
		s.True(second.IsOngoing())

		records, err := s.service.ListEmploymentRecords(s.ctx, alice)
		s.Require().NoError(err)
		s.Require().Len(records, 2)
		s.Equal(first.SequenceID, records[0].SequenceID)
		s.Equal(uint64(200), records[0].EndDate)
		s.Equal(second.SequenceID, records[1].SequenceID)
	})
}

func (s *ServiceSuite) TestPlatformFee() {
	s.Run("non-owner leaves the fee unchanged", func() {
		s.requireCode(s.service.UpdatePlatformFee(s.ctx, s.at(alice), 10), dErrors.CodeNotAuthorized)
		cfg, err := s.service.GetPlatformConfig(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(250), cfg.FeeBasisPoints)
	})

	s.Run("owner updates the fee", func() {
		call := s.at(owner)
		s.Require().NoError(s.service.UpdatePlatformFee(s.ctx, call, 500))
		cfg, err := s.service.GetPlatformConfig(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(500), cfg.FeeBasisPoints)
		s.Equal(call.Height, cfg.UpdatedAt)
	})

	s.Run("fee beyond the storable range is rejected", func() {
		s.requireCode(s.service.UpdatePlatformFee(s.ctx, s.at(owner), models.MaxAmount+1), dErrors.CodeInvalidParameter)
		cfg, err := s.service.GetPlatformConfig(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(500), cfg.FeeBasisPoints)

		s.Require().NoError(s.service.UpdatePlatformFee(s.ctx, s.at(owner), models.MaxAmount))
		s.Require().NoError(s.service.UpdatePlatformFee(s.ctx, s.at(owner), 500))
	})

	s.Run("init keeps the recorded owner", func() {
		cfg, err := s.service.InitPlatform(s.ctx, outsider, 1, s.height)
		s.Require().NoError(err)
		s.Equal(owner, cfg.Owner)
		s.Equal(uint64(500), cfg.FeeBasisPoints)
	})
}

func (s *ServiceSuite) TestInitPlatformRejectsUnstorableFee() {
	svc := New(memory.New())
	_, err := svc.InitPlatform(s.ctx, owner, models.MaxAmount+1, 1)
	s.requireCode(err, dErrors.CodeInvalidParameter)
	_, err = svc.GetPlatformConfig(s.ctx)
	s.requireCode(err, dErrors.CodeNotFound)
}

func (s *ServiceSuite) TestAuditFailureAbortsTheCall() {
	ctrl := gomock.NewController(s.T())
	publisher := mocks.NewMockAuditPublisher(ctrl)
	s.register(alice)
	sk := s.skill(alice, 1)
	s.validator(bob, 1)

	s.service = New(s.store, WithAuditPublisher(publisher))
	publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
	publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(dErrors.New(dErrors.CodeInternal, "outbox unavailable"))

	_, err := s.service.ValidateSkill(s.ctx, s.at(bob), alice, sk.ID)
	s.requireCode(err, dErrors.CodeInternal)

	got, err := s.service.GetSkill(s.ctx, alice, sk.ID)
	s.Require().NoError(err)
	s.False(got.Validated)
	s.Zero(got.CurrentValidations)

	profile, err := s.service.GetUserProfile(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal(uint64(100), profile.ReputationScore)

	validatorProfile, err := s.service.GetUserProfile(s.ctx, bob)
	s.Require().NoError(err)
	s.Zero(validatorProfile.TotalValidations)

	done, err := s.service.HasValidated(s.ctx, sk.ID, bob)
	s.Require().NoError(err)
	s.False(done)
}

func (s *ServiceSuite) TestCacheServesReadsAndIsInvalidated() {
	ctrl := gomock.NewController(s.T())
	cache := mocks.NewMockCache(ctrl)
	s.service = New(s.store, WithCache(cache))

	cached := &models.UserProfile{Owner: alice, Name: "cached"}
	cache.EXPECT().FindUser(gomock.Any(), alice).Return(cached, nil)
	profile, err := s.service.GetUserProfile(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal("cached", profile.Name)

	cache.EXPECT().Invalidate(gomock.Any(), models.ChangeSet{Users: []id.Principal{alice}}).Return(nil)
	s.register(alice)

	// Rejected calls commit nothing and invalidate nothing.
	s.requireCode(s.service.RegisterUser(s.ctx, s.at(alice), "again", ""), dErrors.CodeAlreadyRegistered)
}
