//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"skillproof/internal/ledger/models"
	"skillproof/internal/ledger/service"
	"skillproof/internal/ledger/store/cache"
	"skillproof/internal/ledger/store/memory"
	id "skillproof/pkg/domain"
	dErrors "skillproof/pkg/domain-errors"
	"skillproof/pkg/platform/sentinel"
	"skillproof/pkg/testutil/containers"
)

type CacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *memory.Store
	cache *cache.Cache
	ctx   context.Context
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *CacheSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.redis.FlushAll(s.ctx))
	s.store = memory.New()
	s.cache = cache.New(s.redis.Client, s.store, time.Minute)
}

func (s *CacheSuite) TestReadThroughPopulatesRedis() {
	s.Require().NoError(s.store.CreateUser(s.ctx, &models.UserProfile{Owner: "alice", Name: "Alice", ReputationScore: 100}))

	got, err := s.cache.FindUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("Alice", got.Name)

	n, err := s.redis.Client.Exists(s.ctx, cache.UserKey("alice")).Result()
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *CacheSuite) TestMissesAreNotCached() {
	_, err := s.cache.FindSkill(s.ctx, 7)
	s.ErrorIs(err, sentinel.ErrNotFound)

	n, err := s.redis.Client.Exists(s.ctx, cache.SkillKey(7)).Result()
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *CacheSuite) TestServiceInvalidatesAfterCommit() {
	svc := service.New(s.store, service.WithCache(s.cache))
	_, err := svc.InitPlatform(s.ctx, "owner", 0, 1)
	s.Require().NoError(err)
	s.Require().NoError(svc.RegisterUser(s.ctx, models.Call{Caller: "alice", Height: 2}, "Alice", ""))
	s.Require().NoError(svc.RegisterUser(s.ctx, models.Call{Caller: "bob", Height: 2}, "Bob", ""))

	before, err := svc.GetUserProfile(s.ctx, "bob")
	s.Require().NoError(err)
	s.False(before.IsValidator)

	s.Require().NoError(svc.RegisterValidator(s.ctx, models.Call{Caller: "bob", Height: 3}, []id.CategoryID{1}))

	after, err := svc.GetUserProfile(s.ctx, "bob")
	s.Require().NoError(err)
	s.True(after.IsValidator, "promotion must not be hidden by a cached profile")

	v, err := svc.GetValidatorProfile(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal([]id.CategoryID{1}, v.Expertise)

	_, err = svc.GetSkill(s.ctx, "alice", 1)
	s.True(dErrors.HasCode(err, dErrors.CodeSkillNotFound))
}

func (s *CacheSuite) TestCommitDuringLoadIsNotOverwritten() {
	s.Require().NoError(s.store.CreateUser(s.ctx, &models.UserProfile{Owner: "alice", Name: "Alice", ReputationScore: 100}))
	src := &committingSource{Store: s.store}
	c := cache.New(s.redis.Client, src, time.Minute)

	src.afterLoad = func() {
		s.Require().NoError(s.store.UpdateUser(s.ctx, &models.UserProfile{Owner: "alice", Name: "Alice", ReputationScore: 110}))
		s.Require().NoError(c.Invalidate(s.ctx, models.ChangeSet{Users: []id.Principal{"alice"}}))
	}
	_, err := c.FindUser(s.ctx, "alice")
	s.Require().NoError(err)

	n, err := s.redis.Client.Exists(s.ctx, cache.UserKey("alice")).Result()
	s.Require().NoError(err)
	s.Zero(n, "value loaded before the commit must not be cached")

	src.afterLoad = nil
	got, err := c.FindUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(uint64(110), got.ReputationScore)
}

// committingSource runs afterLoad once a user row has been read.
type committingSource struct {
	*memory.Store
	afterLoad func()
}

func (c *committingSource) FindUser(ctx context.Context, owner id.Principal) (*models.UserProfile, error) {
	u, err := c.Store.FindUser(ctx, owner)
	if err == nil && c.afterLoad != nil {
		c.afterLoad()
	}
	return u, err
}
