// Package cache is a Redis read-through cache for the ledger's point reads.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"skillproof/internal/ledger/models"
	id "skillproof/pkg/domain"
)

const (
	keyPrefix = "skillproof:"
	// generationTTL outlives any read in flight. A generation that expires
	// restarts at zero, which only matters if a load spans that whole period.
	generationTTL = 24 * time.Hour
)

// setIfCurrent stores KEYS[2] only while the generation at KEYS[1] still
// equals ARGV[1]. ARGV[3] is the entry TTL in milliseconds, 0 for none.
var setIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[1]) or '0'
if gen ~= ARGV[1] then
  return 0
end
if ARGV[3] == '0' then
  redis.call('SET', KEYS[2], ARGV[2])
else
  redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
end
return 1
`)

// bumpAndDelete takes KEYS as generation/entry pairs. Each generation is
// incremented before its entry is dropped.
var bumpAndDelete = redis.NewScript(`
for i = 1, #KEYS, 2 do
  redis.call('INCR', KEYS[i])
  redis.call('PEXPIRE', KEYS[i], ARGV[1])
  redis.call('DEL', KEYS[i + 1])
end
return #KEYS / 2
`)

// Source is the authoritative store behind the cache.
type Source interface {
	FindUser(ctx context.Context, owner id.Principal) (*models.UserProfile, error)
	FindSkill(ctx context.Context, skillID id.SkillID) (*models.Skill, error)
	FindValidator(ctx context.Context, owner id.Principal) (*models.ValidatorProfile, error)
}

// Cache serves lookups from Redis and falls back to the source on a miss or
// a Redis failure. Misses are not cached. Every key carries a generation that
// Invalidate bumps; a loaded value is only stored when the generation read
// before the load is still current, so a read racing a commit cannot put the
// pre-commit row back.
type Cache struct {
	client redis.Cmdable
	source Source
	ttl    time.Duration
	logger *slog.Logger
}

type Option func(*Cache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

func New(client redis.Cmdable, source Source, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		client: client,
		source: source,
		ttl:    ttl,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) FindUser(ctx context.Context, owner id.Principal) (*models.UserProfile, error) {
	return readThrough(ctx, c, UserKey(owner), func() (*models.UserProfile, error) {
		return c.source.FindUser(ctx, owner)
	})
}

func (c *Cache) FindSkill(ctx context.Context, skillID id.SkillID) (*models.Skill, error) {
	return readThrough(ctx, c, SkillKey(skillID), func() (*models.Skill, error) {
		return c.source.FindSkill(ctx, skillID)
	})
}

func (c *Cache) FindValidator(ctx context.Context, owner id.Principal) (*models.ValidatorProfile, error) {
	return readThrough(ctx, c, ValidatorKey(owner), func() (*models.ValidatorProfile, error) {
		return c.source.FindValidator(ctx, owner)
	})
}

// Invalidate bumps the generation of every key the change set names and
// drops the cached entry.
func (c *Cache) Invalidate(ctx context.Context, changes models.ChangeSet) error {
	keys := make([]string, 0, 2*(len(changes.Users)+len(changes.Skills)+len(changes.Validators)))
	for _, p := range changes.Users {
		keys = append(keys, generationKey(UserKey(p)), UserKey(p))
	}
	for _, s := range changes.Skills {
		keys = append(keys, generationKey(SkillKey(s)), SkillKey(s))
	}
	for _, p := range changes.Validators {
		keys = append(keys, generationKey(ValidatorKey(p)), ValidatorKey(p))
	}
	if len(keys) == 0 {
		return nil
	}
	return bumpAndDelete.Run(ctx, c.client, keys, generationTTL.Milliseconds()).Err()
}

func readThrough[T any](ctx context.Context, c *Cache, key string, load func() (*T, error)) (*T, error) {
	genKey := generationKey(key)
	gen, cacheable := "0", true
	vals, err := c.client.MGet(ctx, key, genKey).Result()
	switch {
	case err != nil:
		c.logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
		cacheable = false
	case len(vals) == 2:
		if g, ok := vals[1].(string); ok {
			gen = g
		}
		if raw, ok := vals[0].(string); ok {
			var v T
			if jsonErr := json.Unmarshal([]byte(raw), &v); jsonErr == nil {
				return &v, nil
			}
			c.logger.WarnContext(ctx, "discarding undecodable cache entry", "key", key)
		}
	}

	v, err := load()
	if err != nil {
		return nil, err
	}
	if !cacheable {
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v, nil
	}
	stored, err := setIfCurrent.Run(ctx, c.client, []string{genKey, key}, gen, data, c.ttl.Milliseconds()).Int()
	switch {
	case err != nil:
		c.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	case stored == 0:
		c.logger.DebugContext(ctx, "skipped cache write for invalidated key", "key", key)
	}
	return v, nil
}

func UserKey(owner id.Principal) string {
	return keyPrefix + "user:" + owner.String()
}

func SkillKey(skillID id.SkillID) string {
	return keyPrefix + "skill:" + skillID.String()
}

func ValidatorKey(owner id.Principal) string {
	return keyPrefix + "validator:" + owner.String()
}

func generationKey(key string) string {
	return keyPrefix + "gen:" + key[len(keyPrefix):]
}
