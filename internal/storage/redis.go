package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"plantscan/internal/domain"
)

const (
	redisKeyPrefix = "plantscan:counter:"
	// counters outlive their day long enough for forward-only rollover checks
	defaultRedisTTL = 8 * 24 * time.Hour
)

// Every script first applies the forward-only rollover so increments for a new
// day never land on yesterday's hash.
const rolloverLua = `
local day = redis.call('HGET', KEYS[1], 'day')
if (not day) or day < ARGV[1] then
  redis.call('HSET', KEYS[1], 'day', ARGV[1], 'used', 0, 'bonus', 0, 'clicks', 0, 'updated', ARGV[2])
end
`

var (
	rolloverScript = redis.NewScript(rolloverLua + `
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return redis.call('HMGET', KEYS[1], 'day', 'used', 'bonus', 'clicks', 'updated')
`)

	incrementUsedScript = redis.NewScript(rolloverLua + `
redis.call('HINCRBY', KEYS[1], 'used', 1)
redis.call('HSET', KEYS[1], 'updated', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return redis.call('HMGET', KEYS[1], 'day', 'used', 'bonus', 'clicks', 'updated')
`)

	incrementBonusScript = redis.NewScript(rolloverLua + `
local applied = 0
if tonumber(redis.call('HGET', KEYS[1], 'clicks')) < tonumber(ARGV[4]) then
  redis.call('HINCRBY', KEYS[1], 'bonus', 1)
  redis.call('HINCRBY', KEYS[1], 'clicks', 1)
  redis.call('HSET', KEYS[1], 'updated', ARGV[2])
  applied = 1
end
redis.call('PEXPIRE', KEYS[1], ARGV[3])
local r = redis.call('HMGET', KEYS[1], 'day', 'used', 'bonus', 'clicks', 'updated')
r[6] = applied
return r
`)
)

// RedisCounterStore keeps the latest counter of each subject in a Redis hash.
// Rollover and bonus increments run as Lua scripts so the day check and the write
// are atomic across API replicas.
type RedisCounterStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCounterStore wraps an existing client. A non-positive ttl selects the
// default retention.
func NewRedisCounterStore(client redis.UniversalClient, ttl time.Duration) *RedisCounterStore {
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &RedisCounterStore{client: client, ttl: ttl}
}

func (s *RedisCounterStore) Current(ctx context.Context, subject domain.Subject) (domain.DailyCounter, error) {
	vals, err := s.client.HMGet(ctx, redisKey(subject), "day", "used", "bonus", "clicks", "updated").Result()
	if err != nil {
		return domain.DailyCounter{}, fmt.Errorf("redis counter current: %w", err)
	}
	return counterFromReply(subject, vals)
}

func (s *RedisCounterStore) Rollover(ctx context.Context, subject domain.Subject, day string) (domain.DailyCounter, error) {
	vals, err := rolloverScript.Run(ctx, s.client, []string{redisKey(subject)}, s.args(day)...).Slice()
	if err != nil {
		return domain.DailyCounter{}, fmt.Errorf("redis counter rollover: %w", err)
	}
	return counterFromReply(subject, vals)
}

func (s *RedisCounterStore) IncrementUsed(ctx context.Context, subject domain.Subject, day string) (domain.DailyCounter, error) {
	vals, err := incrementUsedScript.Run(ctx, s.client, []string{redisKey(subject)}, s.args(day)...).Slice()
	if err != nil {
		return domain.DailyCounter{}, fmt.Errorf("redis counter increment: %w", err)
	}
	return counterFromReply(subject, vals)
}

func (s *RedisCounterStore) IncrementBonus(ctx context.Context, subject domain.Subject, day string, maxClicks int) (domain.DailyCounter, bool, error) {
	args := append(s.args(day), maxClicks)
	vals, err := incrementBonusScript.Run(ctx, s.client, []string{redisKey(subject)}, args...).Slice()
	if err != nil {
		return domain.DailyCounter{}, false, fmt.Errorf("redis counter bonus: %w", err)
	}
	if len(vals) < 6 {
		return domain.DailyCounter{}, false, fmt.Errorf("redis counter bonus: short reply (%d values)", len(vals))
	}
	counter, err := counterFromReply(subject, vals[:5])
	if err != nil {
		return domain.DailyCounter{}, false, err
	}
	applied, _ := vals[5].(int64)
	return counter, applied == 1, nil
}

func (s *RedisCounterStore) args(day string) []interface{} {
	return []interface{}{day, time.Now().UnixMilli(), s.ttl.Milliseconds()}
}

func redisKey(subject domain.Subject) string {
	return redisKeyPrefix + subject.Key()
}

// counterFromReply decodes the HMGET field order day, used, bonus, clicks, updated.
// A missing day means the subject has no counter yet.
func counterFromReply(subject domain.Subject, vals []interface{}) (domain.DailyCounter, error) {
	if len(vals) < 5 {
		return domain.DailyCounter{}, fmt.Errorf("redis counter: short reply (%d values)", len(vals))
	}
	day, ok := vals[0].(string)
	if !ok || day == "" {
		return domain.DailyCounter{}, nil
	}
	counter := domain.DailyCounter{SubjectKey: subject.Key(), DayKey: day}
	ints := make([]int64, 4)
	for i := range ints {
		n, err := replyInt(vals[i+1])
		if err != nil {
			return domain.DailyCounter{}, fmt.Errorf("redis counter field %d: %w", i+1, err)
		}
		ints[i] = n
	}
	counter.UsedCount = int(ints[0])
	counter.BonusCount = int(ints[1])
	counter.ClicksToday = int(ints[2])
	if ints[3] > 0 {
		counter.UpdatedAt = time.UnixMilli(ints[3]).UTC()
	}
	return counter, nil
}

func replyInt(v interface{}) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return t, nil
	case string:
		if t == "" {
			return 0, nil
		}
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, errors.New("unexpected reply type")
	}
}

var _ domain.CounterStore = (*RedisCounterStore)(nil)
