package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	vmodels "riskwatch/internal/views/models"
	id "riskwatch/pkg/domain"
	"riskwatch/pkg/platform/sentinel"
)

const (
	// viewKeyPrefix namespaces every generation of views.
	viewKeyPrefix = "riskwatch:views:"
	// currentGenerationKey points at the generation readers should use.
	currentGenerationKey = viewKeyPrefix + "current"

	defaultRetireAfter = 5 * time.Minute
	// writeChunk bounds the fields sent per HSET.
	writeChunk = 500
)

// RedisStore writes each cycle into a fresh generation of hashes and then
// flips the current pointer. The previous generation expires after a grace
// period so in-flight readers can finish.
type RedisStore struct {
	client      *redis.Client
	retireAfter time.Duration
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithRetireAfter sets how long a replaced generation stays readable.
func WithRetireAfter(d time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.retireAfter = d
		}
	}
}

// NewRedisStore constructs a Redis-backed view store.
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{client: client, retireAfter: defaultRetireAfter}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

type generationKeys struct {
	current, history, profiles, cycle string
}

func keysFor(generation string) generationKeys {
	base := viewKeyPrefix + generation + ":"
	return generationKeys{
		current:  base + "current_address",
		history:  base + "address_history",
		profiles: base + "risk_profiles",
		cycle:    base + "cycle",
	}
}

func (k generationKeys) all() []string {
	return []string{k.current, k.history, k.profiles, k.cycle}
}

func (s *RedisStore) Replace(ctx context.Context, set *vmodels.ViewSet) error {
	generation := set.Cycle.CycleID.String()
	keys := keysFor(generation)

	current := make([]any, 0, 2*len(set.Current))
	for _, row := range set.Current {
		raw, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("encode current address %s: %w", row.CustomerID, err)
		}
		current = append(current, string(row.CustomerID), raw)
	}

	grouped := make(map[id.CustomerID][]vmodels.AddressRow)
	for _, row := range set.History {
		grouped[row.CustomerID] = append(grouped[row.CustomerID], row)
	}
	history := make([]any, 0, 2*len(grouped))
	for cid, rows := range grouped {
		raw, err := json.Marshal(rows)
		if err != nil {
			return fmt.Errorf("encode address history %s: %w", cid, err)
		}
		history = append(history, string(cid), raw)
	}

	profiles := make([]any, 0, 2*len(set.Profiles))
	for _, p := range set.Profiles {
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode profile %s: %w", p.CustomerID, err)
		}
		profiles = append(profiles, string(p.CustomerID), raw)
	}

	report, err := json.Marshal(set.Cycle)
	if err != nil {
		return fmt.Errorf("encode cycle report: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, keys.all()...)
	hsetChunks(ctx, pipe, keys.current, current)
	hsetChunks(ctx, pipe, keys.history, history)
	hsetChunks(ctx, pipe, keys.profiles, profiles)
	pipe.Set(ctx, keys.cycle, report, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write view generation %s: %w", generation, err)
	}

	previous, err := s.client.SetArgs(ctx, currentGenerationKey, generation, redis.SetArgs{Get: true}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("switch view generation: %w", err)
	}
	if previous != "" && previous != generation {
		retire := s.client.Pipeline()
		for _, key := range keysFor(previous).all() {
			retire.Expire(ctx, key, s.retireAfter)
		}
		if _, err := retire.Exec(ctx); err != nil {
			return fmt.Errorf("retire view generation %s: %w", previous, err)
		}
	}
	return nil
}

func hsetChunks(ctx context.Context, pipe redis.Pipeliner, key string, pairs []any) {
	for start := 0; start < len(pairs); start += 2 * writeChunk {
		end := min(start+2*writeChunk, len(pairs))
		pipe.HSet(ctx, key, pairs[start:end]...)
	}
}

func (s *RedisStore) generation(ctx context.Context) (generationKeys, error) {
	generation, err := s.client.Get(ctx, currentGenerationKey).Result()
	if errors.Is(err, redis.Nil) {
		return generationKeys{}, sentinel.ErrNotFound
	}
	if err != nil {
		return generationKeys{}, fmt.Errorf("read view generation: %w", err)
	}
	return keysFor(generation), nil
}

func hgetJSON[T any](ctx context.Context, client *redis.Client, key, field string) (T, error) {
	var out T
	raw, err := client.HGet(ctx, key, field).Bytes()
	if errors.Is(err, redis.Nil) {
		return out, sentinel.ErrNotFound
	}
	if err != nil {
		return out, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}

func (s *RedisStore) CurrentAddress(ctx context.Context, cid id.CustomerID) (vmodels.AddressRow, error) {
	keys, err := s.generation(ctx)
	if err != nil {
		return vmodels.AddressRow{}, err
	}
	return hgetJSON[vmodels.AddressRow](ctx, s.client, keys.current, string(cid))
}

func (s *RedisStore) AddressHistory(ctx context.Context, cid id.CustomerID) ([]vmodels.AddressRow, error) {
	keys, err := s.generation(ctx)
	if err != nil {
		return nil, err
	}
	return hgetJSON[[]vmodels.AddressRow](ctx, s.client, keys.history, string(cid))
}

func (s *RedisStore) RiskProfile(ctx context.Context, cid id.CustomerID) (vmodels.RiskProfile, error) {
	keys, err := s.generation(ctx)
	if err != nil {
		return vmodels.RiskProfile{}, err
	}
	return hgetJSON[vmodels.RiskProfile](ctx, s.client, keys.profiles, string(cid))
}

// ListRiskProfiles filters in process; the hash holds one generation only.
func (s *RedisStore) ListRiskProfiles(ctx context.Context, filter vmodels.Filter) ([]vmodels.RiskProfile, error) {
	keys, err := s.generation(ctx)
	if err != nil {
		return nil, err
	}
	values, err := s.client.HVals(ctx, keys.profiles).Result()
	if err != nil {
		return nil, fmt.Errorf("list risk profiles: %w", err)
	}
	out := make([]vmodels.RiskProfile, 0, len(values))
	for _, v := range values {
		var p vmodels.RiskProfile
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			return nil, fmt.Errorf("decode risk profile: %w", err)
		}
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b vmodels.RiskProfile) int {
		switch {
		case a.CustomerID < b.CustomerID:
			return -1
		case a.CustomerID > b.CustomerID:
			return 1
		}
		return 0
	})
	return vmodels.Page(out, filter), nil
}

func (s *RedisStore) LatestCycle(ctx context.Context) (vmodels.CycleReport, error) {
	keys, err := s.generation(ctx)
	if err != nil {
		return vmodels.CycleReport{}, err
	}
	raw, err := s.client.Get(ctx, keys.cycle).Bytes()
	if errors.Is(err, redis.Nil) {
		return vmodels.CycleReport{}, sentinel.ErrNotFound
	}
	if err != nil {
		return vmodels.CycleReport{}, fmt.Errorf("read latest cycle: %w", err)
	}
	var report vmodels.CycleReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return vmodels.CycleReport{}, fmt.Errorf("decode cycle report: %w", err)
	}
	return report, nil
}
