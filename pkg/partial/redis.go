package partial

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kart-io/summaryhub/pkg/errors"
)

const (
	redisKeyPrefix      = "summaryhub:partial:"
	redisOwnerIndex     = "summaryhub:partial:owner:"  // zset scored by cancellation time
	redisStatusIndex    = "summaryhub:partial:status:" // zset scored by cancellation time
	redisBatchIndex     = "summaryhub:partial:batch:"  // set of result ids
	defaultRecordExpiry = 14 * 24 * time.Hour
)

// RedisConfig contains the connection settings for the Redis repository
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	// RecordExpiry bounds how long records and index entries live in
	// Redis regardless of status transitions
	RecordExpiry time.Duration `json:"record_expiry" yaml:"record_expiry"`
}

// DefaultRedisConfig returns the default Redis repository configuration
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		RecordExpiry: defaultRecordExpiry,
	}
}

// RedisRepository persists partial results as JSON values with secondary
// indexes on owner, status, and batch id
type RedisRepository struct {
	client         *redis.Client
	expiry         time.Duration
	externalClient bool
}

// NewRedisRepository creates a repository with its own connection
func NewRedisRepository(config *RedisConfig) (*RedisRepository, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, errors.ErrConnectionFailed, "redis connection failed")
	}

	expiry := config.RecordExpiry
	if expiry <= 0 {
		expiry = defaultRecordExpiry
	}
	return &RedisRepository{client: client, expiry: expiry}, nil
}

// NewRedisRepositoryWithClient reuses an externally managed client
func NewRedisRepositoryWithClient(client *redis.Client) (*RedisRepository, error) {
	if client == nil {
		return nil, errors.New(errors.ErrInvalidConfig, "redis client cannot be nil")
	}
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrConnectionFailed, "redis connection test failed")
	}
	return &RedisRepository{client: client, expiry: defaultRecordExpiry, externalClient: true}, nil
}

func (r *RedisRepository) Save(ctx context.Context, result *PartialResult) error {
	key := redisKeyPrefix + result.ID
	payload, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, errors.ErrStorageFailed, "failed to encode partial result")
	}

	created, err := r.client.SetNX(ctx, key, payload, r.expiry).Result()
	if err != nil {
		return errors.Wrap(err, errors.ErrStorageFailed, "failed to save partial result")
	}
	if !created {
		return errors.New(errors.ErrAlreadyExists, "partial result already saved").WithDiagnostic("id", result.ID)
	}

	return r.indexResult(ctx, result, "")
}

func (r *RedisRepository) Get(ctx context.Context, id string) (*PartialResult, error) {
	payload, err := r.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, errors.New(errors.ErrNotFound, "partial result not found").WithDiagnostic("id", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrStorageFailed, "failed to load partial result")
	}

	var result PartialResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, errors.Wrap(err, errors.ErrStorageFailed, "failed to decode partial result")
	}
	return &result, nil
}

func (r *RedisRepository) Update(ctx context.Context, result *PartialResult) error {
	previous, err := r.Get(ctx, result.ID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, errors.ErrStorageFailed, "failed to encode partial result")
	}
	if err := r.client.Set(ctx, redisKeyPrefix+result.ID, payload, r.expiry).Err(); err != nil {
		return errors.Wrap(err, errors.ErrStorageFailed, "failed to update partial result")
	}

	previousStatus := ""
	if previous.Status != result.Status {
		previousStatus = string(previous.Status)
	}
	return r.indexResult(ctx, result, previousStatus)
}

func (r *RedisRepository) ListByOwner(ctx context.Context, owner string, page, size int) ([]*PartialResult, int, error) {
	indexKey := redisOwnerIndex + owner

	total, err := r.client.ZCard(ctx, indexKey).Result()
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrStorageFailed, "failed to count partial results")
	}

	start, end := pageBounds(int(total), page, size)
	if start == end {
		return nil, int(total), nil
	}

	// Most recent first
	ids, err := r.client.ZRevRange(ctx, indexKey, int64(start), int64(end-1)).Result()
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrStorageFailed, "failed to list partial results")
	}

	results, err := r.fetchAll(ctx, ids)
	return results, int(total), err
}

func (r *RedisRepository) ListByStatusBefore(ctx context.Context, status Status, cutoff time.Time) ([]*PartialResult, error) {
	ids, err := r.client.ZRangeByScore(ctx, redisStatusIndex+string(status), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("(%d", cutoff.UnixMilli()),
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrStorageFailed, "failed to list partial results by status")
	}
	return r.fetchAll(ctx, ids)
}

func (r *RedisRepository) ListByBatch(ctx context.Context, batchID string) ([]*PartialResult, error) {
	ids, err := r.client.SMembers(ctx, redisBatchIndex+batchID).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrStorageFailed, "failed to list partial results by batch")
	}
	return r.fetchAll(ctx, ids)
}

// Ping reports storage health
func (r *RedisRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, errors.ErrConnectionFailed, "redis ping failed")
	}
	return nil
}

// Close releases the connection unless it is externally managed
func (r *RedisRepository) Close() error {
	if r.externalClient {
		return nil
	}
	return r.client.Close()
}

// indexResult maintains the owner/status/batch secondary indexes; the
// previous status entry is removed on transitions
func (r *RedisRepository) indexResult(ctx context.Context, result *PartialResult, previousStatus string) error {
	score := float64(result.CancelledAt.UnixMilli())

	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, redisOwnerIndex+result.Owner, redis.Z{Score: score, Member: result.ID})
	pipe.ZAdd(ctx, redisStatusIndex+string(result.Status), redis.Z{Score: score, Member: result.ID})
	if previousStatus != "" {
		pipe.ZRem(ctx, redisStatusIndex+previousStatus, result.ID)
	}
	pipe.SAdd(ctx, redisBatchIndex+result.BatchID, result.ID)
	pipe.Expire(ctx, redisOwnerIndex+result.Owner, r.expiry)
	pipe.Expire(ctx, redisStatusIndex+string(result.Status), r.expiry)
	pipe.Expire(ctx, redisBatchIndex+result.BatchID, r.expiry)

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, errors.ErrStorageFailed, "failed to index partial result")
	}
	return nil
}

// fetchAll loads many records, skipping ids whose value already expired
func (r *RedisRepository) fetchAll(ctx context.Context, ids []string) ([]*PartialResult, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisKeyPrefix + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrStorageFailed, "failed to fetch partial results")
	}

	results := make([]*PartialResult, 0, len(values))
	for _, value := range values {
		payload, ok := value.(string)
		if !ok {
			continue
		}
		var result PartialResult
		if err := json.Unmarshal([]byte(payload), &result); err != nil {
			continue
		}
		results = append(results, &result)
	}
	return results, nil
}

var _ Repository = (*RedisRepository)(nil)
