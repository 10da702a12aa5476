package store

import (
	"context"

	"github.com/go-redis/redis/v8"
)

const defaultRedisKey = "gatewarden:blocked"

// RedisStore keeps records in a capped Redis list, newest first. LPUSH plus
// LTRIM keeps the list bounded without a separate janitor.
type RedisStore struct {
	client     redis.UniversalClient
	key        string
	maxEntries int64
}

func NewRedisStore(client redis.UniversalClient, key string, maxEntries int64) *RedisStore {
	if key == "" {
		key = defaultRedisKey
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &RedisStore{client: client, key: key, maxEntries: maxEntries}
}

func (s *RedisStore) Append(ctx context.Context, record BlockedRequest) error {
	data, err := marshalRecord(record)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, data)
	pipe.LTrim(ctx, s.key, 0, s.maxEntries-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) List(ctx context.Context, offset, limit int) ([]BlockedRequest, int, error) {
	total, err := s.client.LLen(ctx, s.key).Result()
	if err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = int(total)
	}
	raw, err := s.client.LRange(ctx, s.key, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, err
	}

	records := make([]BlockedRequest, 0, len(raw))
	for _, item := range raw {
		record, err := unmarshalRecord([]byte(item))
		if err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, int(total), nil
}

func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	records, _, err := s.List(ctx, 0, 0)
	if err != nil {
		return Stats{}, err
	}
	return statsOf(records), nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
