package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/benmeehan/rendezvous-agent/pkg/geo"
	"github.com/redis/go-redis/v9"
)

// RedisStore stores each location document as a hash with latitude/longitude fields.
type RedisStore struct {
	client     redis.Cmdable
	collection string
}

// NewRedisStore creates a RedisStore on top of an existing client.
func NewRedisStore(client redis.Cmdable, collection string) *RedisStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &RedisStore{
		client:     client,
		collection: collection,
	}
}

// Get reads the hash for key and decodes it into a coordinate.
func (r *RedisStore) Get(ctx context.Context, key string) (geo.Coordinate, error) {
	fields, err := r.client.HGetAll(ctx, r.hashKey(key)).Result()
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("redis read %s: %w", key, err)
	}
	if len(fields) == 0 {
		return geo.Coordinate{}, ErrDocumentNotFound
	}

	doc := make(map[string]any, len(fields))
	for name, raw := range fields {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			doc[name] = raw
			continue
		}
		doc[name] = value
	}
	return DecodeDocument(doc)
}

// Set overwrites the hash for key with the given coordinate.
func (r *RedisStore) Set(ctx context.Context, key string, coord geo.Coordinate) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		hashKey := r.hashKey(key)
		pipe.Del(ctx, hashKey)
		pipe.HSet(ctx, hashKey,
			fieldLatitude, strconv.FormatFloat(coord.Latitude, 'f', -1, 64),
			fieldLongitude, strconv.FormatFloat(coord.Longitude, 'f', -1, 64),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) hashKey(key string) string {
	return r.collection + ":" + key
}
