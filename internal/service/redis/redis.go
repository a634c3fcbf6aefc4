package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type (
	RedisService struct {
		rdb *redis.Client
	}

	Options struct {
		Addr     string
		Password string
		DB       int
	}
)

func NewRedis(rdb *redis.Client) *RedisService {
	return &RedisService{
		rdb: rdb,
	}
}

// Dial builds a client from opts and checks the server answers.
func Dial(ctx context.Context, opts Options) (*RedisService, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	svc := NewRedis(rdb)
	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}

// RPushAtomic appends to several lists inside one MULTI/EXEC.
func (r *RedisService) RPushAtomic(ctx context.Context, values map[string][]any) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, vals := range values {
			pipe.RPush(ctx, key, vals...)
		}
		return nil
	})
	return err
}

func (r *RedisService) LRange(ctx context.Context, key string) ([]string, error) {
	return r.rdb.LRange(ctx, key, 0, -1).Result()
}

func (r *RedisService) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisService) Close() error {
	return r.rdb.Close()
}
