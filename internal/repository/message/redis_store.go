package message

import (
	"context"
	"encoding/json"
	"fmt"

	"voip_chat/internal/model"
	redisSvc "voip_chat/internal/service/redis"
)

const keyPrefix = "messages:"

// RedisStore keeps one Redis list per identity.
type RedisStore struct {
	redis *redisSvc.RedisService
}

func NewRedisStore(r *redisSvc.RedisService) *RedisStore {
	return &RedisStore{redis: r}
}

func logKey(identity string) string { return keyPrefix + identity }

// Append pushes both copies in one transaction so concurrent senders never leave half a message.
func (s *RedisStore) Append(ctx context.Context, msg model.Message) error {
	out, in := msg.Copies()
	outData, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStoreUnavailable, err)
	}
	inData, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStoreUnavailable, err)
	}

	values := map[string][]any{logKey(out.Owner()): {outData}}
	values[logKey(in.Owner())] = append(values[logKey(in.Owner())], inData)

	if err := s.redis.RPushAtomic(ctx, values); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Query(ctx context.Context, identity string, f Filter) ([]model.Record, error) {
	vals, err := s.redis.LRange(ctx, logKey(identity))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	records := make([]model.Record, 0, len(vals))
	for _, v := range vals {
		var r model.Record
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			return nil, fmt.Errorf("%w: decode: %v", ErrStoreUnavailable, err)
		}
		records = append(records, r)
	}
	return apply(records, f), nil
}

func (s *RedisStore) Close() error {
	return s.redis.Close()
}
