package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// rebindScript moves a refresh family onto a new access id in one step.
//
//	KEYS[1] refresh key
//	ARGV[1] access key prefix, ARGV[2] new ajti, ARGV[3] rjti, ARGV[4] access ttl (ms)
//
// The refresh key keeps its remaining ttl. Returns the previous ajti, or false
// when the family no longer exists.
const rebindScript = `
local cur = redis.call('GET', KEYS[1])
if not cur then
	return false
end
local pttl = redis.call('PTTL', KEYS[1])
if cur ~= '' then
	redis.call('DEL', ARGV[1] .. cur)
end
redis.call('SET', ARGV[1] .. ARGV[2], ARGV[3], 'PX', ARGV[4])
if pttl > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', pttl)
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return cur
`

// unbindScript deletes a refresh family and its bound access entry.
//
//	KEYS[1] refresh key
//	ARGV[1] access key prefix
const unbindScript = `
local cur = redis.call('GET', KEYS[1])
if not cur then
	return false
end
redis.call('DEL', KEYS[1])
if cur ~= '' then
	redis.call('DEL', ARGV[1] .. cur)
end
return cur
`

var (
	rebindLua = redis.NewScript(rebindScript)
	unbindLua = redis.NewScript(unbindScript)
)

// Redis is the go-redis backed Registry.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

var _ Registry = (*Redis)(nil)

// NewRedis wraps an existing client. prefix, when set, is prepended to every
// key as "<prefix>:".
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix != "" {
		prefix += ":"
	}
	return &Redis{client: client, prefix: prefix}
}

// OpenRedis parses a redis:// or rediss:// url and connects. The connection is
// pinged before returning.
func OpenRedis(ctx context.Context, url, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("registry: parse redis url: %w", err)
	}

	r := NewRedis(redis.NewClient(opts), prefix)
	if err := r.Ping(ctx); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Redis) key(k string) string { return r.prefix + k }

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("registry: set %q: non-positive ttl %s", key, ttl)
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", unavailable(err)
	}
	return v, nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Exec runs ops inside MULTI/EXEC.
func (r *Redis) Exec(ctx context.Context, ops ...Op) error {
	if len(ops) == 0 {
		return nil
	}
	for _, op := range ops {
		if op.Kind == OpSet && op.TTL <= 0 {
			return fmt.Errorf("registry: exec set %q: non-positive ttl %s", op.Key, op.TTL)
		}
		if op.Kind != OpSet && op.Kind != OpDelete {
			return fmt.Errorf("registry: exec %q: unknown op %d", op.Key, op.Kind)
		}
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range ops {
			switch op.Kind {
			case OpSet:
				pipe.Set(ctx, r.key(op.Key), op.Value, op.TTL)
			case OpDelete:
				pipe.Del(ctx, r.key(op.Key))
			}
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Redis) Rebind(ctx context.Context, rjti, newAJTI string, accessTTL time.Duration) (string, error) {
	if accessTTL <= 0 {
		return "", fmt.Errorf("registry: rebind %q: non-positive ttl %s", rjti, accessTTL)
	}

	prev, err := rebindLua.Run(
		ctx,
		r.client,
		[]string{r.key(RefreshKey(rjti))},
		r.key(KindAccess+":"),
		newAJTI,
		rjti,
		accessTTL.Milliseconds(),
	).Text()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", unavailable(err)
	}
	return prev, nil
}

func (r *Redis) Unbind(ctx context.Context, rjti string) (string, error) {
	prev, err := unbindLua.Run(
		ctx,
		r.client,
		[]string{r.key(RefreshKey(rjti))},
		r.key(KindAccess+":"),
	).Text()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", unavailable(err)
	}
	return prev, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// unavailable keeps the cause in the chain so context.DeadlineExceeded is
// still matchable by callers.
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
