package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired holder cannot drop a lock someone else has since taken.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// Client is the slice of go-redis used by Redis. *redis.Client satisfies it.
type Client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// Redis implements Locker with SET NX PX and a compare-and-delete release.
type Redis struct {
	client Client
	prefix string
	poll   time.Duration
}

func NewRedis(client Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "docdelivery:lock:"
	}
	return &Redis{client: client, prefix: prefix, poll: 10 * time.Millisecond}
}

// NewRedisFromURL parses a redis:// URL and builds a locker over a new client.
// The returned client must be closed by the caller.
func NewRedisFromURL(url, prefix string) (*Redis, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opts)
	return NewRedis(c, prefix), c, nil
}

var errHeld = errors.New("lock held")

// Lock polls until the key is free or ctx ends. Waiting is additionally
// bounded by ttl, after which any previous holder's key has expired anyway.
func (r *Redis) Lock(ctx context.Context, key string, ttl time.Duration) (Unlock, error) {
	token, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, err
	}
	full := r.prefix + key

	waitCtx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()

	b := retry.NewExponential(r.poll)
	b = retry.WithCappedDuration(20*r.poll, b)
	b = retry.WithJitterPercent(25, b)

	err = retry.Do(waitCtx, b, func(ctx context.Context) error {
		ok, err := r.client.SetNX(ctx, full, token, ttl).Result()
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
		}
		if !ok {
			return retry.RetryableError(errHeld)
		}
		return nil
	})
	if errors.Is(err, errHeld) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil, errors.Join(ErrNotAcquired, err)
	}
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func(ctx context.Context) error {
		var rerr error
		once.Do(func() {
			rerr = r.client.Eval(ctx, releaseScript, []string{full}, token).Err()
		})
		return rerr
	}, nil
}
