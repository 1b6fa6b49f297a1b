package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// Locker guards a task across instances. TryLock never waits: when another
// holder has the lock it returns acquired=false and a nil error.
type Locker interface {
	TryLock(ctx context.Context, task string) (unlock func(), acquired bool, err error)
}

const lockPrefix = "pension:scheduler:lock:"

// RedisLocker implements Locker with a single-try redsync mutex per task.
// The expiry bounds how long a crashed instance can block a task.
type RedisLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	logger *slog.Logger
}

func NewRedisLocker(client redis.UniversalClient, expiry time.Duration, logger *slog.Logger) *RedisLocker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
		logger: logger,
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, task string) (func(), bool, error) {
	mutex := l.rs.NewMutex(lockPrefix+task,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("acquire lock for %s: %w", task, err)
	}

	unlock := func() {
		// the task may have run past the expiry; the lock is gone either way
		if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
			l.logger.WarnContext(ctx, "failed to release task lock", "task", task, "error", err)
		}
	}
	return unlock, true, nil
}
