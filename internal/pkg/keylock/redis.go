package keylock

import (
	"context"
	"errors"
	"time"

	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"github.com/lk2023060901/signage-backend/internal/pkg/redis"
	"go.uber.org/zap"
)

// Redis locks keys through SET NX so that several replicas serialize on the same key
type Redis struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
	logger     *logger.Logger
}

// NewRedis creates a redis backed locker
func NewRedis(client *redis.Client, prefix string, ttl time.Duration, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{
		client:     client,
		prefix:     prefix,
		ttl:        ttl,
		retryDelay: 20 * time.Millisecond,
		logger:     log,
	}
}

// Acquire retries until the key is free or ctx is done.
// The TTL is renewed every ttl/3 while the lock is held.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	full := r.prefix + key
	token, err := r.client.TryLock(ctx, full, r.ttl, -1, r.retryDelay)
	if err != nil {
		return nil, err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.renew(context.WithoutCancel(ctx), full, token, stop, done)

	return func() {
		close(stop)
		<-done
		if err := r.client.Unlock(context.WithoutCancel(ctx), full, token); err != nil {
			r.logger.WithContext(ctx).Warn("release lock failed", zap.String("key", full), zap.Error(err))
		}
	}, nil
}

func (r *Redis) renew(ctx context.Context, key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			err := r.client.Extend(ctx, key, token, r.ttl)
			if errors.Is(err, redis.ErrLockNotHeld) {
				r.logger.WithContext(ctx).Error("lock expired while held", zap.String("key", key))
				return
			}
			if err != nil {
				r.logger.WithContext(ctx).Warn("extend lock failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
}
