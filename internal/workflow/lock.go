package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CaseLocker 按审批单 ID 串行化流转操作
type CaseLocker interface {
	// Lock 阻塞直到获得锁或 ctx 结束,返回的函数用于释放锁
	Lock(ctx context.Context, caseID string) (func(), error)
}

// memoryLocker 进程内按 key 加锁
type memoryLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

// NewMemoryLocker 创建进程内锁,适用于单实例部署
func NewMemoryLocker() CaseLocker {
	return &memoryLocker{locks: make(map[string]*lockEntry)}
}

func (l *memoryLocker) Lock(ctx context.Context, caseID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[caseID]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		l.locks[caseID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(caseID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			l.release(caseID, entry)
		})
	}, nil
}

func (l *memoryLocker) release(caseID string, entry *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, caseID)
	}
}

// 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// redisLocker 基于 Redis SET NX 的分布式锁,适用于多实例部署
type redisLocker struct {
	client    redis.UniversalClient
	ttl       time.Duration
	retryWait time.Duration
	logger    logrus.FieldLogger
}

// NewRedisLocker 创建 Redis 锁
// ttl 是锁的最长持有时间,防止进程崩溃后锁无法释放
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, logger logrus.FieldLogger) CaseLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &redisLocker{
		client:    client,
		ttl:       ttl,
		retryWait: 20 * time.Millisecond,
		logger:    logger,
	}
}

func (l *redisLocker) key(caseID string) string {
	return "approval:case-lock:" + caseID
}

func (l *redisLocker) Lock(ctx context.Context, caseID string) (func(), error) {
	key := l.key(caseID)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to acquire lock for case %s: %w", caseID, err)
		}
		if ok {
			break
		}

		select {
		case <-time.After(l.retryWait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				l.logger.WithError(err).WithField("case_id", caseID).Warn("failed to release case lock")
			}
		})
	}, nil
}
