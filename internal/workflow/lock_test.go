package workflow_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/mautops/approval-router/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseLocker(t *testing.T, locker workflow.CaseLocker) {
	t.Helper()
	ctx := context.Background()
	caseID := uuid.NewString()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, caseID)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)

	// 持有锁时另一个调用在 ctx 超时后返回
	unlock, err := locker.Lock(ctx, caseID)
	require.NoError(t, err)
	timeoutCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(timeoutCtx, caseID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 不同审批单互不影响
	otherUnlock, err := locker.Lock(ctx, uuid.NewString())
	require.NoError(t, err)
	otherUnlock()

	unlock()
	unlock()

	again, err := locker.Lock(ctx, caseID)
	require.NoError(t, err)
	again()
}

// TestMemoryLocker 测试进程内锁按审批单串行化
func TestMemoryLocker(t *testing.T) {
	exerciseLocker(t, workflow.NewMemoryLocker())
}

// TestRedisLocker 测试 Redis 锁,需要设置 REDIS_ADDR
func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(context.Background()).Err())

	exerciseLocker(t, workflow.NewRedisLocker(client, 5*time.Second, quietLogger()))
}
