package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/mautops/approval-router/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBackupScheduler_RunOnce 测试单次备份后清理多余备份
func TestBackupScheduler_RunOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	backups := service.NewBackupService(e.db, t.TempDir(), quietLogger())
	scheduler := service.NewBackupScheduler(backups, 0, 2, quietLogger())

	for i := 0; i < 3; i++ {
		scheduler.RunOnce(ctx)
	}

	list, err := backups.ListBackups(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

// TestBackupScheduler_StartStop 测试调度器定时执行与停止
func TestBackupScheduler_StartStop(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	backups := service.NewBackupService(e.db, t.TempDir(), quietLogger())

	// interval 为 0 时不启动,Stop 仍可调用
	idle := service.NewBackupScheduler(backups, 0, 5, quietLogger())
	idle.Start(ctx)
	idle.Stop()

	scheduler := service.NewBackupScheduler(backups, 20*time.Millisecond, 5, quietLogger())
	scheduler.Start(ctx)
	assert.Eventually(t, func() bool {
		list, err := backups.ListBackups(ctx)
		return err == nil && len(list) > 0
	}, 2*time.Second, 10*time.Millisecond)
	scheduler.Stop()
	scheduler.Stop()
}
