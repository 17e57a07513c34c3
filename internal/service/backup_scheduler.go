package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BackupScheduler 定时导出模板备份并清理旧备份
type BackupScheduler struct {
	backupService *BackupService
	interval      time.Duration
	keep          int
	logger        logrus.FieldLogger
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// NewBackupScheduler 创建备份调度器
func NewBackupScheduler(backupService *BackupService, interval time.Duration, keep int, logger logrus.FieldLogger) *BackupScheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BackupScheduler{
		backupService: backupService,
		interval:      interval,
		keep:          keep,
		logger:        logger.WithField("component", "backup_scheduler"),
		stopChan:      make(chan struct{}),
	}
}

// Start 启动备份调度器,interval 不大于 0 时不启动
func (s *BackupScheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.RunOnce(ctx)
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RunOnce 执行一次备份和清理
func (s *BackupScheduler) RunOnce(ctx context.Context) {
	info, err := s.backupService.CreateBackup(ctx)
	if err != nil {
		s.logger.WithError(err).Error("scheduled backup failed")
		return
	}
	s.logger.WithField("file", info.Filename).Info("scheduled backup created")

	removed, err := s.backupService.CleanupOldBackups(ctx, s.keep)
	if err != nil {
		s.logger.WithError(err).Warn("failed to clean up old backups")
		return
	}
	if removed > 0 {
		s.logger.WithField("removed", removed).Info("old backups removed")
	}
}

// Stop 停止备份调度器
func (s *BackupScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}
