package metrics

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Collector 定期采集数据库连接与审批单状态分布
type Collector struct {
	db       *gorm.DB
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCollector 创建指标收集器
func NewCollector(db *gorm.DB, interval time.Duration) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		db:       db,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start 启动指标收集器
func (c *Collector) Start() {
	go c.collect()
}

// Stop 停止指标收集器
func (c *Collector) Stop() {
	c.cancel()
	<-c.done
}

func (c *Collector) collect() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			_ = UpdateDatabaseConnections(c.db)
			if err := c.collectCaseStatus(); err != nil {
				logrus.WithError(err).Debug("failed to collect case status metrics")
			}
		}
	}
}

// collectCaseStatus 按状态统计审批单数量
func (c *Collector) collectCaseStatus() error {
	var rows []struct {
		Status int
		Total  int64
	}
	err := c.db.WithContext(c.ctx).
		Table("approval_cases").
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return err
	}
	for _, row := range rows {
		UpdateCasesByStatus(statusLabel(row.Status), float64(row.Total))
	}
	return nil
}

func statusLabel(status int) string {
	switch status {
	case 1:
		return "pending"
	case 2:
		return "in_progress"
	case 3:
		return "approved"
	case 4:
		return "rejected"
	case 5:
		return "withdrawn"
	default:
		return "unknown"
	}
}
