package workflow

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Notification 发给单个用户的通知
type Notification struct {
	RecipientID int64
	Title       string
	Body        string
	CaseID      string
}

// Notifier 通知投递,实现方自行处理失败,不能阻塞或回滚流转
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// AuditRecorder 审计记录,返回的错误只会被记录
type AuditRecorder interface {
	RecordAction(ctx context.Context, userID int64, action, resourceType, resourceID string, details map[string]interface{}) error
}

// LogNotifier 只写日志的通知实现,用于未配置投递通道时
type LogNotifier struct {
	Logger logrus.FieldLogger
}

// Notify 记录通知内容
func (n LogNotifier) Notify(_ context.Context, msg Notification) {
	logger := n.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"recipient_id": msg.RecipientID,
		"case_id":      msg.CaseID,
	}).Info(msg.Title)
}

type noopAudit struct{}

func (noopAudit) RecordAction(context.Context, int64, string, string, string, map[string]interface{}) error {
	return nil
}
