package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/approval-router/internal/config"
	"github.com/mautops/approval-router/internal/metrics"
	"github.com/mautops/approval-router/internal/model"
	"github.com/mautops/approval-router/internal/repository"
	"github.com/mautops/approval-router/internal/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Pusher 实时推送通道,返回送达的连接数
type Pusher interface {
	SendToUser(userID int64, message []byte) int
}

// PushMessage 推送给客户端和 Webhook 的通知内容
type PushMessage struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	RelatedID string    `json:"related_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier 通知投递
// 通知先落库再异步推送,推送失败只更新投递状态,不影响审批流转
type Notifier struct {
	repo       repository.NotificationRepository
	pushers    []Pusher
	webhookURL string
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
	queue      chan *model.NotificationModel
	stop       chan struct{}
	wg         sync.WaitGroup
	logger     logrus.FieldLogger
}

// NewNotifier 创建通知投递器并启动 worker
func NewNotifier(db *gorm.DB, cfg config.NotificationConfig, logger logrus.FieldLogger, pushers ...Pusher) *Notifier {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	n := &Notifier{
		repo:       repository.NewNotificationRepository(db),
		pushers:    pushers,
		webhookURL: cfg.WebhookURL,
		maxRetries: maxRetries,
		backoff:    time.Second,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		queue:      make(chan *model.NotificationModel, queueSize),
		stop:       make(chan struct{}),
		logger:     logger.WithField("component", "notifier"),
	}

	for i := 0; i < workers; i++ {
		n.wg.Add(1)
		go n.worker()
	}

	return n
}

var _ workflow.Notifier = (*Notifier)(nil)

// Notify 保存通知并入队投递
func (n *Notifier) Notify(ctx context.Context, msg workflow.Notification) {
	now := time.Now()
	record := &model.NotificationModel{
		ID:        uuid.NewString(),
		UserID:    msg.RecipientID,
		Title:     msg.Title,
		Content:   msg.Body,
		Type:      model.NotificationTypeApproval,
		RelatedID: msg.CaseID,
		Status:    model.DeliveryPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := n.repo.Save(ctx, record); err != nil {
		n.logger.WithError(err).WithFields(logrus.Fields{
			"recipient_id": msg.RecipientID,
			"case_id":      msg.CaseID,
		}).Error("failed to save notification")
		metrics.RecordNotification("failed")
		return
	}

	n.enqueue(record)
}

// ResumePending 重新投递进程退出前未完成的通知
func (n *Notifier) ResumePending(ctx context.Context, limit int) (int, error) {
	pending, err := n.repo.FindPending(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending notifications: %w", err)
	}
	for _, record := range pending {
		n.enqueue(record)
	}
	return len(pending), nil
}

// enqueue 队列满时丢弃,记录保持 pending 等待下次 ResumePending
func (n *Notifier) enqueue(record *model.NotificationModel) {
	select {
	case n.queue <- record:
		metrics.RecordNotification("queued")
	default:
		metrics.RecordNotification("dropped")
		n.logger.WithFields(logrus.Fields{
			"notification_id": record.ID,
			"recipient_id":    record.UserID,
		}).Warn("notification queue full, delivery deferred")
	}
}

func (n *Notifier) worker() {
	defer n.wg.Done()
	for {
		select {
		case record := <-n.queue:
			n.deliver(record)
		case <-n.stop:
			return
		}
	}
}

// deliver 推送到在线连接,并在配置了 Webhook 时带重试地转发
func (n *Notifier) deliver(record *model.NotificationModel) {
	payload, err := json.Marshal(PushMessage{
		Type:      "notification",
		ID:        record.ID,
		UserID:    record.UserID,
		Title:     record.Title,
		Content:   record.Content,
		RelatedID: record.RelatedID,
		CreatedAt: record.CreatedAt,
	})
	if err != nil {
		n.finish(record, model.DeliveryFailed, 0)
		return
	}

	for _, p := range n.pushers {
		p.SendToUser(record.UserID, payload)
	}

	if n.webhookURL == "" {
		n.finish(record, model.DeliverySuccess, 0)
		return
	}

	backoff := n.backoff
	for attempt := 1; attempt <= n.maxRetries; attempt++ {
		err := n.sendWebhook(payload)
		if err == nil {
			n.finish(record, model.DeliverySuccess, attempt-1)
			return
		}

		n.logger.WithError(err).WithFields(logrus.Fields{
			"notification_id": record.ID,
			"attempt":         attempt,
		}).Warn("webhook delivery failed")

		if attempt < n.maxRetries {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-n.stop:
				// 保持 pending,下次启动时补发
				return
			}
		}
	}

	n.finish(record, model.DeliveryFailed, n.maxRetries)
}

func (n *Notifier) finish(record *model.NotificationModel, status string, retries int) {
	if status == model.DeliverySuccess {
		metrics.RecordNotification("delivered")
	} else {
		metrics.RecordNotification("failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.repo.UpdateDelivery(ctx, record.ID, status, retries); err != nil {
		n.logger.WithError(err).WithField("notification_id", record.ID).Warn("failed to update notification status")
	}
}

func (n *Notifier) sendWebhook(payload []byte) error {
	req, err := http.NewRequest(http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status code: %d", resp.StatusCode)
	}
	return nil
}

// Stop 停止 worker 并等待正在进行的投递结束
func (n *Notifier) Stop() {
	close(n.stop)
	n.wg.Wait()
}
