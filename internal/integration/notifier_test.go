package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mautops/approval-router/internal/config"
	"github.com/mautops/approval-router/internal/integration"
	"github.com/mautops/approval-router/internal/model"
	"github.com/mautops/approval-router/internal/repository"
	"github.com/mautops/approval-router/internal/testutil"
	"github.com/mautops/approval-router/internal/workflow"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// recordingPusher 记录推送内容
type recordingPusher struct {
	mu       sync.Mutex
	messages map[int64][][]byte
}

func (p *recordingPusher) SendToUser(userID int64, message []byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messages == nil {
		p.messages = make(map[int64][][]byte)
	}
	p.messages[userID] = append(p.messages[userID], message)
	return 1
}

func (p *recordingPusher) count(userID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages[userID])
}

// deliveryStatus 在 Eventually 的 goroutine 中调用,不能使用 require
func deliveryStatus(db *gorm.DB, caseID string) string {
	var records []*model.NotificationModel
	if err := db.Where("related_id = ?", caseID).Find(&records).Error; err != nil || len(records) != 1 {
		return ""
	}
	return records[0].Status
}

// TestNotifier_PushAndWebhook 测试通知落库、推送并转发到 Webhook
func TestNotifier_PushAndWebhook(t *testing.T) {
	db := testutil.NewDB(t)

	var received atomic.Value
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg integration.PushMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err == nil {
			received.Store(msg)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer webhook.Close()

	pusher := &recordingPusher{}
	notifier := integration.NewNotifier(db, config.NotificationConfig{
		Workers:    2,
		QueueSize:  10,
		WebhookURL: webhook.URL,
		MaxRetries: 3,
	}, quietLogger(), pusher)
	defer notifier.Stop()

	notifier.Notify(context.Background(), workflow.Notification{
		RecipientID: 42,
		Title:       "待审批: 年假",
		Body:        "请处理",
		CaseID:      "case-1",
	})

	assert.Eventually(t, func() bool {
		return deliveryStatus(db, "case-1") == model.DeliverySuccess
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, pusher.count(42))

	msg, ok := received.Load().(integration.PushMessage)
	require.True(t, ok)
	assert.Equal(t, "notification", msg.Type)
	assert.Equal(t, int64(42), msg.UserID)
	assert.Equal(t, "case-1", msg.RelatedID)
}

// TestNotifier_WebhookFailure 测试 Webhook 持续失败时标记为失败
func TestNotifier_WebhookFailure(t *testing.T) {
	db := testutil.NewDB(t)

	var calls atomic.Int32
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer webhook.Close()

	notifier := integration.NewNotifier(db, config.NotificationConfig{
		Workers:    1,
		WebhookURL: webhook.URL,
		MaxRetries: 1,
	}, quietLogger())
	defer notifier.Stop()

	notifier.Notify(context.Background(), workflow.Notification{RecipientID: 7, Title: "t", CaseID: "case-2"})

	assert.Eventually(t, func() bool {
		return deliveryStatus(db, "case-2") == model.DeliveryFailed
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

// TestNotifier_ResumePending 测试重启后补发未完成的通知
func TestNotifier_ResumePending(t *testing.T) {
	db := testutil.NewDB(t)
	now := time.Now()
	require.NoError(t, repository.NewNotificationRepository(db).Save(context.Background(), &model.NotificationModel{
		ID:        "n-1",
		UserID:    7,
		Title:     "遗留通知",
		RelatedID: "case-3",
		Type:      model.NotificationTypeApproval,
		Status:    model.DeliveryPending,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	pusher := &recordingPusher{}
	notifier := integration.NewNotifier(db, config.NotificationConfig{Workers: 1}, quietLogger(), pusher)
	defer notifier.Stop()

	n, err := notifier.ResumePending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Eventually(t, func() bool {
		return deliveryStatus(db, "case-3") == model.DeliverySuccess
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, pusher.count(7))
}
