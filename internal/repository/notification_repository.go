package repository

import (
	"context"

	"github.com/mautops/approval-router/internal/model"
	"gorm.io/gorm"
)

// NotificationRepository 通知投递记录仓储接口
type NotificationRepository interface {
	Save(ctx context.Context, n *model.NotificationModel) error
	UpdateDelivery(ctx context.Context, id string, status string, retryCount int) error
	FindPending(ctx context.Context, limit int) ([]*model.NotificationModel, error)
}

// notificationRepository 通知投递记录仓储实现
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建通知投递记录仓储
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Save 保存通知
func (r *notificationRepository) Save(ctx context.Context, n *model.NotificationModel) error {
	if err := n.Validate(); err != nil {
		return err
	}
	return GetDB(ctx, r.db).Save(n).Error
}

// UpdateDelivery 更新投递状态
func (r *notificationRepository) UpdateDelivery(ctx context.Context, id string, status string, retryCount int) error {
	return GetDB(ctx, r.db).Model(&model.NotificationModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"retry_count": retryCount,
		}).Error
}

// FindPending 查找待投递的通知,用于进程重启后补发
func (r *notificationRepository) FindPending(ctx context.Context, limit int) ([]*model.NotificationModel, error) {
	var notifications []*model.NotificationModel
	err := GetDB(ctx, r.db).
		Where("status = ?", model.DeliveryPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}
