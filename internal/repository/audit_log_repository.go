package repository

import (
	"context"
	"time"

	"github.com/mautops/approval-router/internal/model"
	"gorm.io/gorm"
)

// AuditLogRepository 审计日志仓储接口
type AuditLogRepository interface {
	Save(ctx context.Context, log *model.AuditLogModel) error
	FindByUserID(ctx context.Context, userID int64, limit int) ([]*model.AuditLogModel, error)
	FindByResource(ctx context.Context, resourceType string, resourceID string) ([]*model.AuditLogModel, error)
	CountByAction(ctx context.Context, since *time.Time) ([]ActionCount, error)
}

// ActionCount 按操作类型聚合的数量
type ActionCount struct {
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

// auditLogRepository 审计日志仓储实现
type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository 创建审计日志仓储
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

// Save 保存审计日志
func (r *auditLogRepository) Save(ctx context.Context, log *model.AuditLogModel) error {
	return GetDB(ctx, r.db).Save(log).Error
}

// FindByUserID 根据用户 ID 查找最近的审计日志
func (r *auditLogRepository) FindByUserID(ctx context.Context, userID int64, limit int) ([]*model.AuditLogModel, error) {
	var logs []*model.AuditLogModel
	err := GetDB(ctx, r.db).Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// FindByResource 根据资源查找审计日志
func (r *auditLogRepository) FindByResource(ctx context.Context, resourceType string, resourceID string) ([]*model.AuditLogModel, error) {
	var logs []*model.AuditLogModel
	err := GetDB(ctx, r.db).Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}

// CountByAction 统计各操作类型的数量,since 为空时统计全部
func (r *auditLogRepository) CountByAction(ctx context.Context, since *time.Time) ([]ActionCount, error) {
	query := GetDB(ctx, r.db).Model(&model.AuditLogModel{})
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}
	var counts []ActionCount
	err := query.Select("action, COUNT(*) AS count").
		Group("action").
		Order("action").
		Scan(&counts).Error
	return counts, err
}
