package repository

import (
	"context"

	"github.com/mautops/approval-router/internal/model"
	"gorm.io/gorm"
)

// StateHistoryRepository 状态历史仓储接口
type StateHistoryRepository interface {
	Save(ctx context.Context, history *model.StateHistoryModel) error
	FindByCaseID(ctx context.Context, caseID string) ([]*model.StateHistoryModel, error)
}

// stateHistoryRepository 状态历史仓储实现
type stateHistoryRepository struct {
	db *gorm.DB
}

// NewStateHistoryRepository 创建状态历史仓储
func NewStateHistoryRepository(db *gorm.DB) StateHistoryRepository {
	return &stateHistoryRepository{db: db}
}

// Save 保存状态历史
func (r *stateHistoryRepository) Save(ctx context.Context, history *model.StateHistoryModel) error {
	if err := history.Validate(); err != nil {
		return err
	}
	return GetDB(ctx, r.db).Create(history).Error
}

// FindByCaseID 按时间顺序查找审批单的状态历史
func (r *stateHistoryRepository) FindByCaseID(ctx context.Context, caseID string) ([]*model.StateHistoryModel, error) {
	var histories []*model.StateHistoryModel
	err := GetDB(ctx, r.db).Where("case_id = ?", caseID).Order("created_at ASC").Order("id ASC").Find(&histories).Error
	return histories, err
}
