package repository

import (
	"context"
	"time"

	"github.com/mautops/approval-router/internal/model"
	"gorm.io/gorm"
)

// StageRepository 审批节点实例仓储接口
type StageRepository interface {
	CreateBatch(ctx context.Context, stages []*model.StageInstanceModel) error
	FindByCaseAndOrder(ctx context.Context, caseID string, order int) (*model.StageInstanceModel, error)
	ListByCase(ctx context.Context, caseID string) ([]*model.StageInstanceModel, error)
	ListPendingByCase(ctx context.Context, caseID string) ([]*model.StageInstanceModel, error)
	Decide(ctx context.Context, stageID uint, status model.StageStatus, comment string, decidedAt time.Time) (bool, error)
}

// stageRepository 审批节点实例仓储实现
type stageRepository struct {
	db *gorm.DB
}

// NewStageRepository 创建审批节点实例仓储
func NewStageRepository(db *gorm.DB) StageRepository {
	return &stageRepository{db: db}
}

// CreateBatch 批量创建节点实例
func (r *stageRepository) CreateBatch(ctx context.Context, stages []*model.StageInstanceModel) error {
	if len(stages) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(stages).Error
}

// FindByCaseAndOrder 根据审批单和节点序号查找节点实例
func (r *stageRepository) FindByCaseAndOrder(ctx context.Context, caseID string, order int) (*model.StageInstanceModel, error) {
	var stage model.StageInstanceModel
	err := GetDB(ctx, r.db).Where("case_id = ? AND stage_order = ?", caseID, order).First(&stage).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

// ListByCase 按序号列出审批单的全部节点实例
func (r *stageRepository) ListByCase(ctx context.Context, caseID string) ([]*model.StageInstanceModel, error) {
	var stages []*model.StageInstanceModel
	err := GetDB(ctx, r.db).Where("case_id = ?", caseID).Order("stage_order ASC").Find(&stages).Error
	return stages, err
}

// ListPendingByCase 列出审批单中仍待审批的节点实例
func (r *stageRepository) ListPendingByCase(ctx context.Context, caseID string) ([]*model.StageInstanceModel, error) {
	var stages []*model.StageInstanceModel
	err := GetDB(ctx, r.db).
		Where("case_id = ? AND status = ?", caseID, int(model.StageStatusPending)).
		Order("stage_order ASC").
		Find(&stages).Error
	return stages, err
}

// Decide 记录节点审批结果,只有待审批的节点会被更新
// 返回 false 表示节点已被处理过
func (r *stageRepository) Decide(ctx context.Context, stageID uint, status model.StageStatus, comment string, decidedAt time.Time) (bool, error) {
	result := GetDB(ctx, r.db).Model(&model.StageInstanceModel{}).
		Where("id = ? AND status = ?", stageID, int(model.StageStatusPending)).
		Updates(map[string]interface{}{
			"status":     int(status),
			"comment":    comment,
			"decided_at": decidedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
