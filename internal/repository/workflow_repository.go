package repository

import (
	"context"

	"github.com/mautops/approval-router/internal/model"
	"gorm.io/gorm"
)

// WorkflowRepository 工作流模板仓储接口
type WorkflowRepository interface {
	Create(ctx context.Context, wf *model.WorkflowTemplateModel) error
	FindByID(ctx context.Context, id uint) (*model.WorkflowTemplateModel, error)
	FindEnabledByTypeCode(ctx context.Context, typeCode string) (*model.WorkflowTemplateModel, error)
	List(ctx context.Context, filter *WorkflowFilter) ([]*model.WorkflowTemplateModel, error)
	CountStages(ctx context.Context, ids []uint) (map[uint]int, error)
	CountByTypeCode(ctx context.Context, typeCode string) (int64, error)
	Update(ctx context.Context, wf *model.WorkflowTemplateModel) error
	ReplaceStages(ctx context.Context, workflowID uint, stages []model.StageDefinitionModel) error
	UpdateStatus(ctx context.Context, id uint, status int) error
	Delete(ctx context.Context, id uint) error
}

// WorkflowFilter 工作流模板查询过滤器
type WorkflowFilter struct {
	TypeCode *string
	Status   *int
}

// workflowRepository 工作流模板仓储实现
type workflowRepository struct {
	db *gorm.DB
}

// NewWorkflowRepository 创建工作流模板仓储
func NewWorkflowRepository(db *gorm.DB) WorkflowRepository {
	return &workflowRepository{db: db}
}

func orderedStages(db *gorm.DB) *gorm.DB {
	return db.Order("stage_order ASC")
}

// Create 创建模板及其节点定义
func (r *workflowRepository) Create(ctx context.Context, wf *model.WorkflowTemplateModel) error {
	return GetDB(ctx, r.db).Create(wf).Error
}

// FindByID 根据 ID 查找模板,包含节点定义
func (r *workflowRepository) FindByID(ctx context.Context, id uint) (*model.WorkflowTemplateModel, error) {
	var wf model.WorkflowTemplateModel
	if err := GetDB(ctx, r.db).Preload("Stages", orderedStages).Where("id = ?", id).First(&wf).Error; err != nil {
		return nil, err
	}
	return &wf, nil
}

// FindEnabledByTypeCode 查找审批类型绑定的启用模板
// 同一类型存在多个启用模板时取最近更新的一个
func (r *workflowRepository) FindEnabledByTypeCode(ctx context.Context, typeCode string) (*model.WorkflowTemplateModel, error) {
	var wf model.WorkflowTemplateModel
	err := GetDB(ctx, r.db).
		Preload("Stages", orderedStages).
		Where("type_code = ? AND status = ?", typeCode, model.StatusEnabled).
		Order("updated_at DESC").
		Order("id DESC").
		First(&wf).Error
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

// List 查询模板列表
func (r *workflowRepository) List(ctx context.Context, filter *WorkflowFilter) ([]*model.WorkflowTemplateModel, error) {
	var workflows []*model.WorkflowTemplateModel
	query := GetDB(ctx, r.db).Model(&model.WorkflowTemplateModel{})

	if filter != nil {
		if filter.TypeCode != nil {
			query = query.Where("type_code = ?", *filter.TypeCode)
		}
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
	}

	err := query.Order("created_at DESC").Find(&workflows).Error
	return workflows, err
}

// CountStages 统计模板的节点数量
func (r *workflowRepository) CountStages(ctx context.Context, ids []uint) (map[uint]int, error) {
	counts := make(map[uint]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	var rows []struct {
		WorkflowID uint
		Total      int
	}
	err := GetDB(ctx, r.db).Model(&model.StageDefinitionModel{}).
		Select("workflow_id, COUNT(*) AS total").
		Where("workflow_id IN ?", ids).
		Group("workflow_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.WorkflowID] = row.Total
	}
	return counts, nil
}

// CountByTypeCode 统计引用审批类型的模板数量
func (r *workflowRepository) CountByTypeCode(ctx context.Context, typeCode string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.WorkflowTemplateModel{}).Where("type_code = ?", typeCode).Count(&count).Error
	return count, err
}

// Update 更新模板基本信息
func (r *workflowRepository) Update(ctx context.Context, wf *model.WorkflowTemplateModel) error {
	return GetDB(ctx, r.db).Model(wf).
		Select("name", "type_code", "description", "updated_at").
		Updates(wf).Error
}

// ReplaceStages 用新的节点定义整体替换模板节点
func (r *workflowRepository) ReplaceStages(ctx context.Context, workflowID uint, stages []model.StageDefinitionModel) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("workflow_id = ?", workflowID).Delete(&model.StageDefinitionModel{}).Error; err != nil {
		return err
	}
	if len(stages) == 0 {
		return nil
	}
	for i := range stages {
		stages[i].ID = 0
		stages[i].WorkflowID = workflowID
	}
	return db.Create(&stages).Error
}

// UpdateStatus 启用或停用模板
func (r *workflowRepository) UpdateStatus(ctx context.Context, id uint, status int) error {
	result := GetDB(ctx, r.db).Model(&model.WorkflowTemplateModel{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete 删除模板及其节点定义
func (r *workflowRepository) Delete(ctx context.Context, id uint) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("workflow_id = ?", id).Delete(&model.StageDefinitionModel{}).Error; err != nil {
		return err
	}
	result := db.Where("id = ?", id).Delete(&model.WorkflowTemplateModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
