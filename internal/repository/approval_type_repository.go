package repository

import (
	"context"

	"github.com/mautops/approval-router/internal/model"
	"gorm.io/gorm"
)

// ApprovalTypeRepository 审批类型仓储接口
type ApprovalTypeRepository interface {
	Create(ctx context.Context, t *model.ApprovalTypeModel) error
	FindByID(ctx context.Context, id uint) (*model.ApprovalTypeModel, error)
	FindByCode(ctx context.Context, code string) (*model.ApprovalTypeModel, error)
	List(ctx context.Context, status *int) ([]*model.ApprovalTypeModel, error)
	Update(ctx context.Context, t *model.ApprovalTypeModel) error
	UpdateStatus(ctx context.Context, id uint, status int) error
	Delete(ctx context.Context, id uint) error
}

// approvalTypeRepository 审批类型仓储实现
type approvalTypeRepository struct {
	db *gorm.DB
}

// NewApprovalTypeRepository 创建审批类型仓储
func NewApprovalTypeRepository(db *gorm.DB) ApprovalTypeRepository {
	return &approvalTypeRepository{db: db}
}

// Create 创建审批类型
func (r *approvalTypeRepository) Create(ctx context.Context, t *model.ApprovalTypeModel) error {
	return GetDB(ctx, r.db).Create(t).Error
}

// FindByID 根据 ID 查找审批类型
func (r *approvalTypeRepository) FindByID(ctx context.Context, id uint) (*model.ApprovalTypeModel, error) {
	var t model.ApprovalTypeModel
	if err := GetDB(ctx, r.db).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// FindByCode 根据编码查找审批类型
func (r *approvalTypeRepository) FindByCode(ctx context.Context, code string) (*model.ApprovalTypeModel, error) {
	var t model.ApprovalTypeModel
	if err := GetDB(ctx, r.db).Where("code = ?", code).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// List 按排序号列出审批类型
func (r *approvalTypeRepository) List(ctx context.Context, status *int) ([]*model.ApprovalTypeModel, error) {
	var types []*model.ApprovalTypeModel
	query := GetDB(ctx, r.db)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	err := query.Order("sort_order ASC").Order("id ASC").Find(&types).Error
	return types, err
}

// Update 更新审批类型
func (r *approvalTypeRepository) Update(ctx context.Context, t *model.ApprovalTypeModel) error {
	return GetDB(ctx, r.db).Model(t).
		Select("name", "description", "icon", "color", "sort_order", "updated_at").
		Updates(t).Error
}

// UpdateStatus 启用或停用审批类型
func (r *approvalTypeRepository) UpdateStatus(ctx context.Context, id uint, status int) error {
	result := GetDB(ctx, r.db).Model(&model.ApprovalTypeModel{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete 删除审批类型
func (r *approvalTypeRepository) Delete(ctx context.Context, id uint) error {
	result := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.ApprovalTypeModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
