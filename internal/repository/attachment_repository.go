package repository

import (
	"context"

	"github.com/mautops/approval-router/internal/model"
	"gorm.io/gorm"
)

// AttachmentRepository 附件引用仓储接口
type AttachmentRepository interface {
	Save(ctx context.Context, attachment *model.AttachmentModel) error
	FindByID(ctx context.Context, id string) (*model.AttachmentModel, error)
	LinkToCase(ctx context.Context, caseID string, ids []string) (int64, error)
	ListByCase(ctx context.Context, caseID string) ([]*model.AttachmentModel, error)
}

// attachmentRepository 附件引用仓储实现
type attachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository 创建附件引用仓储
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

// Save 保存附件引用
func (r *attachmentRepository) Save(ctx context.Context, attachment *model.AttachmentModel) error {
	return GetDB(ctx, r.db).Save(attachment).Error
}

// FindByID 根据 ID 查找附件引用
func (r *attachmentRepository) FindByID(ctx context.Context, id string) (*model.AttachmentModel, error) {
	var attachment model.AttachmentModel
	if err := GetDB(ctx, r.db).Where("id = ?", id).First(&attachment).Error; err != nil {
		return nil, err
	}
	return &attachment, nil
}

// LinkToCase 将尚未关联的附件关联到审批单,返回实际关联的数量
func (r *attachmentRepository) LinkToCase(ctx context.Context, caseID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := GetDB(ctx, r.db).Model(&model.AttachmentModel{}).
		Where("id IN ? AND case_id IS NULL", ids).
		Update("case_id", caseID)
	return result.RowsAffected, result.Error
}

// ListByCase 列出审批单的附件
func (r *attachmentRepository) ListByCase(ctx context.Context, caseID string) ([]*model.AttachmentModel, error) {
	var attachments []*model.AttachmentModel
	err := GetDB(ctx, r.db).Where("case_id = ?", caseID).Order("created_at ASC").Find(&attachments).Error
	return attachments, err
}
