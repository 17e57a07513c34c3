package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mautops/approval-router/internal/model"
	"github.com/mautops/approval-router/internal/repository"
	"github.com/mautops/approval-router/internal/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ApprovalTypeService 审批类型服务接口
type ApprovalTypeService interface {
	Create(ctx context.Context, userID int64, req *ApprovalTypeRequest) (*model.ApprovalTypeModel, error)
	Get(ctx context.Context, id uint) (*model.ApprovalTypeModel, error)
	List(ctx context.Context, status *int) ([]*model.ApprovalTypeModel, error)
	Update(ctx context.Context, userID int64, id uint, req *ApprovalTypeRequest) (*model.ApprovalTypeModel, error)
	UpdateStatus(ctx context.Context, userID int64, id uint, status int) error
	Delete(ctx context.Context, userID int64, id uint) error
}

// ApprovalTypeRequest 创建或更新审批类型的请求,更新时忽略 code
// @Description 审批类型
type ApprovalTypeRequest struct {
	Code        string `json:"code" example:"LEAVE" binding:"required,max=64"`
	Name        string `json:"name" example:"请假" binding:"required,max=128"`
	Description string `json:"description" example:"员工请假申请"`
	Icon        string `json:"icon" example:"calendar" binding:"max=64"`
	Color       string `json:"color" example:"#1890ff" binding:"max=32"`
	SortOrder   int    `json:"sort_order" example:"1"`
	Status      *int   `json:"status" example:"1"`
}

type approvalTypeService struct {
	types     repository.ApprovalTypeRepository
	workflows repository.WorkflowRepository
	audit     workflow.AuditRecorder
	logger    logrus.FieldLogger
}

// NewApprovalTypeService 创建审批类型服务
func NewApprovalTypeService(db *gorm.DB, audit workflow.AuditRecorder, logger logrus.FieldLogger) ApprovalTypeService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &approvalTypeService{
		types:     repository.NewApprovalTypeRepository(db),
		workflows: repository.NewWorkflowRepository(db),
		audit:     audit,
		logger:    logger.WithField("component", "approval_type_service"),
	}
}

// Create 创建审批类型,code 唯一
func (s *approvalTypeService) Create(ctx context.Context, userID int64, req *ApprovalTypeRequest) (*model.ApprovalTypeModel, error) {
	code := strings.TrimSpace(req.Code)
	if _, err := s.types.FindByCode(ctx, code); err == nil {
		return nil, fmt.Errorf("%w: approval type %s already exists", workflow.ErrInvalidState, code)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check approval type: %w", err)
	}

	status := model.StatusEnabled
	if req.Status != nil {
		status = *req.Status
	}
	now := time.Now()
	t := &model.ApprovalTypeModel{
		Code:        code,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Icon:        req.Icon,
		Color:       req.Color,
		SortOrder:   req.SortOrder,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrValidation, err)
	}
	if err := s.types.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create approval type: %w", err)
	}

	s.recordAudit(ctx, userID, "create", t.ID, map[string]interface{}{"code": t.Code, "name": t.Name})
	return t, nil
}

// Get 查询审批类型
func (s *approvalTypeService) Get(ctx context.Context, id uint) (*model.ApprovalTypeModel, error) {
	t, err := s.types.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "approval type %d", id)
	}
	return t, nil
}

// List 按排序号列出审批类型
func (s *approvalTypeService) List(ctx context.Context, status *int) ([]*model.ApprovalTypeModel, error) {
	types, err := s.types.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list approval types: %w", err)
	}
	return types, nil
}

// Update 更新审批类型的展示信息
func (s *approvalTypeService) Update(ctx context.Context, userID int64, id uint, req *ApprovalTypeRequest) (*model.ApprovalTypeModel, error) {
	t, err := s.types.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "approval type %d", id)
	}

	t.Name = strings.TrimSpace(req.Name)
	t.Description = req.Description
	t.Icon = req.Icon
	t.Color = req.Color
	t.SortOrder = req.SortOrder
	t.UpdatedAt = time.Now()
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrValidation, err)
	}
	if err := s.types.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update approval type: %w", err)
	}
	if req.Status != nil && *req.Status != t.Status {
		if err := s.UpdateStatus(ctx, userID, id, *req.Status); err != nil {
			return nil, err
		}
		t.Status = *req.Status
	}

	s.recordAudit(ctx, userID, "update", id, map[string]interface{}{"name": t.Name})
	return t, nil
}

// UpdateStatus 启用或停用审批类型,停用后不能再创建该类型的审批单
func (s *approvalTypeService) UpdateStatus(ctx context.Context, userID int64, id uint, status int) error {
	if status != model.StatusEnabled && status != model.StatusDisabled {
		return fmt.Errorf("%w: invalid status %d", workflow.ErrValidation, status)
	}
	if err := s.types.UpdateStatus(ctx, id, status); err != nil {
		return notFound(err, "approval type %d", id)
	}
	s.recordAudit(ctx, userID, "update_status", id, map[string]interface{}{"status": status})
	return nil
}

// Delete 删除审批类型,仍被模板引用时拒绝
func (s *approvalTypeService) Delete(ctx context.Context, userID int64, id uint) error {
	t, err := s.types.FindByID(ctx, id)
	if err != nil {
		return notFound(err, "approval type %d", id)
	}

	count, err := s.workflows.CountByTypeCode(ctx, t.Code)
	if err != nil {
		return fmt.Errorf("failed to count workflows: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: approval type %s is used by %d workflows", workflow.ErrInvalidState, t.Code, count)
	}

	if err := s.types.Delete(ctx, id); err != nil {
		return notFound(err, "approval type %d", id)
	}
	s.recordAudit(ctx, userID, "delete", id, map[string]interface{}{"code": t.Code})
	return nil
}

func (s *approvalTypeService) recordAudit(ctx context.Context, userID int64, action string, id uint, details map[string]interface{}) {
	if s.audit == nil {
		return
	}
	if err := s.audit.RecordAction(ctx, userID, action, "approval_type", strconv.FormatUint(uint64(id), 10), details); err != nil {
		s.logger.WithError(err).WithField("approval_type_id", id).Warn("failed to record audit log")
	}
}
