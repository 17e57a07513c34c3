package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mautops/approval-router/internal/model"
	"github.com/mautops/approval-router/internal/repository"
	"github.com/mautops/approval-router/internal/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// WorkflowService 工作流模板服务接口
type WorkflowService interface {
	Create(ctx context.Context, userID int64, req *WorkflowRequest) (*WorkflowDetail, error)
	Get(ctx context.Context, id uint) (*WorkflowDetail, error)
	List(ctx context.Context, filter *repository.WorkflowFilter) ([]*WorkflowSummary, error)
	Update(ctx context.Context, userID int64, id uint, req *WorkflowRequest) (*WorkflowDetail, error)
	UpdateStatus(ctx context.Context, userID int64, id uint, status int) error
	Delete(ctx context.Context, userID int64, id uint) error
}

// WorkflowRequest 创建或更新工作流模板的请求
// @Description 工作流模板及其全部节点
type WorkflowRequest struct {
	Name        string         `json:"name" example:"请假审批" binding:"required,max=128"`
	TypeCode    string         `json:"type_code" example:"LEAVE" binding:"required,max=64"`
	Description string         `json:"description" example:"部门负责人审批后由人事审批"`
	Status      *int           `json:"status" example:"1"` // 为空时启用
	Stages      []StageRequest `json:"stages" binding:"required,min=1,dive"`
}

// StageRequest 节点定义
// @Description 工作流节点定义
type StageRequest struct {
	Name         string `json:"name" example:"部门负责人审批" binding:"required,max=128"`
	StageOrder   int    `json:"stage_order" example:"1" binding:"required,min=1"`
	ApproverType string `json:"approver_type" example:"DEPARTMENT_HEAD" binding:"required"` // USER, POSITION, DEPARTMENT_HEAD
	ApproverRef  int64  `json:"approver_ref" example:"0"`                                  // USER 为用户 ID, POSITION 为岗位 ID
}

// WorkflowSummary 模板列表项
type WorkflowSummary struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	TypeCode    string    `json:"type_code"`
	Description string    `json:"description"`
	Status      int       `json:"status"`
	StageCount  int       `json:"stage_count"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WorkflowDetail 模板详情
type WorkflowDetail struct {
	WorkflowSummary
	Stages []StageDetail `json:"stages"`
}

// StageDetail 节点定义详情
type StageDetail struct {
	Name          string `json:"name"`
	StageOrder    int    `json:"stage_order"`
	ApproverType  string `json:"approver_type"`
	ApproverRef   int64  `json:"approver_ref"`
	ApproverLabel string `json:"approver_label"`
}

// workflowCacheEntry 模板缓存条目
type workflowCacheEntry struct {
	detail    *WorkflowDetail
	expiresAt time.Time
}

type workflowService struct {
	tx        repository.TransactionManager
	workflows repository.WorkflowRepository
	types     repository.ApprovalTypeRepository
	directory workflow.Directory
	audit     workflow.AuditRecorder
	cache     *sync.Map
	cacheTTL  time.Duration
	logger    logrus.FieldLogger
}

// NewWorkflowService 创建工作流模板服务
func NewWorkflowService(db *gorm.DB, directory workflow.Directory, audit workflow.AuditRecorder, cacheTTL time.Duration, logger logrus.FieldLogger) WorkflowService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &workflowService{
		tx:        repository.NewTransactionManager(db),
		workflows: repository.NewWorkflowRepository(db),
		types:     repository.NewApprovalTypeRepository(db),
		directory: directory,
		audit:     audit,
		cache:     &sync.Map{},
		cacheTTL:  cacheTTL,
		logger:    logger.WithField("component", "workflow_service"),
	}
}

// ValidateStages 校验节点定义: 至少一个节点, 名称非空, 序号从 1 开始连续且不重复, 审批人声明完整
func ValidateStages(stages []StageRequest) error {
	if len(stages) == 0 {
		return fmt.Errorf("%w: workflow requires at least one stage", workflow.ErrValidation)
	}

	orders := make([]int, 0, len(stages))
	seen := make(map[int]struct{}, len(stages))
	for _, stage := range stages {
		if strings.TrimSpace(stage.Name) == "" {
			return fmt.Errorf("%w: stage %d name is required", workflow.ErrValidation, stage.StageOrder)
		}
		if _, ok := seen[stage.StageOrder]; ok {
			return fmt.Errorf("%w: duplicate stage order %d", workflow.ErrValidation, stage.StageOrder)
		}
		seen[stage.StageOrder] = struct{}{}
		orders = append(orders, stage.StageOrder)

		if _, err := workflow.DecodeRole(stage.ApproverType, stage.ApproverRef); err != nil {
			return fmt.Errorf("stage %d: %w", stage.StageOrder, err)
		}
	}

	sort.Ints(orders)
	for i, order := range orders {
		if order != i+1 {
			return fmt.Errorf("%w: stage orders must be contiguous from 1", workflow.ErrValidation)
		}
	}
	return nil
}

func toStageModels(stages []StageRequest, now time.Time) []model.StageDefinitionModel {
	out := make([]model.StageDefinitionModel, 0, len(stages))
	for _, stage := range stages {
		ref := stage.ApproverRef
		if stage.ApproverType == model.ApproverTypeDepartmentHead {
			ref = 0
		}
		out = append(out, model.StageDefinitionModel{
			Name:         strings.TrimSpace(stage.Name),
			StageOrder:   stage.StageOrder,
			ApproverType: stage.ApproverType,
			ApproverRef:  ref,
			CreatedAt:    now,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StageOrder < out[j].StageOrder })
	return out
}

// checkType 模板绑定的审批类型必须存在
func (s *workflowService) checkType(ctx context.Context, typeCode string) error {
	if _, err := s.types.FindByCode(ctx, typeCode); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", workflow.ErrTypeNotFound, typeCode)
		}
		return fmt.Errorf("failed to load approval type: %w", err)
	}
	return nil
}

// Create 创建模板
func (s *workflowService) Create(ctx context.Context, userID int64, req *WorkflowRequest) (*WorkflowDetail, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.TypeCode = strings.TrimSpace(req.TypeCode)
	if err := ValidateStages(req.Stages); err != nil {
		return nil, err
	}
	status := model.StatusEnabled
	if req.Status != nil {
		status = *req.Status
	}
	if status != model.StatusEnabled && status != model.StatusDisabled {
		return nil, fmt.Errorf("%w: invalid status %d", workflow.ErrValidation, status)
	}
	if err := s.checkType(ctx, req.TypeCode); err != nil {
		return nil, err
	}

	now := time.Now()
	wf := &model.WorkflowTemplateModel{
		Name:        req.Name,
		TypeCode:    req.TypeCode,
		Description: req.Description,
		Status:      status,
		CreatedBy:   userID,
		Stages:      toStageModels(req.Stages, now),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := wf.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrValidation, err)
	}
	if err := s.workflows.Create(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	s.recordAudit(ctx, userID, "create", wf.ID, map[string]interface{}{
		"name":      wf.Name,
		"type_code": wf.TypeCode,
		"stages":    len(wf.Stages),
	})
	return s.Get(ctx, wf.ID)
}

// Get 查询模板详情,结果按 TTL 缓存
func (s *workflowService) Get(ctx context.Context, id uint) (*WorkflowDetail, error) {
	if cached, ok := s.cache.Load(id); ok {
		entry := cached.(*workflowCacheEntry)
		if time.Now().Before(entry.expiresAt) {
			return entry.detail, nil
		}
		s.cache.Delete(id)
	}

	wf, err := s.workflows.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "workflow %d", id)
	}

	detail := &WorkflowDetail{
		WorkflowSummary: summaryOf(wf, len(wf.Stages)),
		Stages:          make([]StageDetail, 0, len(wf.Stages)),
	}
	for i := range wf.Stages {
		def := &wf.Stages[i]
		detail.Stages = append(detail.Stages, StageDetail{
			Name:          def.Name,
			StageOrder:    def.StageOrder,
			ApproverType:  def.ApproverType,
			ApproverRef:   def.ApproverRef,
			ApproverLabel: s.approverLabel(ctx, def),
		})
	}

	s.cache.Store(id, &workflowCacheEntry{detail: detail, expiresAt: time.Now().Add(s.cacheTTL)})
	return detail, nil
}

// approverLabel 节点审批人的展示名称
func (s *workflowService) approverLabel(ctx context.Context, def *model.StageDefinitionModel) string {
	switch def.ApproverType {
	case model.ApproverTypeDepartmentHead:
		return "部门负责人"
	case model.ApproverTypePosition:
		return "岗位 " + strconv.FormatInt(def.ApproverRef, 10)
	case model.ApproverTypeUser:
		if s.directory != nil {
			if user, err := s.directory.GetUser(ctx, def.ApproverRef); err == nil && user.Nickname != "" {
				return user.Nickname
			}
		}
		return fmt.Sprintf("用户%d", def.ApproverRef)
	default:
		return def.ApproverType
	}
}

// List 查询模板列表
func (s *workflowService) List(ctx context.Context, filter *repository.WorkflowFilter) ([]*WorkflowSummary, error) {
	workflows, err := s.workflows.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	ids := make([]uint, 0, len(workflows))
	for _, wf := range workflows {
		ids = append(ids, wf.ID)
	}
	counts, err := s.workflows.CountStages(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to count stages: %w", err)
	}

	result := make([]*WorkflowSummary, 0, len(workflows))
	for _, wf := range workflows {
		summary := summaryOf(wf, counts[wf.ID])
		result = append(result, &summary)
	}
	return result, nil
}

// Update 更新模板,节点定义整体替换
// 已创建的审批单保存了自己的节点实例,不受模板修改影响
func (s *workflowService) Update(ctx context.Context, userID int64, id uint, req *WorkflowRequest) (*WorkflowDetail, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.TypeCode = strings.TrimSpace(req.TypeCode)
	if err := ValidateStages(req.Stages); err != nil {
		return nil, err
	}
	if err := s.checkType(ctx, req.TypeCode); err != nil {
		return nil, err
	}

	now := time.Now()
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		wf, err := s.workflows.FindByID(txCtx, id)
		if err != nil {
			return notFound(err, "workflow %d", id)
		}
		wf.Name = req.Name
		wf.TypeCode = req.TypeCode
		wf.Description = req.Description
		wf.UpdatedAt = now
		if err := wf.Validate(); err != nil {
			return fmt.Errorf("%w: %v", workflow.ErrValidation, err)
		}
		if err := s.workflows.Update(txCtx, wf); err != nil {
			return fmt.Errorf("failed to update workflow: %w", err)
		}
		if err := s.workflows.ReplaceStages(txCtx, id, toStageModels(req.Stages, now)); err != nil {
			return fmt.Errorf("failed to replace stages: %w", err)
		}
		if req.Status != nil {
			if *req.Status != model.StatusEnabled && *req.Status != model.StatusDisabled {
				return fmt.Errorf("%w: invalid status %d", workflow.ErrValidation, *req.Status)
			}
			if err := s.workflows.UpdateStatus(txCtx, id, *req.Status); err != nil {
				return fmt.Errorf("failed to update workflow status: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(id)
	s.recordAudit(ctx, userID, "update", id, map[string]interface{}{
		"name":   req.Name,
		"stages": len(req.Stages),
	})
	return s.Get(ctx, id)
}

// UpdateStatus 启用或停用模板
func (s *workflowService) UpdateStatus(ctx context.Context, userID int64, id uint, status int) error {
	if status != model.StatusEnabled && status != model.StatusDisabled {
		return fmt.Errorf("%w: invalid status %d", workflow.ErrValidation, status)
	}
	if err := s.workflows.UpdateStatus(ctx, id, status); err != nil {
		return notFound(err, "workflow %d", id)
	}
	s.invalidate(id)
	s.recordAudit(ctx, userID, "update_status", id, map[string]interface{}{"status": status})
	return nil
}

// Delete 删除模板
func (s *workflowService) Delete(ctx context.Context, userID int64, id uint) error {
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		return s.workflows.Delete(txCtx, id)
	})
	if err != nil {
		return notFound(err, "workflow %d", id)
	}
	s.invalidate(id)
	s.recordAudit(ctx, userID, "delete", id, nil)
	return nil
}

func (s *workflowService) invalidate(id uint) {
	s.cache.Delete(id)
}

func (s *workflowService) recordAudit(ctx context.Context, userID int64, action string, id uint, details map[string]interface{}) {
	if s.audit == nil {
		return
	}
	if err := s.audit.RecordAction(ctx, userID, action, "workflow", strconv.FormatUint(uint64(id), 10), details); err != nil {
		s.logger.WithError(err).WithField("workflow_id", id).Warn("failed to record audit log")
	}
}

func summaryOf(wf *model.WorkflowTemplateModel, stageCount int) WorkflowSummary {
	return WorkflowSummary{
		ID:          wf.ID,
		Name:        wf.Name,
		TypeCode:    wf.TypeCode,
		Description: wf.Description,
		Status:      wf.Status,
		StageCount:  stageCount,
		CreatedBy:   wf.CreatedBy,
		CreatedAt:   wf.CreatedAt,
		UpdatedAt:   wf.UpdatedAt,
	}
}
