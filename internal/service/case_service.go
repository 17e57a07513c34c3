package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/approval-router/internal/metrics"
	"github.com/mautops/approval-router/internal/model"
	"github.com/mautops/approval-router/internal/repository"
	"github.com/mautops/approval-router/internal/utils"
	"github.com/mautops/approval-router/internal/workflow"
	"gorm.io/gorm"
)

// CaseService 审批单服务接口
type CaseService interface {
	Create(ctx context.Context, userID int64, req *CreateCaseRequest) (*workflow.CaseView, error)
	Get(ctx context.Context, id string) (*workflow.CaseView, error)
	Approve(ctx context.Context, id string, userID int64, req *DecisionRequest) error
	Reject(ctx context.Context, id string, userID int64, req *DecisionRequest) error
	Withdraw(ctx context.Context, id string, userID int64) error
	History(ctx context.Context, id string) ([]workflow.HistoryView, error)
	ListMine(ctx context.Context, userID int64, status *model.CaseStatus) ([]*workflow.CaseView, error)
	ListTodo(ctx context.Context, userID int64) ([]*workflow.CaseView, error)
	RegisterAttachment(ctx context.Context, userID int64, req *RegisterAttachmentRequest) (*workflow.AttachmentView, error)
}

// CreateCaseRequest 创建审批单请求
// @Description 创建审批单的请求参数
type CreateCaseRequest struct {
	Title         string     `json:"title" example:"年假申请" binding:"required"`          // 标题
	TypeCode      string     `json:"type_code" example:"LEAVE" binding:"required"`      // 审批类型编码
	Content       string     `json:"content" example:"{\"days\":3}"`                    // 表单内容
	Priority      int        `json:"priority" example:"0" binding:"min=0,max=2"`        // 0 普通 1 紧急 2 非常紧急
	Deadline      *time.Time `json:"deadline"`                                          // 期望完成时间
	AttachmentIDs []string   `json:"attachment_ids" example:"[\"0b7c2f1e-...\"]"`       // 已登记的附件
}

// DecisionRequest 审批意见
// @Description 同意或拒绝时的审批意见
type DecisionRequest struct {
	Comment string `json:"comment" example:"同意" binding:"max=1000"`
}

// RegisterAttachmentRequest 登记附件请求,文件本身由存储服务保存
// @Description 登记附件元数据
type RegisterAttachmentRequest struct {
	OriginalName string `json:"original_name" example:"发票.pdf" binding:"required,max=255"`
	FileSize     int64  `json:"file_size" example:"10240" binding:"min=0"`
	MimeType     string `json:"mime_type" example:"application/pdf" binding:"max=128"`
}

type caseService struct {
	engine      *workflow.Engine
	attachments repository.AttachmentRepository
}

// NewCaseService 创建审批单服务
func NewCaseService(engine *workflow.Engine, db *gorm.DB) CaseService {
	return &caseService{
		engine:      engine,
		attachments: repository.NewAttachmentRepository(db),
	}
}

// Create 创建审批单
func (s *caseService) Create(ctx context.Context, userID int64, req *CreateCaseRequest) (*workflow.CaseView, error) {
	view, err := s.engine.Create(ctx, workflow.CreateRequest{
		Title:         req.Title,
		TypeCode:      req.TypeCode,
		Content:       req.Content,
		Priority:      req.Priority,
		Deadline:      req.Deadline,
		AttachmentIDs: req.AttachmentIDs,
	}, userID)
	if err != nil {
		return nil, err
	}
	metrics.RecordCaseCreated(view.TypeCode)
	return view, nil
}

// Get 查询审批单详情
func (s *caseService) Get(ctx context.Context, id string) (*workflow.CaseView, error) {
	return s.engine.GetCase(ctx, id)
}

// Approve 同意当前节点
func (s *caseService) Approve(ctx context.Context, id string, userID int64, req *DecisionRequest) error {
	if err := s.engine.Decide(ctx, id, userID, true, commentOf(req)); err != nil {
		return err
	}
	metrics.RecordDecision(workflow.ActionApprove)
	return nil
}

// Reject 拒绝当前节点
func (s *caseService) Reject(ctx context.Context, id string, userID int64, req *DecisionRequest) error {
	if err := s.engine.Decide(ctx, id, userID, false, commentOf(req)); err != nil {
		return err
	}
	metrics.RecordDecision(workflow.ActionReject)
	return nil
}

// Withdraw 撤回审批单
func (s *caseService) Withdraw(ctx context.Context, id string, userID int64) error {
	if err := s.engine.Withdraw(ctx, id, userID); err != nil {
		return err
	}
	metrics.RecordDecision(workflow.ActionWithdraw)
	return nil
}

// History 查询状态变更记录
func (s *caseService) History(ctx context.Context, id string) ([]workflow.HistoryView, error) {
	return s.engine.History(ctx, id)
}

// ListMine 我发起的审批单
func (s *caseService) ListMine(ctx context.Context, userID int64, status *model.CaseStatus) ([]*workflow.CaseView, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %d", workflow.ErrValidation, int(*status))
	}
	return s.engine.ListInitiated(ctx, userID, status)
}

// ListTodo 待我审批的审批单
func (s *caseService) ListTodo(ctx context.Context, userID int64) ([]*workflow.CaseView, error) {
	return s.engine.ListPendingFor(ctx, userID)
}

// RegisterAttachment 登记附件,创建审批单时通过 ID 关联
func (s *caseService) RegisterAttachment(ctx context.Context, userID int64, req *RegisterAttachmentRequest) (*workflow.AttachmentView, error) {
	name, err := utils.TrimAndValidate(req.OriginalName, 255)
	if err != nil {
		return nil, fmt.Errorf("%w: original name: %v", workflow.ErrValidation, err)
	}
	attachment := &model.AttachmentModel{
		ID:           uuid.NewString(),
		OriginalName: name,
		FileSize:     req.FileSize,
		MimeType:     req.MimeType,
		UploadedBy:   userID,
		CreatedAt:    time.Now(),
	}
	if err := attachment.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrValidation, err)
	}
	if err := s.attachments.Save(ctx, attachment); err != nil {
		return nil, fmt.Errorf("failed to save attachment: %w", err)
	}
	return &workflow.AttachmentView{
		ID:           attachment.ID,
		OriginalName: attachment.OriginalName,
		FileSize:     attachment.FileSize,
		MimeType:     attachment.MimeType,
	}, nil
}

func commentOf(req *DecisionRequest) string {
	if req == nil {
		return ""
	}
	return strings.TrimSpace(req.Comment)
}

// notFound 将仓储的记录不存在转换为引擎的 ErrNotFound
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %w", fmt.Sprintf(format, args...), workflow.ErrNotFound)
	}
	return err
}
