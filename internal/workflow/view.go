package workflow

import (
	"time"

	"github.com/mautops/approval-router/internal/model"
)

// CaseView 审批单对外视图
type CaseView struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	TypeCode    string           `json:"type_code"`
	Content     string           `json:"content"`
	InitiatorID int64            `json:"initiator_id"`
	Priority    int              `json:"priority"`
	Deadline    *time.Time       `json:"deadline,omitempty"`
	Status      model.CaseStatus `json:"status"`
	StatusLabel string           `json:"status_label"`
	// CurrentStageOrder 当前审批节点序号,审批单结束后为空
	CurrentStageOrder *int             `json:"current_stage_order,omitempty"`
	WorkflowID        uint             `json:"workflow_id"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
	Stages            []StageView      `json:"stages,omitempty"`
	Attachments       []AttachmentView `json:"attachments,omitempty"`
}

// StageView 审批节点视图
type StageView struct {
	Name       string            `json:"name"`
	Order      int               `json:"order"`
	ApproverID int64             `json:"approver_id"`
	Status     model.StageStatus `json:"status"`
	Comment    string            `json:"comment,omitempty"`
	DecidedAt  *time.Time        `json:"decided_at,omitempty"`
}

// AttachmentView 附件引用视图
type AttachmentView struct {
	ID           string `json:"id"`
	OriginalName string `json:"original_name"`
	FileSize     int64  `json:"file_size"`
	MimeType     string `json:"mime_type"`
}

// HistoryView 状态变更记录
type HistoryView struct {
	FromStatus model.CaseStatus `json:"from_status"`
	ToStatus   model.CaseStatus `json:"to_status"`
	StageOrder int              `json:"stage_order"`
	Reason     string           `json:"reason"`
	Operator   int64            `json:"operator"`
	CreatedAt  time.Time        `json:"created_at"`
}

// NewCaseView 从数据模型构建视图,Stages/Attachments 已预加载时一并转换
func NewCaseView(c *model.ApprovalCaseModel) *CaseView {
	view := &CaseView{
		ID:          c.ID,
		Title:       c.Title,
		TypeCode:    c.TypeCode,
		Content:     c.Content,
		InitiatorID: c.InitiatorID,
		Priority:    c.Priority,
		Deadline:    c.Deadline,
		Status:      c.Status,
		StatusLabel: c.Status.Label(),
		WorkflowID:  c.WorkflowID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		CompletedAt: c.CompletedAt,
	}
	if c.Status.Active() {
		order := c.CurrentStageOrder
		view.CurrentStageOrder = &order
	}
	for i := range c.Stages {
		view.Stages = append(view.Stages, newStageView(&c.Stages[i]))
	}
	for i := range c.Attachments {
		a := &c.Attachments[i]
		view.Attachments = append(view.Attachments, AttachmentView{
			ID:           a.ID,
			OriginalName: a.OriginalName,
			FileSize:     a.FileSize,
			MimeType:     a.MimeType,
		})
	}
	return view
}

func newStageView(s *model.StageInstanceModel) StageView {
	return StageView{
		Name:       s.Name,
		Order:      s.StageOrder,
		ApproverID: s.ApproverID,
		Status:     s.Status,
		Comment:    s.Comment,
		DecidedAt:  s.DecidedAt,
	}
}

func newCaseViews(cases []*model.ApprovalCaseModel) []*CaseView {
	views := make([]*CaseView, 0, len(cases))
	for _, c := range cases {
		views = append(views, NewCaseView(c))
	}
	return views
}
