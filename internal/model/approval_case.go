package model

import (
	"errors"
	"time"
)

// CaseStatus 审批单状态
type CaseStatus int

// 审批单状态码
const (
	CaseStatusDraft      CaseStatus = 0
	CaseStatusPending    CaseStatus = 1
	CaseStatusInProgress CaseStatus = 2
	CaseStatusApproved   CaseStatus = 3
	CaseStatusRejected   CaseStatus = 4
	CaseStatusWithdrawn  CaseStatus = 5
)

var caseStatusLabels = map[CaseStatus]string{
	CaseStatusDraft:      "草稿",
	CaseStatusPending:    "待审批",
	CaseStatusInProgress: "审批中",
	CaseStatusApproved:   "已通过",
	CaseStatusRejected:   "已拒绝",
	CaseStatusWithdrawn:  "已撤回",
}

// Label 状态显示名称
func (s CaseStatus) Label() string {
	if label, ok := caseStatusLabels[s]; ok {
		return label
	}
	return "未知"
}

// Active 审批单是否仍在流转中
func (s CaseStatus) Active() bool {
	return s == CaseStatusPending || s == CaseStatusInProgress
}

// Terminal 审批单是否已结束
func (s CaseStatus) Terminal() bool {
	return s == CaseStatusApproved || s == CaseStatusRejected || s == CaseStatusWithdrawn
}

// Valid 是否为合法状态码
func (s CaseStatus) Valid() bool {
	_, ok := caseStatusLabels[s]
	return ok
}

// StageStatus 审批节点状态
type StageStatus int

// 审批节点状态码
const (
	StageStatusPending  StageStatus = 0
	StageStatusApproved StageStatus = 1
	StageStatusRejected StageStatus = 2
)

// 紧急程度
const (
	PriorityNormal     = 0
	PriorityUrgent     = 1
	PriorityVeryUrgent = 2
)

// ApprovalCaseModel 审批单数据模型
type ApprovalCaseModel struct {
	ID                string     `gorm:"primaryKey;type:varchar(36)"`
	Title             string     `gorm:"type:varchar(200);not null"`
	TypeCode          string     `gorm:"type:varchar(64);not null;index"`
	Content           string     `gorm:"type:text"`
	InitiatorID       int64      `gorm:"not null;index"`
	Priority          int        `gorm:"type:int;not null"`
	Deadline          *time.Time
	Status            CaseStatus `gorm:"type:int;not null;index"`
	CurrentStageOrder int        `gorm:"type:int;not null"`
	WorkflowID        uint       `gorm:"not null;index"`
	CreatedAt         time.Time  `gorm:"not null;index"`
	UpdatedAt         time.Time  `gorm:"not null;index"`
	CompletedAt       *time.Time

	Stages      []StageInstanceModel `gorm:"foreignKey:CaseID"`
	Attachments []AttachmentModel    `gorm:"foreignKey:CaseID"`
}

// TableName 指定表名
func (ApprovalCaseModel) TableName() string {
	return "approval_cases"
}

// Validate 验证审批单模型
func (m *ApprovalCaseModel) Validate() error {
	if m.ID == "" {
		return errors.New("case ID is required")
	}
	if m.Title == "" {
		return errors.New("case title is required")
	}
	if m.TypeCode == "" {
		return errors.New("type code is required")
	}
	if m.InitiatorID <= 0 {
		return errors.New("initiator is required")
	}
	if !m.Status.Valid() {
		return errors.New("invalid case status")
	}
	return nil
}

// StageInstanceModel 审批单节点实例,创建审批单时从模板物化
type StageInstanceModel struct {
	ID         uint        `gorm:"primaryKey"`
	CaseID     string      `gorm:"type:varchar(36);not null;uniqueIndex:idx_stage_case_order"`
	Name       string      `gorm:"type:varchar(128);not null"`
	ApproverID int64       `gorm:"not null;index"`
	StageOrder int         `gorm:"type:int;not null;uniqueIndex:idx_stage_case_order"`
	Status     StageStatus `gorm:"type:int;not null;index"`
	Comment    string      `gorm:"type:text"`
	DecidedAt  *time.Time
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName 指定表名
func (StageInstanceModel) TableName() string {
	return "approval_stage_instances"
}

// AttachmentModel 附件引用,只记录元数据
type AttachmentModel struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)"`
	CaseID       *string   `gorm:"type:varchar(36);index"`
	OriginalName string    `gorm:"type:varchar(255);not null"`
	FileSize     int64     `gorm:"not null"`
	MimeType     string    `gorm:"type:varchar(128)"`
	UploadedBy   int64     `gorm:"not null;index"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName 指定表名
func (AttachmentModel) TableName() string {
	return "attachments"
}

// Validate 验证附件模型
func (m *AttachmentModel) Validate() error {
	if m.ID == "" {
		return errors.New("attachment ID is required")
	}
	if m.OriginalName == "" {
		return errors.New("attachment name is required")
	}
	if m.FileSize < 0 {
		return errors.New("attachment size must not be negative")
	}
	return nil
}
