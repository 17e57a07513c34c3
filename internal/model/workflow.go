package model

import (
	"errors"
	"time"
)

// 启用状态,审批类型与工作流模板共用
const (
	StatusDisabled = 0
	StatusEnabled  = 1
)

// 审批人类型
const (
	ApproverTypeUser           = "USER"
	ApproverTypePosition       = "POSITION"
	ApproverTypeDepartmentHead = "DEPARTMENT_HEAD"
)

// WorkflowTemplateModel 工作流模板数据模型
type WorkflowTemplateModel struct {
	ID          uint                   `gorm:"primaryKey"`
	Name        string                 `gorm:"type:varchar(128);not null"`
	TypeCode    string                 `gorm:"type:varchar(64);not null;index"`
	Description string                 `gorm:"type:text"`
	Status      int                    `gorm:"type:int;not null;index"`
	CreatedBy   int64                  `gorm:"index"`
	Stages      []StageDefinitionModel `gorm:"foreignKey:WorkflowID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time              `gorm:"not null"`
	UpdatedAt   time.Time              `gorm:"not null"`
}

// TableName 指定表名
func (WorkflowTemplateModel) TableName() string {
	return "workflow_templates"
}

// Validate 验证工作流模板模型
func (m *WorkflowTemplateModel) Validate() error {
	if m.Name == "" {
		return errors.New("workflow name is required")
	}
	if m.TypeCode == "" {
		return errors.New("type code is required")
	}
	return nil
}

// StageDefinitionModel 工作流节点定义
// ApproverRef 的含义取决于 ApproverType: USER 为用户 ID, POSITION 为岗位 ID, DEPARTMENT_HEAD 不使用
type StageDefinitionModel struct {
	ID           uint   `gorm:"primaryKey"`
	WorkflowID   uint   `gorm:"not null;uniqueIndex:idx_stage_def_workflow_order"`
	Name         string `gorm:"type:varchar(128);not null"`
	StageOrder   int    `gorm:"type:int;not null;uniqueIndex:idx_stage_def_workflow_order"`
	ApproverType string `gorm:"type:varchar(32);not null"`
	ApproverRef  int64
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName 指定表名
func (StageDefinitionModel) TableName() string {
	return "workflow_stage_definitions"
}
