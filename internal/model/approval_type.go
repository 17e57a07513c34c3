package model

import (
	"errors"
	"time"
)

// ApprovalTypeModel 审批类型数据模型
type ApprovalTypeModel struct {
	ID          uint      `gorm:"primaryKey"`
	Code        string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name        string    `gorm:"type:varchar(128);not null"`
	Description string    `gorm:"type:text"`
	Icon        string    `gorm:"type:varchar(64)"`
	Color       string    `gorm:"type:varchar(32)"`
	SortOrder   int       `gorm:"type:int;not null"`
	Status      int       `gorm:"type:int;not null;index"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName 指定表名
func (ApprovalTypeModel) TableName() string {
	return "approval_types"
}

// Validate 验证审批类型模型
func (m *ApprovalTypeModel) Validate() error {
	if m.Code == "" {
		return errors.New("type code is required")
	}
	if m.Name == "" {
		return errors.New("type name is required")
	}
	if m.Status != StatusEnabled && m.Status != StatusDisabled {
		return errors.New("invalid type status")
	}
	return nil
}

// Enabled 是否启用
func (m *ApprovalTypeModel) Enabled() bool {
	return m.Status == StatusEnabled
}
