package model

import (
	"errors"
	"time"
)

// StateHistoryModel 审批单状态变更历史
type StateHistoryModel struct {
	ID         string     `gorm:"primaryKey;type:varchar(36)"`
	CaseID     string     `gorm:"type:varchar(36);not null;index"`
	FromStatus CaseStatus `gorm:"type:int;not null"`
	ToStatus   CaseStatus `gorm:"type:int;not null"`
	StageOrder int        `gorm:"type:int;not null"`
	Reason     string     `gorm:"type:text"`
	Operator   int64      `gorm:"not null"`
	CreatedAt  time.Time  `gorm:"not null;index"`
}

// TableName 指定表名
func (StateHistoryModel) TableName() string {
	return "case_state_history"
}

// Validate 验证状态历史模型
func (shm *StateHistoryModel) Validate() error {
	if shm.ID == "" {
		return errors.New("history ID is required")
	}
	if shm.CaseID == "" {
		return errors.New("case ID is required")
	}
	if !shm.ToStatus.Valid() {
		return errors.New("to status is invalid")
	}
	if shm.Operator <= 0 {
		return errors.New("operator is required")
	}
	return nil
}
