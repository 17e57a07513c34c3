package model

import (
	"errors"
	"time"
)

// 通知类型
const (
	NotificationTypeApproval = "APPROVAL"
	NotificationTypeSystem   = "SYSTEM"
)

// 通知投递状态
const (
	DeliveryPending = "pending"
	DeliverySuccess = "success"
	DeliveryFailed  = "failed"
)

// NotificationModel 通知投递记录
type NotificationModel struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)"`
	UserID     int64     `gorm:"not null;index"`
	Title      string    `gorm:"type:varchar(200);not null"`
	Content    string    `gorm:"type:text"`
	Type       string    `gorm:"type:varchar(32);not null"`
	RelatedID  string    `gorm:"type:varchar(36);index"`
	Status     string    `gorm:"type:varchar(32);not null;index"`
	RetryCount int       `gorm:"type:int;not null"`
	CreatedAt  time.Time `gorm:"not null;index"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName 指定表名
func (NotificationModel) TableName() string {
	return "notifications"
}

// Validate 验证通知模型
func (m *NotificationModel) Validate() error {
	if m.ID == "" {
		return errors.New("notification ID is required")
	}
	if m.UserID <= 0 {
		return errors.New("recipient is required")
	}
	if m.Title == "" {
		return errors.New("notification title is required")
	}
	if m.Type == "" {
		m.Type = NotificationTypeApproval
	}
	if m.Status == "" {
		m.Status = DeliveryPending
	}
	return nil
}
