package model

import "time"

// UserModel 系统用户,审批人解析时只读
type UserModel struct {
	ID           int64     `gorm:"primaryKey"`
	Username     string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	Nickname     string    `gorm:"type:varchar(64)"`
	DepartmentID *int64    `gorm:"index"`
	Status       int       `gorm:"type:int;not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName 指定表名
func (UserModel) TableName() string {
	return "sys_user"
}

// DisplayName 显示名称,昵称为空时使用用户名
func (m *UserModel) DisplayName() string {
	if m.Nickname != "" {
		return m.Nickname
	}
	return m.Username
}

// DepartmentModel 部门
type DepartmentModel struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"type:varchar(128);not null"`
	ParentID  *int64    `gorm:"index"`
	LeaderID  *int64
	CreatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (DepartmentModel) TableName() string {
	return "sys_department"
}

// UserPositionModel 用户岗位关系
type UserPositionModel struct {
	ID         uint  `gorm:"primaryKey"`
	UserID     int64 `gorm:"not null;index"`
	PositionID int64 `gorm:"not null;index"`
	IsPrimary  bool  `gorm:"not null"`
}

// TableName 指定表名
func (UserPositionModel) TableName() string {
	return "sys_user_position"
}
