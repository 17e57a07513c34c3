package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/mautops/approval-router/internal/model"
	"github.com/mautops/approval-router/internal/workflow"
	"gorm.io/gorm"
)

// dbDirectory 基于 sys_user / sys_department / sys_user_position 的目录查询
type dbDirectory struct {
	db *gorm.DB
}

// NewDirectory 创建目录适配器
func NewDirectory(db *gorm.DB) workflow.Directory {
	return &dbDirectory{db: db}
}

// GetUser 根据 ID 查找用户
func (d *dbDirectory) GetUser(ctx context.Context, id int64) (*workflow.User, error) {
	var user model.UserModel
	if err := d.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err, "user %d", id)
	}
	return &workflow.User{
		ID:           user.ID,
		Nickname:     user.DisplayName(),
		DepartmentID: user.DepartmentID,
	}, nil
}

// GetDepartment 根据 ID 查找部门
func (d *dbDirectory) GetDepartment(ctx context.Context, id int64) (*workflow.Department, error) {
	var dept model.DepartmentModel
	if err := d.db.WithContext(ctx).Where("id = ?", id).First(&dept).Error; err != nil {
		return nil, notFound(err, "department %d", id)
	}
	return &workflow.Department{
		ID:       dept.ID,
		Name:     dept.Name,
		LeaderID: dept.LeaderID,
	}, nil
}

// GetPrimaryPositionHolder 查找岗位持有人,主岗优先
func (d *dbDirectory) GetPrimaryPositionHolder(ctx context.Context, positionID int64) (int64, error) {
	var up model.UserPositionModel
	err := d.db.WithContext(ctx).
		Where("position_id = ?", positionID).
		Order("is_primary DESC").
		Order("id ASC").
		First(&up).Error
	if err != nil {
		return 0, notFound(err, "holder of position %d", positionID)
	}
	return up.UserID, nil
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %w", fmt.Sprintf(format, args...), workflow.ErrNotFound)
	}
	return fmt.Errorf("failed to query %s: %w", fmt.Sprintf(format, args...), err)
}
