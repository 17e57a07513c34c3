// Package testutil 测试用的数据库与目录数据构造
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/mautops/approval-router/internal/database"
	"github.com/mautops/approval-router/internal/model"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 创建已迁移的 SQLite 内存数据库
// 内存库每个连接相互独立,必须限制为单连接
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// Int64 返回指针
func Int64(v int64) *int64 {
	return &v
}

// SeedUser 写入用户,deptID 可以为空
func SeedUser(t testing.TB, db *gorm.DB, id int64, nickname string, deptID *int64) {
	t.Helper()
	require.NoError(t, db.Create(&model.UserModel{
		ID:           id,
		Username:     fmt.Sprintf("user%d", id),
		Nickname:     nickname,
		DepartmentID: deptID,
		Status:       model.StatusEnabled,
		CreatedAt:    time.Now(),
	}).Error)
}

// SeedDepartment 写入部门,leaderID 为空表示没有负责人
func SeedDepartment(t testing.TB, db *gorm.DB, id int64, name string, leaderID *int64) {
	t.Helper()
	require.NoError(t, db.Create(&model.DepartmentModel{
		ID:        id,
		Name:      name,
		LeaderID:  leaderID,
		CreatedAt: time.Now(),
	}).Error)
}

// SeedPosition 写入岗位持有关系
func SeedPosition(t testing.TB, db *gorm.DB, userID, positionID int64, primary bool) {
	t.Helper()
	require.NoError(t, db.Create(&model.UserPositionModel{
		UserID:     userID,
		PositionID: positionID,
		IsPrimary:  primary,
	}).Error)
}

// SeedType 写入启用的审批类型
func SeedType(t testing.TB, db *gorm.DB, code, name string) *model.ApprovalTypeModel {
	t.Helper()
	now := time.Now()
	typ := &model.ApprovalTypeModel{
		Code:      code,
		Name:      name,
		Status:    model.StatusEnabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, db.Create(typ).Error)
	return typ
}

// Stage 构造节点定义
func Stage(order int, name, approverType string, ref int64) model.StageDefinitionModel {
	return model.StageDefinitionModel{
		Name:         name,
		StageOrder:   order,
		ApproverType: approverType,
		ApproverRef:  ref,
		CreatedAt:    time.Now(),
	}
}

// SeedWorkflow 写入启用的工作流模板及其节点
func SeedWorkflow(t testing.TB, db *gorm.DB, typeCode, name string, stages ...model.StageDefinitionModel) *model.WorkflowTemplateModel {
	t.Helper()
	now := time.Now()
	wf := &model.WorkflowTemplateModel{
		Name:      name,
		TypeCode:  typeCode,
		Status:    model.StatusEnabled,
		CreatedBy: 1,
		Stages:    stages,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, db.Create(wf).Error)
	return wf
}
