package service_test

import (
	"io"
	"testing"

	"github.com/mautops/approval-router/internal/integration"
	"github.com/mautops/approval-router/internal/model"
	"github.com/mautops/approval-router/internal/repository"
	"github.com/mautops/approval-router/internal/service"
	"github.com/mautops/approval-router/internal/testutil"
	"github.com/mautops/approval-router/internal/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	adminID     int64 = 1
	leaderID    int64 = 20
	initiatorID int64 = 21
	financeID   int64 = 42
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type env struct {
	db     *gorm.DB
	engine *workflow.Engine
	audit  service.AuditLogService
	cases  service.CaseService
}

// newEnv 研发部负责人 20,发起人 21,财务 42;LEAVE 类型绑定 部门负责人 -> 财务 两级流程
func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)

	testutil.SeedUser(t, db, adminID, "管理员", nil)
	testutil.SeedDepartment(t, db, 10, "研发部", testutil.Int64(leaderID))
	testutil.SeedUser(t, db, leaderID, "王经理", testutil.Int64(10))
	testutil.SeedUser(t, db, initiatorID, "张三", testutil.Int64(10))
	testutil.SeedUser(t, db, financeID, "钱财务", nil)
	testutil.SeedType(t, db, "LEAVE", "请假")
	testutil.SeedWorkflow(t, db, "LEAVE", "请假流程",
		testutil.Stage(1, "部门审批", model.ApproverTypeDepartmentHead, 0),
		testutil.Stage(2, "财务审批", model.ApproverTypeUser, financeID),
	)

	logger := quietLogger()
	directory := integration.NewDirectory(db)
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db))
	engine := workflow.NewEngine(db, workflow.NewResolver(directory, adminID, logger), directory,
		nil, workflow.LogNotifier{Logger: logger}, audit, logger)

	return &env{
		db:     db,
		engine: engine,
		audit:  audit,
		cases:  service.NewCaseService(engine, db),
	}
}
