package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mautops/approval-router/internal/api"
	"github.com/mautops/approval-router/internal/config"
	"github.com/mautops/approval-router/internal/integration"
	"github.com/mautops/approval-router/internal/model"
	"github.com/mautops/approval-router/internal/repository"
	"github.com/mautops/approval-router/internal/service"
	"github.com/mautops/approval-router/internal/testutil"
	"github.com/mautops/approval-router/internal/workflow"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	adminID     int64 = 1
	leaderID    int64 = 2
	initiatorID int64 = 3
	financeID   int64 = 4
)

func init() {
	gin.SetMode(gin.TestMode)
	api.SetLogger(quietLogger())
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// server 基于内存数据库的完整路由
type server struct {
	db     *gorm.DB
	router *gin.Engine
	backup *service.BackupService
}

// newServer 创建带演示组织架构和请假流程的服务
// 管理员为 1 号用户,部门负责人 2 号,发起人 3 号,财务 4 号
func newServer(t *testing.T, mutate ...func(*api.RouterOptions)) *server {
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
	cfg := config.Default()
	cfg.Env = "development"

	directory := integration.NewDirectory(db)
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db))
	engine := workflow.NewEngine(db, workflow.NewResolver(directory, adminID, logger), directory,
		nil, workflow.LogNotifier{Logger: logger}, audit, logger)
	backup := service.NewBackupService(db, t.TempDir(), logger)

	opts := api.RouterOptions{
		Config:    cfg,
		Logger:    logger,
		SLAAlerts: api.NewSLAAlertManager(),
		Stream:    integration.NewStreamBroker(),
	}
	for _, fn := range mutate {
		fn(&opts)
	}

	router := api.SetupRoutes(opts, api.Controllers{
		Case:         api.NewCaseController(service.NewCaseService(engine, db), service.NewQueryService(db)),
		Workflow:     api.NewWorkflowController(service.NewWorkflowService(db, directory, audit, 0, logger)),
		ApprovalType: api.NewApprovalTypeController(service.NewApprovalTypeService(db, audit, logger)),
		Dashboard:    api.NewDashboardController(service.NewStatisticsService(db)),
		Backup:       api.NewBackupController(backup),
		AuditLog:     api.NewAuditLogController(audit),
		Health:       api.NewHealthController(db, nil),
	})

	return &server{db: db, router: router, backup: backup}
}

// do 以指定用户发送请求,userID 为 0 时不带认证头
func (s *server) do(t *testing.T, method, path string, userID int64, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID > 0 {
		req.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// envelope 统一响应,data 延迟解析
type envelope struct {
	Code       int                `json:"code"`
	Message    string             `json:"message"`
	Detail     string             `json:"detail"`
	Data       json.RawMessage    `json:"data"`
	Pagination api.PaginationInfo `json:"pagination"`
}

// decode 解析响应并校验状态码,data 非空时解析到 out
func decode(t *testing.T, w *httptest.ResponseRecorder, status int, out interface{}) envelope {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

// createCase 以发起人身份发起请假审批
func (s *server) createCase(t *testing.T, title string) workflow.CaseView {
	t.Helper()
	var view workflow.CaseView
	decode(t, s.do(t, http.MethodPost, "/api/v1/cases", initiatorID, service.CreateCaseRequest{
		Title:    title,
		TypeCode: "LEAVE",
	}), http.StatusCreated, &view)
	return view
}

func uintString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
