package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/mautops/approval-router/internal/integration"
	"github.com/mautops/approval-router/internal/model"
	"github.com/mautops/approval-router/internal/repository"
	"github.com/mautops/approval-router/internal/service"
	"github.com/mautops/approval-router/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stage(order int, name, kind string, ref int64) service.StageRequest {
	return service.StageRequest{Name: name, StageOrder: order, ApproverType: kind, ApproverRef: ref}
}

// TestValidateStages 测试节点定义校验
func TestValidateStages(t *testing.T) {
	tests := []struct {
		name    string
		stages  []service.StageRequest
		wantErr bool
	}{
		{"valid", []service.StageRequest{
			stage(2, "财务", model.ApproverTypeUser, 42),
			stage(1, "主管", model.ApproverTypeDepartmentHead, 0),
		}, false},
		{"empty", nil, true},
		{"blank name", []service.StageRequest{stage(1, " ", model.ApproverTypeUser, 1)}, true},
		{"not starting at one", []service.StageRequest{stage(2, "a", model.ApproverTypeUser, 1)}, true},
		{"gap", []service.StageRequest{
			stage(1, "a", model.ApproverTypeUser, 1),
			stage(3, "b", model.ApproverTypeUser, 1),
		}, true},
		{"duplicate", []service.StageRequest{
			stage(1, "a", model.ApproverTypeUser, 1),
			stage(1, "b", model.ApproverTypeUser, 2),
		}, true},
		{"unknown approver type", []service.StageRequest{stage(1, "a", "ROLE", 1)}, true},
		{"position without id", []service.StageRequest{stage(1, "a", model.ApproverTypePosition, 0)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.ValidateStages(tt.stages)
			if tt.wantErr {
				assert.ErrorIs(t, err, workflow.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestWorkflowService_CRUD 测试模板的创建、查询、更新与删除
func TestWorkflowService_CRUD(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := service.NewWorkflowService(e.db, integration.NewDirectory(e.db), e.audit, time.Minute, quietLogger())

	detail, err := svc.Create(ctx, adminID, &service.WorkflowRequest{
		Name:     " 报销流程 ",
		TypeCode: "LEAVE",
		Stages: []service.StageRequest{
			stage(2, "财务", model.ApproverTypeUser, financeID),
			stage(1, "主管", model.ApproverTypeDepartmentHead, 99),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "报销流程", detail.Name)
	assert.Equal(t, model.StatusEnabled, detail.Status)
	require.Len(t, detail.Stages, 2)
	assert.Equal(t, "主管", detail.Stages[0].Name)
	assert.Equal(t, int64(0), detail.Stages[0].ApproverRef)
	assert.Equal(t, "部门负责人", detail.Stages[0].ApproverLabel)
	assert.Equal(t, "钱财务", detail.Stages[1].ApproverLabel)

	updated, err := svc.Update(ctx, adminID, detail.ID, &service.WorkflowRequest{
		Name:     "报销流程",
		TypeCode: "LEAVE",
		Status:   intPtr(model.StatusDisabled),
		Stages:   []service.StageRequest{stage(1, "财务", model.ApproverTypePosition, 7)},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDisabled, updated.Status)
	require.Len(t, updated.Stages, 1)
	assert.Equal(t, "岗位 7", updated.Stages[0].ApproverLabel)

	typeCode := "LEAVE"
	list, err := svc.List(ctx, &repository.WorkflowFilter{TypeCode: &typeCode})
	require.NoError(t, err)
	require.Len(t, list, 2)
	counts := map[uint]int{}
	for _, s := range list {
		counts[s.ID] = s.StageCount
	}
	assert.Equal(t, 1, counts[detail.ID])

	require.NoError(t, svc.Delete(ctx, adminID, detail.ID))
	_, err = svc.Get(ctx, detail.ID)
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, adminID, detail.ID), workflow.ErrNotFound)

	logs, err := e.audit.ListByResource(ctx, "workflow", uintString(detail.ID))
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}

// TestWorkflowService_Errors 测试模板服务的错误分类
func TestWorkflowService_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := service.NewWorkflowService(e.db, nil, nil, 0, nil)

	_, err := svc.Create(ctx, adminID, &service.WorkflowRequest{
		Name:     "x",
		TypeCode: "UNKNOWN",
		Stages:   []service.StageRequest{stage(1, "a", model.ApproverTypeUser, 1)},
	})
	assert.ErrorIs(t, err, workflow.ErrTypeNotFound)

	_, err = svc.Create(ctx, adminID, &service.WorkflowRequest{
		Name:     "x",
		TypeCode: "LEAVE",
		Status:   intPtr(5),
		Stages:   []service.StageRequest{stage(1, "a", model.ApproverTypeUser, 1)},
	})
	assert.ErrorIs(t, err, workflow.ErrValidation)

	_, err = svc.Update(ctx, adminID, 999, &service.WorkflowRequest{
		Name:     "x",
		TypeCode: "LEAVE",
		Stages:   []service.StageRequest{stage(1, "a", model.ApproverTypeUser, 1)},
	})
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	assert.ErrorIs(t, svc.UpdateStatus(ctx, adminID, 999, model.StatusEnabled), workflow.ErrNotFound)
	assert.ErrorIs(t, svc.UpdateStatus(ctx, adminID, 1, 7), workflow.ErrValidation)
}

// TestWorkflowService_Cache 测试模板详情缓存与失效
func TestWorkflowService_Cache(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := service.NewWorkflowService(e.db, nil, nil, time.Hour, nil)

	list, err := svc.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := list[0].ID

	first, err := svc.Get(ctx, id)
	require.NoError(t, err)

	// 绕过服务直接修改,缓存期内仍返回旧值
	require.NoError(t, e.db.Model(&model.WorkflowTemplateModel{}).Where("id = ?", id).Update("name", "改名").Error)
	cached, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first.Name, cached.Name)

	// 通过服务修改状态会使缓存失效
	require.NoError(t, svc.UpdateStatus(ctx, adminID, id, model.StatusDisabled))
	fresh, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "改名", fresh.Name)
	assert.Equal(t, model.StatusDisabled, fresh.Status)
}

func intPtr(v int) *int {
	return &v
}
