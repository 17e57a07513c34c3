package integration_test

import (
	"context"
	"testing"

	"github.com/mautops/approval-router/internal/integration"
	"github.com/mautops/approval-router/internal/testutil"
	"github.com/mautops/approval-router/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDirectory 测试用户、部门与岗位查询
func TestDirectory(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedDepartment(t, db, 10, "研发部", testutil.Int64(20))
	testutil.SeedUser(t, db, 20, "王经理", testutil.Int64(10))
	testutil.SeedUser(t, db, 21, "", nil)
	testutil.SeedPosition(t, db, 21, 500, false)
	testutil.SeedPosition(t, db, 20, 500, true)

	dir := integration.NewDirectory(db)
	ctx := context.Background()

	user, err := dir.GetUser(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, "王经理", user.Nickname)
	require.NotNil(t, user.DepartmentID)
	assert.Equal(t, int64(10), *user.DepartmentID)

	// 没有昵称时使用用户名
	user, err = dir.GetUser(ctx, 21)
	require.NoError(t, err)
	assert.Equal(t, "user21", user.Nickname)
	assert.Nil(t, user.DepartmentID)

	dept, err := dir.GetDepartment(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "研发部", dept.Name)
	require.NotNil(t, dept.LeaderID)
	assert.Equal(t, int64(20), *dept.LeaderID)

	holder, err := dir.GetPrimaryPositionHolder(ctx, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(20), holder)

	_, err = dir.GetUser(ctx, 404)
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	_, err = dir.GetDepartment(ctx, 404)
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	_, err = dir.GetPrimaryPositionHolder(ctx, 404)
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}
