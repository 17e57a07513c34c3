package utils_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/mautops/approval-router/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidateCaseID 测试审批单 ID 校验
func TestValidateCaseID(t *testing.T) {
	assert.NoError(t, utils.ValidateCaseID(uuid.NewString()))
	assert.Equal(t, utils.ErrEmptyID, utils.ValidateCaseID(""))
	assert.Equal(t, utils.ErrInvalidIDFormat, utils.ValidateCaseID("1; DROP TABLE approval_cases"))

	var validationErr *utils.ValidationError
	require.True(t, errors.As(utils.ValidateCaseID("x"), &validationErr))
	assert.Equal(t, "INVALID_ID_FORMAT", validationErr.Code)
}

// TestTrimAndValidate 测试去空白与按字符计数的长度校验
func TestTrimAndValidate(t *testing.T) {
	got, err := utils.TrimAndValidate("  年假  ", 10)
	require.NoError(t, err)
	assert.Equal(t, "年假", got)

	_, err = utils.TrimAndValidate(" \t ", 10)
	assert.Equal(t, utils.ErrEmptyString, err)

	// 200 个汉字不超过 200 字符的限制
	_, err = utils.TrimAndValidate(strings.Repeat("审", 200), 200)
	assert.NoError(t, err)
	_, err = utils.TrimAndValidate(strings.Repeat("审", 201), 200)
	assert.Equal(t, utils.ErrStringTooLong, err)

	_, err = utils.TrimAndValidate(strings.Repeat("a", 5000), 0)
	assert.NoError(t, err)
}

// TestValidateSortField 测试排序字段白名单
func TestValidateSortField(t *testing.T) {
	allowed := map[string]string{"created_at": "created_at", "priority": "priority"}

	column, err := utils.ValidateSortField(" priority ", allowed)
	require.NoError(t, err)
	assert.Equal(t, "priority", column)

	for _, field := range []string{"", "status", "created_at; DROP TABLE x", "Created_At", "1abc"} {
		_, err := utils.ValidateSortField(field, allowed)
		assert.Error(t, err, field)
	}
}

// TestSortOrder 测试排序方向校验与清理
func TestSortOrder(t *testing.T) {
	assert.NoError(t, utils.ValidateSortOrder("asc"))
	assert.NoError(t, utils.ValidateSortOrder(" DESC "))
	assert.Error(t, utils.ValidateSortOrder("up"))

	assert.Equal(t, "asc", utils.SanitizeSortOrder("ASC"))
	assert.Equal(t, "desc", utils.SanitizeSortOrder("desc"))
	assert.Equal(t, "desc", utils.SanitizeSortOrder("asc; --"))
}
