package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/approval-router/internal/utils"
	"github.com/mautops/approval-router/internal/workflow"
	"github.com/sirupsen/logrus"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件
// 处理器通过 c.Error 挂载的错误在这里统一输出
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
			return
		}
		respondEngineError(c, err)
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// statusOf 将领域错误映射为 HTTP 状态码
func statusOf(err error) (int, string) {
	var validationErr *utils.ValidationError
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound, "error.not_found"
	case errors.Is(err, workflow.ErrInvalidState):
		return http.StatusConflict, "error.invalid_state"
	case errors.Is(err, workflow.ErrForbidden):
		return http.StatusForbidden, "error.forbidden"
	case errors.Is(err, workflow.ErrValidation), errors.As(err, &validationErr):
		return http.StatusBadRequest, "error.bad_request"
	default:
		return http.StatusInternalServerError, "error.internal_error"
	}
}

// respondEngineError 输出领域错误,500 不向客户端暴露内部细节
func respondEngineError(c *gin.Context, err error) {
	status, key := statusOf(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		GetLogger().WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"path":       c.Request.URL.Path,
		}).WithError(err).Error("request failed")
		detail = ""
	}
	Error(c, status, T(c, key), detail)
}

// badRequest 请求参数错误
func badRequest(c *gin.Context, err error) {
	Error(c, http.StatusBadRequest, T(c, "error.bad_request"), err.Error())
}
