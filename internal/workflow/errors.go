package workflow

import (
	"errors"
	"fmt"
)

// 流转引擎错误,调用方使用 errors.Is 判断
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation failed")

	ErrTypeNotFound     = fmt.Errorf("approval type %w", ErrNotFound)
	ErrWorkflowNotFound = fmt.Errorf("workflow template %w", ErrNotFound)
	ErrWorkflowEmpty    = fmt.Errorf("workflow template has no stages: %w", ErrInvalidState)
)
