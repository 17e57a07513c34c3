package utils

import (
	"errors"
	"regexp"
	"strings"
)

var sortFieldPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidateSortField 验证排序字段是否在允许列表中,返回对应的列名
// allowed 的键为接口字段名,值为数据库列名
func ValidateSortField(field string, allowed map[string]string) (string, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return "", errors.New("sort field cannot be empty")
	}
	if !sortFieldPattern.MatchString(field) {
		return "", errors.New("invalid sort field format")
	}
	column, ok := allowed[field]
	if !ok {
		return "", errors.New("sort field is not allowed: " + field)
	}
	return column, nil
}

// ValidateSortOrder 验证排序方向
func ValidateSortOrder(order string) error {
	upperOrder := strings.ToUpper(strings.TrimSpace(order))
	if upperOrder != "ASC" && upperOrder != "DESC" {
		return errors.New("sort order must be ASC or DESC")
	}
	return nil
}

// SanitizeSortOrder 清理排序方向,非法值返回 desc
func SanitizeSortOrder(order string) string {
	if strings.EqualFold(strings.TrimSpace(order), "asc") {
		return "asc"
	}
	return "desc"
}
