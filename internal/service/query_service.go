package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mautops/approval-router/internal/model"
	"github.com/mautops/approval-router/internal/repository"
	"github.com/mautops/approval-router/internal/utils"
	"github.com/mautops/approval-router/internal/workflow"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// 导出行数上限
const maxExportRows = 10000

// caseSortFields 允许排序的字段
var caseSortFields = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"priority":   "priority",
	"status":     "status",
	"title":      "title",
	"deadline":   "deadline",
}

// QueryService 审批单查询服务接口
type QueryService interface {
	Search(ctx context.Context, filter *CaseSearchFilter) (*CaseSearchResult, error)
	ExportInitiated(ctx context.Context, userID int64, status *model.CaseStatus, w io.Writer) error
}

// CaseSearchFilter 审批单查询过滤器
type CaseSearchFilter struct {
	TypeCode    *string
	Status      *model.CaseStatus
	InitiatorID *int64
	StartTime   *time.Time
	EndTime     *time.Time
	Keyword     string
	Page        int
	PageSize    int
	SortBy      string
	Order       string
}

// PaginationInfo 分页信息
type PaginationInfo struct {
	Page      int
	PageSize  int
	Total     int64
	TotalPage int
}

// CaseSearchResult 分页查询结果
type CaseSearchResult struct {
	Items      []*workflow.CaseView
	Pagination PaginationInfo
}

type queryService struct {
	cases repository.CaseRepository
}

// NewQueryService 创建查询服务
func NewQueryService(db *gorm.DB) QueryService {
	return &queryService{cases: repository.NewCaseRepository(db)}
}

// Search 分页查询审批单
func (s *queryService) Search(ctx context.Context, filter *CaseSearchFilter) (*CaseSearchResult, error) {
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, err := utils.ValidateSortField(sortBy, caseSortFields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrValidation, err)
	}

	order := filter.Order
	if order == "" {
		order = "desc"
	}
	if err := utils.ValidateSortOrder(order); err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrValidation, err)
	}

	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %d", workflow.ErrValidation, int(*filter.Status))
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	cases, total, err := s.cases.Search(ctx, &repository.CaseFilter{
		TypeCode:      filter.TypeCode,
		Status:        filter.Status,
		InitiatorID:   filter.InitiatorID,
		CreatedAfter:  filter.StartTime,
		CreatedBefore: filter.EndTime,
		Keyword:       strings.TrimSpace(filter.Keyword),
		SortField:     column,
		SortOrder:     utils.SanitizeSortOrder(order),
		Page:          page,
		PageSize:      pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search cases: %w", err)
	}

	items := make([]*workflow.CaseView, 0, len(cases))
	for _, c := range cases {
		items = append(items, workflow.NewCaseView(c))
	}

	totalPage := int(total) / pageSize
	if int(total)%pageSize != 0 {
		totalPage++
	}

	return &CaseSearchResult{
		Items: items,
		Pagination: PaginationInfo{
			Page:      page,
			PageSize:  pageSize,
			Total:     total,
			TotalPage: totalPage,
		},
	}, nil
}

var priorityLabels = map[int]string{
	model.PriorityNormal:     "普通",
	model.PriorityUrgent:     "紧急",
	model.PriorityVeryUrgent: "非常紧急",
}

// ExportInitiated 导出用户发起的审批单为 xlsx
func (s *queryService) ExportInitiated(ctx context.Context, userID int64, status *model.CaseStatus, w io.Writer) error {
	initiator := userID
	cases, _, err := s.cases.Search(ctx, &repository.CaseFilter{
		InitiatorID: &initiator,
		Status:      status,
		SortField:   "created_at",
		SortOrder:   "desc",
		Page:        1,
		PageSize:    maxExportRows,
	})
	if err != nil {
		return fmt.Errorf("failed to load cases: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "审批单"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headers := []interface{}{"编号", "标题", "审批类型", "优先级", "状态", "当前节点", "创建时间", "完成时间"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, c := range cases {
		currentStage := ""
		if c.Status.Active() {
			currentStage = fmt.Sprintf("%d", c.CurrentStageOrder)
		}
		completedAt := ""
		if c.CompletedAt != nil {
			completedAt = c.CompletedAt.Format("2006-01-02 15:04:05")
		}
		row := []interface{}{
			c.ID,
			c.Title,
			c.TypeCode,
			priorityLabels[c.Priority],
			c.Status.Label(),
			currentStage,
			c.CreatedAt.Format("2006-01-02 15:04:05"),
			completedAt,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 38); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "B", 40); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}
