package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mautops/approval-router/internal/model"
	"github.com/mautops/approval-router/internal/repository"
	"gorm.io/gorm"
)

const completionBatchSize = 500

// StatisticsService 统计服务接口
type StatisticsService interface {
	GetDashboard(ctx context.Context, userID int64) (*DashboardStatistics, error)
	GetRecentActivities(ctx context.Context, userID int64, limit int) ([]*RecentActivity, error)
	GetOverview(ctx context.Context) (*Overview, error)
}

// DashboardStatistics 个人仪表盘统计
type DashboardStatistics struct {
	Pending           int64 `json:"pending"`             // 我发起的流转中审批单
	ApprovedThisMonth int64 `json:"approved_this_month"` // 本月发起且已通过
	RejectedThisMonth int64 `json:"rejected_this_month"` // 本月发起且被拒绝
	TotalThisMonth    int64 `json:"total_this_month"`    // 本月发起总数
	TodoCount         int64 `json:"todo_count"`          // 待我审批
}

// RecentActivity 最近动态
type RecentActivity struct {
	CaseID       string           `json:"case_id"`
	ActivityType string           `json:"activity_type"` // created, approved, rejected, withdrawn
	Title        string           `json:"title"`
	TypeName     string           `json:"type_name"`
	TypeIcon     string           `json:"type_icon,omitempty"`
	TypeColor    string           `json:"type_color,omitempty"`
	Status       model.CaseStatus `json:"status"`
	ActivityTime time.Time        `json:"activity_time"`
	RelativeTime string           `json:"relative_time"`
}

// StatusCount 按状态统计
type StatusCount struct {
	Status model.CaseStatus `json:"status"`
	Label  string           `json:"label"`
	Count  int64            `json:"count"`
}

// TypeCount 按审批类型统计
type TypeCount struct {
	TypeCode string `json:"type_code"`
	Count    int64  `json:"count"`
}

// Overview 全局统计
type Overview struct {
	ByStatus []StatusCount `json:"by_status"`
	ByType   []TypeCount   `json:"by_type"`
	// AverageCompletionHours 已结束审批单从创建到结束的平均小时数
	AverageCompletionHours float64 `json:"average_completion_hours"`
}

type statisticsService struct {
	db    *gorm.DB
	cases repository.CaseRepository
	types repository.ApprovalTypeRepository
	now   func() time.Time
}

// NewStatisticsService 创建统计服务
func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{
		db:    db,
		cases: repository.NewCaseRepository(db),
		types: repository.NewApprovalTypeRepository(db),
		now:   time.Now,
	}
}

// GetDashboard 个人仪表盘,本月指标按创建时间统计
func (s *statisticsService) GetDashboard(ctx context.Context, userID int64) (*DashboardStatistics, error) {
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	stats := &DashboardStatistics{}
	var err error

	if stats.Pending, err = s.cases.CountByInitiator(ctx, userID,
		[]model.CaseStatus{model.CaseStatusPending, model.CaseStatusInProgress}, nil); err != nil {
		return nil, fmt.Errorf("failed to count pending cases: %w", err)
	}
	if stats.ApprovedThisMonth, err = s.cases.CountByInitiator(ctx, userID,
		[]model.CaseStatus{model.CaseStatusApproved}, &monthStart); err != nil {
		return nil, fmt.Errorf("failed to count approved cases: %w", err)
	}
	if stats.RejectedThisMonth, err = s.cases.CountByInitiator(ctx, userID,
		[]model.CaseStatus{model.CaseStatusRejected}, &monthStart); err != nil {
		return nil, fmt.Errorf("failed to count rejected cases: %w", err)
	}
	if stats.TotalThisMonth, err = s.cases.CountByInitiator(ctx, userID, nil, &monthStart); err != nil {
		return nil, fmt.Errorf("failed to count cases: %w", err)
	}

	todo, err := s.cases.ListPendingFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count todo cases: %w", err)
	}
	stats.TodoCount = int64(len(todo))

	return stats, nil
}

// GetRecentActivities 我发起的审批单的最近动态,limit 限制在 1 到 100
func (s *statisticsService) GetRecentActivities(ctx context.Context, userID int64, limit int) ([]*RecentActivity, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	cases, err := s.cases.RecentByInitiator(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent cases: %w", err)
	}

	types := make(map[string]*model.ApprovalTypeModel)
	now := s.now()
	activities := make([]*RecentActivity, 0, len(cases))
	for _, c := range cases {
		t, ok := types[c.TypeCode]
		if !ok {
			t, _ = s.types.FindByCode(ctx, c.TypeCode)
			types[c.TypeCode] = t
		}

		activity := &RecentActivity{
			CaseID:       c.ID,
			ActivityType: "created",
			Title:        c.Title,
			TypeName:     c.TypeCode,
			Status:       c.Status,
			ActivityTime: c.CreatedAt,
		}
		if t != nil {
			activity.TypeName = t.Name
			activity.TypeIcon = t.Icon
			activity.TypeColor = t.Color
		}

		switch c.Status {
		case model.CaseStatusApproved, model.CaseStatusRejected:
			activity.ActivityType = "approved"
			if c.Status == model.CaseStatusRejected {
				activity.ActivityType = "rejected"
			}
			activity.ActivityTime = c.UpdatedAt
			if c.CompletedAt != nil {
				activity.ActivityTime = *c.CompletedAt
			}
		case model.CaseStatusWithdrawn:
			activity.ActivityType = "withdrawn"
			activity.ActivityTime = c.UpdatedAt
		}
		activity.RelativeTime = RelativeTime(activity.ActivityTime, now)
		activities = append(activities, activity)
	}

	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].ActivityTime.After(activities[j].ActivityTime)
	})
	return activities, nil
}

// RelativeTime 相对时间描述
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "刚刚"
	case d < time.Hour:
		return fmt.Sprintf("%d分钟前", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d小时前", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%d天前", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%d个月前", int(d.Hours()/24/30))
	}
}

// GetOverview 全局统计
func (s *statisticsService) GetOverview(ctx context.Context) (*Overview, error) {
	db := s.db.WithContext(ctx)

	var statusRows []struct {
		Status int
		Count  int64
	}
	if err := db.Model(&model.ApprovalCaseModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Order("status").
		Scan(&statusRows).Error; err != nil {
		return nil, fmt.Errorf("failed to get case statistics by status: %w", err)
	}

	var typeRows []TypeCount
	if err := db.Model(&model.ApprovalCaseModel{}).
		Select("type_code, COUNT(*) as count").
		Group("type_code").
		Order("count DESC").
		Scan(&typeRows).Error; err != nil {
		return nil, fmt.Errorf("failed to get case statistics by type: %w", err)
	}

	// 时间差在应用侧计算,避免依赖数据库方言;分批读取控制内存
	var (
		total     time.Duration
		completed int64
		batch     []model.ApprovalCaseModel
	)
	if err := db.Model(&model.ApprovalCaseModel{}).
		Select("id, created_at, completed_at").
		Where("completed_at IS NOT NULL").
		FindInBatches(&batch, completionBatchSize, func(*gorm.DB, int) error {
			for _, c := range batch {
				total += c.CompletedAt.Sub(c.CreatedAt)
			}
			completed += int64(len(batch))
			return nil
		}).Error; err != nil {
		return nil, fmt.Errorf("failed to load completed cases: %w", err)
	}

	overview := &Overview{
		ByStatus: make([]StatusCount, 0, len(statusRows)),
		ByType:   typeRows,
	}
	for _, row := range statusRows {
		status := model.CaseStatus(row.Status)
		overview.ByStatus = append(overview.ByStatus, StatusCount{
			Status: status,
			Label:  status.Label(),
			Count:  row.Count,
		})
	}
	if completed > 0 {
		overview.AverageCompletionHours = total.Hours() / float64(completed)
	}
	if overview.ByType == nil {
		overview.ByType = []TypeCount{}
	}

	return overview, nil
}
