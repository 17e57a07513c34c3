package repository

import (
	"context"
	"time"

	"github.com/mautops/approval-router/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// activeStatuses 流转中的审批单状态
var activeStatuses = []int{int(model.CaseStatusPending), int(model.CaseStatusInProgress)}

// CaseRepository 审批单仓储接口
type CaseRepository interface {
	Create(ctx context.Context, c *model.ApprovalCaseModel) error
	FindByID(ctx context.Context, id string) (*model.ApprovalCaseModel, error)
	FindByIDForUpdate(ctx context.Context, id string) (*model.ApprovalCaseModel, error)
	FindDetail(ctx context.Context, id string) (*model.ApprovalCaseModel, error)
	UpdateProgress(ctx context.Context, c *model.ApprovalCaseModel) error
	ListByInitiator(ctx context.Context, initiatorID int64, status *model.CaseStatus) ([]*model.ApprovalCaseModel, error)
	ListPendingFor(ctx context.Context, approverID int64) ([]*model.ApprovalCaseModel, error)
	Search(ctx context.Context, filter *CaseFilter) ([]*model.ApprovalCaseModel, int64, error)
	CountByInitiator(ctx context.Context, initiatorID int64, statuses []model.CaseStatus, since *time.Time) (int64, error)
	RecentByInitiator(ctx context.Context, initiatorID int64, limit int) ([]*model.ApprovalCaseModel, error)
}

// CaseFilter 审批单查询过滤器
type CaseFilter struct {
	TypeCode      *string
	Status        *model.CaseStatus
	InitiatorID   *int64
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Keyword       string
	SortField     string // 调用方负责白名单校验
	SortOrder     string
	Page          int
	PageSize      int
}

// caseRepository 审批单仓储实现
type caseRepository struct {
	db *gorm.DB
}

// NewCaseRepository 创建审批单仓储
func NewCaseRepository(db *gorm.DB) CaseRepository {
	return &caseRepository{db: db}
}

// Create 保存审批单主记录,节点与附件由各自仓储写入
func (r *caseRepository) Create(ctx context.Context, c *model.ApprovalCaseModel) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(c).Error
}

// FindByID 根据 ID 查找审批单
func (r *caseRepository) FindByID(ctx context.Context, id string) (*model.ApprovalCaseModel, error) {
	var c model.ApprovalCaseModel
	if err := GetDB(ctx, r.db).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindByIDForUpdate 加行锁读取审批单,需要在事务中调用
// SQLite 不支持行级锁,依赖单写连接串行化
func (r *caseRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.ApprovalCaseModel, error) {
	db := GetDB(ctx, r.db)
	if db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var c model.ApprovalCaseModel
	if err := db.Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindDetail 查找审批单及其节点和附件
func (r *caseRepository) FindDetail(ctx context.Context, id string) (*model.ApprovalCaseModel, error) {
	var c model.ApprovalCaseModel
	err := GetDB(ctx, r.db).
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("stage_order ASC")
		}).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateProgress 更新审批单流转字段
func (r *caseRepository) UpdateProgress(ctx context.Context, c *model.ApprovalCaseModel) error {
	return GetDB(ctx, r.db).Model(c).
		Select("status", "current_stage_order", "updated_at", "completed_at").
		Updates(c).Error
}

// ListByInitiator 查找用户发起的审批单
func (r *caseRepository) ListByInitiator(ctx context.Context, initiatorID int64, status *model.CaseStatus) ([]*model.ApprovalCaseModel, error) {
	var cases []*model.ApprovalCaseModel
	query := GetDB(ctx, r.db).Where("initiator_id = ?", initiatorID)
	if status != nil {
		query = query.Where("status = ?", int(*status))
	}
	err := query.Order("created_at DESC").Find(&cases).Error
	return cases, err
}

// ListPendingFor 查找等待用户审批的审批单
// 只返回当前节点恰好是该用户待审节点的审批单,过期的待审节点不会被返回
func (r *caseRepository) ListPendingFor(ctx context.Context, approverID int64) ([]*model.ApprovalCaseModel, error) {
	var cases []*model.ApprovalCaseModel
	err := GetDB(ctx, r.db).
		Select("approval_cases.*").
		Joins("JOIN approval_stage_instances s ON s.case_id = approval_cases.id").
		Where("s.approver_id = ? AND s.status = ?", approverID, int(model.StageStatusPending)).
		Where("s.stage_order = approval_cases.current_stage_order").
		Where("approval_cases.status IN ?", activeStatuses).
		Order("approval_cases.priority DESC").
		Order("approval_cases.created_at DESC").
		Find(&cases).Error
	return cases, err
}

// Search 分页查询审批单
func (r *caseRepository) Search(ctx context.Context, filter *CaseFilter) ([]*model.ApprovalCaseModel, int64, error) {
	query := GetDB(ctx, r.db).Model(&model.ApprovalCaseModel{})

	if filter.TypeCode != nil {
		query = query.Where("type_code = ?", *filter.TypeCode)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", int(*filter.Status))
	}
	if filter.InitiatorID != nil {
		query = query.Where("initiator_id = ?", *filter.InitiatorID)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	if filter.Keyword != "" {
		query = query.Where("title LIKE ?", "%"+filter.Keyword+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := filter.SortField
	if sortField == "" {
		sortField = "created_at"
	}
	desc := filter.SortOrder != "asc"
	query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: sortField}, Desc: desc})

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var cases []*model.ApprovalCaseModel
	err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&cases).Error
	return cases, total, err
}

// CountByInitiator 统计用户发起的审批单数量
func (r *caseRepository) CountByInitiator(ctx context.Context, initiatorID int64, statuses []model.CaseStatus, since *time.Time) (int64, error) {
	query := GetDB(ctx, r.db).Model(&model.ApprovalCaseModel{}).Where("initiator_id = ?", initiatorID)
	if len(statuses) > 0 {
		codes := make([]int, 0, len(statuses))
		for _, s := range statuses {
			codes = append(codes, int(s))
		}
		query = query.Where("status IN ?", codes)
	}
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}

// RecentByInitiator 查找用户最近更新的审批单
func (r *caseRepository) RecentByInitiator(ctx context.Context, initiatorID int64, limit int) ([]*model.ApprovalCaseModel, error) {
	var cases []*model.ApprovalCaseModel
	err := GetDB(ctx, r.db).
		Where("initiator_id = ?", initiatorID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&cases).Error
	return cases, err
}
