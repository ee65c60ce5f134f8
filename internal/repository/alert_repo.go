package repository

import (
	"context"

	"gorm.io/gorm"

	"studyhall/internal/model"
)

// AlertFilter 提醒列表筛选条件
type AlertFilter struct {
	Type string
	Read *bool
}

// AlertStats 提醒统计
type AlertStats struct {
	Total  int64            `json:"total"`
	Unread int64            `json:"unread"`
	ByType map[string]int64 `json:"byType"`
}

// AlertRepository 提醒数据访问接口
type AlertRepository interface {
	Create(ctx context.Context, alert *model.Alert) error
	CreateBatch(ctx context.Context, alerts []model.Alert) error
	GetByID(ctx context.Context, id string) (*model.Alert, error)
	List(ctx context.Context, filter AlertFilter, offset, limit int) ([]model.Alert, int64, error)
	ListForStudent(ctx context.Context, studentID string, limit int) ([]model.Alert, error)
	CountUnreadForStudent(ctx context.Context, studentID string) (int64, error)
	Recent(ctx context.Context, limit int) ([]model.Alert, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
	DeleteRead(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*AlertStats, error)
}

// alertRepo AlertRepository 的 GORM 实现
type alertRepo struct {
	db *gorm.DB
}

// NewAlertRepo 创建 AlertRepository 实例
func NewAlertRepo(db *gorm.DB) AlertRepository {
	return &alertRepo{db: db}
}

func (r *alertRepo) Create(ctx context.Context, alert *model.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *alertRepo) CreateBatch(ctx context.Context, alerts []model.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(alerts, 200).Error
}

func (r *alertRepo) GetByID(ctx context.Context, id string) (*model.Alert, error) {
	var alert model.Alert
	if err := r.db.WithContext(ctx).Where("alert_id = ?", id).First(&alert).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *alertRepo) List(ctx context.Context, filter AlertFilter, offset, limit int) ([]model.Alert, int64, error) {
	var alerts []model.Alert
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Alert{})
	if filter.Type != "" {
		db = db.Where("type = ?", filter.Type)
	}
	if filter.Read != nil {
		db = db.Where("read = ?", *filter.Read)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Offset(offset).Limit(limit).Order("created_at DESC").Find(&alerts).Error; err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

// ListForStudent 学员本人的提醒及广播提醒
func (r *alertRepo) ListForStudent(ctx context.Context, studentID string, limit int) ([]model.Alert, error) {
	var alerts []model.Alert
	db := r.db.WithContext(ctx).
		Where("student_id = ? OR student_id IS NULL", studentID).
		Order("created_at DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&alerts).Error
	return alerts, err
}

func (r *alertRepo) CountUnreadForStudent(ctx context.Context, studentID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Alert{}).
		Where("(student_id = ? OR student_id IS NULL) AND read = false", studentID).
		Count(&n).Error
	return n, err
}

func (r *alertRepo) Recent(ctx context.Context, limit int) ([]model.Alert, error) {
	var alerts []model.Alert
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&alerts).Error
	return alerts, err
}

func (r *alertRepo) MarkRead(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&model.Alert{}).Where("alert_id = ?", id).Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *alertRepo) MarkAllRead(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Alert{}).Where("read = false").Update("read", true)
	return result.RowsAffected, result.Error
}

func (r *alertRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("alert_id = ?", id).Delete(&model.Alert{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *alertRepo) DeleteRead(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Where("read = true").Delete(&model.Alert{})
	return result.RowsAffected, result.Error
}

func (r *alertRepo) Stats(ctx context.Context) (*AlertStats, error) {
	var totals struct {
		Total  int64
		Unread int64
	}
	err := r.db.WithContext(ctx).Model(&model.Alert{}).
		Select("COUNT(*) AS total, COUNT(*) FILTER (WHERE NOT read) AS unread").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	stats := &AlertStats{Total: totals.Total, Unread: totals.Unread, ByType: map[string]int64{}}

	var rows []groupCount
	err = r.db.WithContext(ctx).Model(&model.Alert{}).
		Select("type AS key, COUNT(*) AS count").
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.ByType[row.Key] = row.Count
	}
	return stats, nil
}
