package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"studyhall/internal/dto"
	"studyhall/internal/model"
	"studyhall/internal/repository"
)

// ── 提醒模块业务错误 ──

var (
	ErrAlertNotFound       = errors.New("提醒不存在")
	ErrAlertFilterRequired = errors.New("批量删除仅支持 read=true")
)

// AlertService 提醒日志：只追加，仅允许修改已读标记与删除
type AlertService interface {
	List(ctx context.Context, req *dto.AlertListRequest) (*dto.PageResult[model.Alert], error)
	Stats(ctx context.Context) (*repository.AlertStats, error)
	Create(ctx context.Context, req *dto.CreateAlertRequest) (*model.Alert, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
	BulkDelete(ctx context.Context, req *dto.BulkDeleteAlertsRequest) (int64, error)
}

type alertService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewAlertService 创建 AlertService 实例
func NewAlertService(repo *repository.Repository, logger *zap.Logger) AlertService {
	return &alertService{repo: repo, logger: logger}
}

func (s *alertService) List(ctx context.Context, req *dto.AlertListRequest) (*dto.PageResult[model.Alert], error) {
	alerts, total, err := s.repo.Alert.List(ctx, repository.AlertFilter{
		Type: req.Type,
		Read: req.Read,
	}, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询提醒列表失败", zap.Error(err))
		return nil, err
	}
	return &dto.PageResult[model.Alert]{
		List:     alerts,
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
	}, nil
}

func (s *alertService) Stats(ctx context.Context) (*repository.AlertStats, error) {
	stats, err := s.repo.Alert.Stats(ctx)
	if err != nil {
		s.logger.Error("查询提醒统计失败", zap.Error(err))
		return nil, err
	}
	return stats, nil
}

// Create 手动创建提醒；未指定学员时为广播
func (s *alertService) Create(ctx context.Context, req *dto.CreateAlertRequest) (*model.Alert, error) {
	alert := &model.Alert{
		Type:    req.Type,
		Title:   req.Title,
		Message: req.Message,
	}
	if req.StudentID != "" {
		if _, err := s.repo.Student.GetByID(ctx, req.StudentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrStudentNotFound
			}
			s.logger.Error("查询学员失败", zap.Error(err))
			return nil, err
		}
		id := req.StudentID
		alert.StudentID = &id
	}

	if err := s.repo.Alert.Create(ctx, alert); err != nil {
		s.logger.Error("创建提醒失败", zap.Error(err))
		return nil, err
	}
	return alert, nil
}

func (s *alertService) MarkRead(ctx context.Context, id string) error {
	if err := s.repo.Alert.MarkRead(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAlertNotFound
		}
		s.logger.Error("标记已读失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *alertService) MarkAllRead(ctx context.Context) (int64, error) {
	n, err := s.repo.Alert.MarkAllRead(ctx)
	if err != nil {
		s.logger.Error("全部标记已读失败", zap.Error(err))
		return 0, err
	}
	return n, nil
}

func (s *alertService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Alert.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAlertNotFound
		}
		s.logger.Error("删除提醒失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *alertService) BulkDelete(ctx context.Context, req *dto.BulkDeleteAlertsRequest) (int64, error) {
	if !req.Read {
		return 0, ErrAlertFilterRequired
	}
	n, err := s.repo.Alert.DeleteRead(ctx)
	if err != nil {
		s.logger.Error("批量删除提醒失败", zap.Error(err))
		return 0, err
	}
	s.logger.Info("已读提醒已清理", zap.Int64("deleted", n))
	return n, nil
}
