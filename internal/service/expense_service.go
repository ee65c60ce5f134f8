package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"studyhall/internal/dto"
	"studyhall/internal/model"
	"studyhall/internal/repository"
)

var ErrExpenseNotFound = errors.New("支出记录不存在")

// ExpenseService 支出记录
type ExpenseService interface {
	List(ctx context.Context, req *dto.ExpenseListRequest) (*dto.PageResult[model.Expense], error)
	Stats(ctx context.Context) (*repository.ExpenseStats, error)
	Create(ctx context.Context, req *dto.CreateExpenseRequest) (*model.Expense, error)
	Update(ctx context.Context, id string, req *dto.UpdateExpenseRequest) (*model.Expense, error)
	Delete(ctx context.Context, id string) error
}

type expenseService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExpenseService 创建 ExpenseService 实例
func NewExpenseService(repo *repository.Repository, logger *zap.Logger) ExpenseService {
	return &expenseService{repo: repo, logger: logger}
}

func (s *expenseService) List(ctx context.Context, req *dto.ExpenseListRequest) (*dto.PageResult[model.Expense], error) {
	expenses, total, err := s.repo.Expense.List(ctx, repository.ExpenseFilter{
		Category: req.Category,
		Type:     req.Type,
	}, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询支出列表失败", zap.Error(err))
		return nil, err
	}
	return &dto.PageResult[model.Expense]{
		List:     expenses,
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
	}, nil
}

func (s *expenseService) Stats(ctx context.Context) (*repository.ExpenseStats, error) {
	stats, err := s.repo.Expense.Stats(ctx)
	if err != nil {
		s.logger.Error("查询支出统计失败", zap.Error(err))
		return nil, err
	}
	return stats, nil
}

func (s *expenseService) Create(ctx context.Context, req *dto.CreateExpenseRequest) (*model.Expense, error) {
	date := time.Now()
	if req.Date != "" {
		d, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			return nil, ErrInvalidDate
		}
		date = d
	}
	typ := req.Type
	if typ == "" {
		typ = model.ExpenseOneTime
	}

	expense := &model.Expense{
		Category:    req.Category,
		Description: req.Description,
		Amount:      req.Amount,
		Date:        date,
		Type:        typ,
	}
	if err := s.repo.Expense.Create(ctx, expense); err != nil {
		s.logger.Error("创建支出失败", zap.Error(err))
		return nil, err
	}
	return expense, nil
}

func (s *expenseService) Update(ctx context.Context, id string, req *dto.UpdateExpenseRequest) (*model.Expense, error) {
	fields := make(map[string]interface{})
	if req.Category != nil {
		fields["category"] = *req.Category
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Amount != nil {
		fields["amount"] = *req.Amount
	}
	if req.Type != nil {
		fields["type"] = *req.Type
	}
	if req.Date != nil {
		d, err := time.Parse("2006-01-02", *req.Date)
		if err != nil {
			return nil, ErrInvalidDate
		}
		fields["date"] = d
	}

	if len(fields) > 0 {
		if err := s.repo.Expense.UpdateFields(ctx, id, fields); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrExpenseNotFound
			}
			s.logger.Error("更新支出失败", zap.String("id", id), zap.Error(err))
			return nil, err
		}
	}

	expense, err := s.repo.Expense.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExpenseNotFound
		}
		s.logger.Error("查询支出失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return expense, nil
}

func (s *expenseService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Expense.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrExpenseNotFound
		}
		s.logger.Error("删除支出失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}
