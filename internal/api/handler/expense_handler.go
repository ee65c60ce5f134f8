package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"studyhall/internal/dto"
	"studyhall/internal/service"
	"studyhall/pkg/response"
)

// ExpenseHandler 支出模块 HTTP 处理器
type ExpenseHandler struct {
	expenseSvc service.ExpenseService
}

// NewExpenseHandler 创建 ExpenseHandler
func NewExpenseHandler(expenseSvc service.ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{expenseSvc: expenseSvc}
}

// ListExpenses 支出列表
// GET /api/v1/expenses
func (h *ExpenseHandler) ListExpenses(c *gin.Context) {
	var req dto.ExpenseListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	result, err := h.expenseSvc.List(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKPage(c, result.List, result.Total, result.Page, result.PageSize)
}

// Stats 支出统计
// GET /api/v1/expenses/stats
func (h *ExpenseHandler) Stats(c *gin.Context) {
	stats, err := h.expenseSvc.Stats(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, stats)
}

// CreateExpense 登记支出
// POST /api/v1/expenses
func (h *ExpenseHandler) CreateExpense(c *gin.Context) {
	var req dto.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	expense, err := h.expenseSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleExpenseError(c, err)
		return
	}

	response.Created(c, expense)
}

// UpdateExpense 更新支出
// PUT /api/v1/expenses/:id
func (h *ExpenseHandler) UpdateExpense(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	expense, err := h.expenseSvc.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.handleExpenseError(c, err)
		return
	}

	response.OK(c, expense)
}

// DeleteExpense 删除支出
// DELETE /api/v1/expenses/:id
func (h *ExpenseHandler) DeleteExpense(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.expenseSvc.Delete(c.Request.Context(), id); err != nil {
		h.handleExpenseError(c, err)
		return
	}
	response.OK(c, nil)
}

func (h *ExpenseHandler) handleExpenseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExpenseNotFound):
		response.NotFound(c, 16001, "支出记录不存在")
	case errors.Is(err, service.ErrInvalidDate):
		response.BadRequest(c, 13003, "日期格式无效，应为 YYYY-MM-DD")
	default:
		response.InternalError(c)
	}
}
