package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"studyhall/internal/dto"
	"studyhall/internal/service"
	"studyhall/pkg/response"
)

// PaymentHandler 缴费模块 HTTP 处理器
type PaymentHandler struct {
	paymentSvc service.PaymentService
	exportSvc  service.ExportService
}

// NewPaymentHandler 创建 PaymentHandler
func NewPaymentHandler(paymentSvc service.PaymentService, exportSvc service.ExportService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc, exportSvc: exportSvc}
}

// ListPayments 缴费记录列表
// GET /api/v1/payments
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	var req dto.PaymentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	result, err := h.paymentSvc.List(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKPage(c, result.List, result.Total, result.Page, result.PageSize)
}

// Stats 缴费统计
// GET /api/v1/payments/stats
func (h *PaymentHandler) Stats(c *gin.Context) {
	stats, err := h.paymentSvc.Stats(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, stats)
}

// ListByStudent 指定学员的缴费记录
// GET /api/v1/payments/student/:id
func (h *PaymentHandler) ListByStudent(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id")
	if !ok {
		return
	}
	payments, err := h.paymentSvc.ListByStudent(c.Request.Context(), id)
	if err != nil {
		h.handlePaymentError(c, err)
		return
	}
	response.OK(c, gin.H{"list": payments})
}

// Export 导出缴费记录（CSV / Excel）
// GET /api/v1/payments/export?format=xlsx
func (h *PaymentHandler) Export(c *gin.Context) {
	var req dto.ExportPaymentRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	file, err := h.exportSvc.ExportPayments(c.Request.Context(), &req)
	if err != nil {
		handleExportError(c, err)
		return
	}

	writeFile(c, file)
}

// AddPending 登记待缴账期
// POST /api/v1/payments/pending
func (h *PaymentHandler) AddPending(c *gin.Context) {
	var req dto.PendingPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	payment, err := h.paymentSvc.AddPending(c.Request.Context(), &req)
	if err != nil {
		h.handlePaymentError(c, err)
		return
	}

	response.Created(c, payment)
}

// Deposit 登记缴费，账期已有待缴或逾期记录时转为已缴
// POST /api/v1/payments/deposit
func (h *PaymentHandler) Deposit(c *gin.Context) {
	var req dto.DepositPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	payment, err := h.paymentSvc.Deposit(c.Request.Context(), &req)
	if err != nil {
		h.handlePaymentError(c, err)
		return
	}

	response.OK(c, payment)
}

// UpdatePayment 更新缴费记录
// PUT /api/v1/payments/:id
func (h *PaymentHandler) UpdatePayment(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	payment, err := h.paymentSvc.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.handlePaymentError(c, err)
		return
	}

	response.OK(c, payment)
}

// DeletePayment 删除缴费记录
// DELETE /api/v1/payments/:id
func (h *PaymentHandler) DeletePayment(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.paymentSvc.Delete(c.Request.Context(), id); err != nil {
		h.handlePaymentError(c, err)
		return
	}
	response.OKMsg(c, "缴费记录已删除", nil)
}

// SweepOverdue 手动触发逾期扫描
// POST /api/v1/payments/sweep-overdue
func (h *PaymentHandler) SweepOverdue(c *gin.Context) {
	result, err := h.paymentSvc.SweepOverdue(c.Request.Context(), time.Now())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, result)
}

// GenerateMonthly 手动生成本月账单
// POST /api/v1/payments/generate-monthly
func (h *PaymentHandler) GenerateMonthly(c *gin.Context) {
	result, err := h.paymentSvc.GenerateMonthly(c.Request.Context(), time.Now())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, result)
}

// handlePaymentError 统一处理缴费模块业务错误
func (h *PaymentHandler) handlePaymentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPaymentNotFound):
		response.NotFound(c, 15001, "缴费记录不存在")
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 13001, "学员不存在")
	case errors.Is(err, service.ErrPaymentPeriodExists):
		response.Conflict(c, 15002, "该学员此账期已有缴费记录")
	case errors.Is(err, service.ErrPaymentAlreadyPaid):
		response.Conflict(c, 15003, "该账期已缴清")
	case errors.Is(err, service.ErrInvalidPaymentTransition):
		response.BadRequest(c, 15004, "缴费状态不允许此变更")
	case errors.Is(err, service.ErrInvalidMonth):
		response.BadRequest(c, 15005, "月份无效")
	case errors.Is(err, service.ErrInvalidDate):
		response.BadRequest(c, 13003, "日期格式无效，应为 YYYY-MM-DD")
	case errors.Is(err, service.ErrConcurrentUpdate):
		response.Conflict(c, 13004, "数据正在被其他操作修改，请稍后重试")
	default:
		response.InternalError(c)
	}
}
