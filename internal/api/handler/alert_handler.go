package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"studyhall/internal/dto"
	"studyhall/internal/service"
	"studyhall/pkg/response"
)

// AlertHandler 提醒模块 HTTP 处理器
type AlertHandler struct {
	alertSvc service.AlertService
}

// NewAlertHandler 创建 AlertHandler
func NewAlertHandler(alertSvc service.AlertService) *AlertHandler {
	return &AlertHandler{alertSvc: alertSvc}
}

// ListAlerts 提醒列表
// GET /api/v1/alerts
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	var req dto.AlertListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	result, err := h.alertSvc.List(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKPage(c, result.List, result.Total, result.Page, result.PageSize)
}

// Stats 提醒统计
// GET /api/v1/alerts/stats
func (h *AlertHandler) Stats(c *gin.Context) {
	stats, err := h.alertSvc.Stats(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, stats)
}

// CreateAlert 手动创建提醒
// POST /api/v1/alerts
func (h *AlertHandler) CreateAlert(c *gin.Context) {
	var req dto.CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	alert, err := h.alertSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleAlertError(c, err)
		return
	}

	response.Created(c, alert)
}

// MarkRead 标记已读
// PUT /api/v1/alerts/:id/read
func (h *AlertHandler) MarkRead(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.alertSvc.MarkRead(c.Request.Context(), id); err != nil {
		h.handleAlertError(c, err)
		return
	}
	response.OK(c, nil)
}

// MarkAllRead 全部标记已读
// PUT /api/v1/alerts/read-all
func (h *AlertHandler) MarkAllRead(c *gin.Context) {
	n, err := h.alertSvc.MarkAllRead(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"updated": n})
}

// DeleteAlert 删除提醒
// DELETE /api/v1/alerts/:id
func (h *AlertHandler) DeleteAlert(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.alertSvc.Delete(c.Request.Context(), id); err != nil {
		h.handleAlertError(c, err)
		return
	}
	response.OK(c, nil)
}

// BulkDelete 批量删除已读提醒
// DELETE /api/v1/alerts?read=true
func (h *AlertHandler) BulkDelete(c *gin.Context) {
	var req dto.BulkDeleteAlertsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	n, err := h.alertSvc.BulkDelete(c.Request.Context(), &req)
	if err != nil {
		h.handleAlertError(c, err)
		return
	}
	response.OK(c, gin.H{"deleted": n})
}

func (h *AlertHandler) handleAlertError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAlertNotFound):
		response.NotFound(c, 17001, "提醒不存在")
	case errors.Is(err, service.ErrAlertFilterRequired):
		response.BadRequest(c, 17002, "批量删除仅支持 read=true")
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 13001, "学员不存在")
	default:
		response.InternalError(c)
	}
}
