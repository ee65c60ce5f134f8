package handler

import (
	"github.com/gin-gonic/gin"

	"studyhall/internal/dto"
	"studyhall/internal/service"
	"studyhall/pkg/response"
)

// DashboardHandler 报表模块 HTTP 处理器
type DashboardHandler struct {
	dashboardSvc service.DashboardService
}

// NewDashboardHandler 创建 DashboardHandler
func NewDashboardHandler(dashboardSvc service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardSvc: dashboardSvc}
}

// Stats 运营概况
// GET /api/v1/dashboard/stats
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.dashboardSvc.Stats(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, stats)
}

// RevenueAnalytics 收入分析
// GET /api/v1/dashboard/revenue-analytics?period=3months
func (h *DashboardHandler) RevenueAnalytics(c *gin.Context) {
	var req dto.RevenueAnalyticsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	out, err := h.dashboardSvc.RevenueAnalytics(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, out)
}
