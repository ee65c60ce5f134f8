package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"studyhall/internal/dto"
	"studyhall/internal/service"
	"studyhall/pkg/response"
)

// MeHandler 学员自助 HTTP 处理器，所有接口限定为调用方本人的数据
type MeHandler struct {
	selfSvc service.SelfService
}

// NewMeHandler 创建 MeHandler
func NewMeHandler(selfSvc service.SelfService) *MeHandler {
	return &MeHandler{selfSvc: selfSvc}
}

// Details GET /api/v1/me/details
func (h *MeHandler) Details(c *gin.Context) {
	caller, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	student, err := h.selfSvc.Details(c.Request.Context(), caller)
	if err != nil {
		h.handleSelfError(c, err)
		return
	}
	response.OK(c, student)
}

// Payments GET /api/v1/me/payments
func (h *MeHandler) Payments(c *gin.Context) {
	var req dto.MyPaymentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}
	caller, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	resp, err := h.selfSvc.Payments(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleSelfError(c, err)
		return
	}
	response.OK(c, resp)
}

// DuePayments GET /api/v1/me/due-payments
func (h *MeHandler) DuePayments(c *gin.Context) {
	caller, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	resp, err := h.selfSvc.DuePayments(c.Request.Context(), caller)
	if err != nil {
		h.handleSelfError(c, err)
		return
	}
	response.OK(c, resp)
}

// Alerts GET /api/v1/me/alerts
func (h *MeHandler) Alerts(c *gin.Context) {
	caller, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	resp, err := h.selfSvc.Alerts(c.Request.Context(), caller)
	if err != nil {
		h.handleSelfError(c, err)
		return
	}
	response.OK(c, resp)
}

// Seat GET /api/v1/me/seat，未分配座位时 data 为 null
func (h *MeHandler) Seat(c *gin.Context) {
	caller, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	seat, err := h.selfSvc.Seat(c.Request.Context(), caller)
	if err != nil {
		h.handleSelfError(c, err)
		return
	}
	response.OK(c, seat)
}

// Dashboard GET /api/v1/me/dashboard
func (h *MeHandler) Dashboard(c *gin.Context) {
	caller, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	resp, err := h.selfSvc.Dashboard(c.Request.Context(), caller)
	if err != nil {
		h.handleSelfError(c, err)
		return
	}
	response.OK(c, resp)
}

// Calendar 未结清账期的截止日日历
// GET /api/v1/me/payments/calendar
func (h *MeHandler) Calendar(c *gin.Context) {
	caller, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	file, err := h.selfSvc.Calendar(c.Request.Context(), caller)
	if err != nil {
		h.handleSelfError(c, err)
		return
	}
	writeFile(c, file)
}

func (h *MeHandler) handleSelfError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoStudentProfile):
		response.NotFound(c, 18001, "当前账号未关联学员档案")
	case errors.Is(err, service.ErrExportGenerateFail):
		handleExportError(c, err)
	default:
		response.InternalError(c)
	}
}
