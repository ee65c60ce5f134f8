package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"studyhall/internal/dto"
	"studyhall/internal/service"
	pkgerrors "studyhall/pkg/errors"
	"studyhall/pkg/response"
)

// SeatHandler 座位模块 HTTP 处理器
type SeatHandler struct {
	seatSvc service.SeatService
}

// NewSeatHandler 创建 SeatHandler
func NewSeatHandler(seatSvc service.SeatService) *SeatHandler {
	return &SeatHandler{seatSvc: seatSvc}
}

// ListSeats 全部座位及占用者
// GET /api/v1/seats
func (h *SeatHandler) ListSeats(c *gin.Context) {
	seats, err := h.seatSvc.List(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"list": seats})
}

// Stats 座位统计
// GET /api/v1/seats/stats
func (h *SeatHandler) Stats(c *gin.Context) {
	stats, err := h.seatSvc.Stats(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, stats)
}

// CreateSeat 新增座位
// POST /api/v1/seats/create
func (h *SeatHandler) CreateSeat(c *gin.Context) {
	var req dto.CreateSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	seat, err := h.seatSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleSeatError(c, err)
		return
	}

	response.Created(c, seat)
}

// Initialize 批量初始化座位
// POST /api/v1/seats/initialize
func (h *SeatHandler) Initialize(c *gin.Context) {
	var req dto.InitializeSeatsRequest
	// 请求体可省略，此时使用配置的默认数量
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
			return
		}
	}

	seats, err := h.seatSvc.Initialize(c.Request.Context(), &req)
	if err != nil {
		h.handleSeatError(c, err)
		return
	}

	response.Created(c, gin.H{"list": seats})
}

// DeleteSeat 删除座位
// DELETE /api/v1/seats/delete
func (h *SeatHandler) DeleteSeat(c *gin.Context) {
	var req dto.DeleteSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	if err := h.seatSvc.Delete(c.Request.Context(), &req); err != nil {
		h.handleSeatError(c, err)
		return
	}

	response.OKMsg(c, "座位已删除", nil)
}

// Assign 分配座位
// POST /api/v1/seats/assign
func (h *SeatHandler) Assign(c *gin.Context) {
	var req dto.AssignSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	seat, err := h.seatSvc.Assign(c.Request.Context(), &req)
	if err != nil {
		h.handleSeatError(c, err)
		return
	}

	response.OK(c, seat)
}

// Unassign 释放座位
// PUT /api/v1/seats/:id/unassign
func (h *SeatHandler) Unassign(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.UnassignSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	seat, err := h.seatSvc.Unassign(c.Request.Context(), id, &req)
	if err != nil {
		h.handleSeatError(c, err)
		return
	}

	response.OK(c, seat)
}

// handleSeatError 统一处理座位模块业务错误
func (h *SeatHandler) handleSeatError(c *gin.Context, err error) {
	var seated *service.StudentSeatedError
	switch {
	case errors.As(err, &seated):
		response.Conflict(c, 14002, seated.Error())
	case errors.Is(err, service.ErrStudentAlreadySeated):
		response.Conflict(c, 14002, "该学员已分配座位")
	case errors.Is(err, service.ErrSeatNotFound):
		response.NotFound(c, 14001, "座位不存在")
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 13001, "学员不存在")
	case errors.Is(err, service.ErrSeatUnavailable):
		response.Conflict(c, 14003, "座位已满，无法分配")
	case errors.Is(err, service.ErrTimingConflict):
		response.Conflict(c, 14004, "座位当前时段与请求时段冲突")
	case errors.Is(err, service.ErrInvalidTiming):
		response.BadRequest(c, 14005, "座位时段必须为 half 或 full")
	case errors.Is(err, service.ErrSeatNotOccupied):
		response.BadRequest(c, 14006, "座位当前无人占用")
	case errors.Is(err, service.ErrStudentNotOnSeat):
		response.BadRequest(c, 14007, "该学员不在此座位上")
	case errors.Is(err, service.ErrSeatNumberExists):
		response.Conflict(c, 14008, "座位号已存在")
	case errors.Is(err, service.ErrSeatHasOccupants):
		response.Conflict(c, 14009, "座位仍有学员占用，请先释放或使用 force")
	case errors.Is(err, service.ErrSeatsAlreadyInitialized):
		response.Conflict(c, 14010, "座位已初始化")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 14011, "座位状态已变化，请刷新后重试")
	default:
		response.InternalError(c)
	}
}
