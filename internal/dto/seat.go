package dto

// ── 座位模块 DTO ──

// AssignSeatRequest 分配座位请求
type AssignSeatRequest struct {
	SeatID             string `json:"seatId"             binding:"required,uuid"`
	StudentID          string `json:"studentId"          binding:"required,uuid"`
	SeatOccupiedTiming string `json:"seatOccupiedTiming" binding:"omitempty,seat_timing"`
}

// UnassignSeatRequest 释放座位请求
type UnassignSeatRequest struct {
	StudentID string `json:"studentId" binding:"required,uuid"`
}

// CreateSeatRequest 新增座位请求
type CreateSeatRequest struct {
	SeatNumber int    `json:"seatNumber" binding:"required,min=1"`
	Type       string `json:"type"       binding:"omitempty,oneof=regular premium vip"`
	Row        int    `json:"row"        binding:"omitempty,min=1"`
	Column     int    `json:"column"     binding:"omitempty,min=1"`
}

// DeleteSeatRequest 删除座位请求；Force 为 true 时先释放占用者
type DeleteSeatRequest struct {
	SeatNumber int  `json:"seatNumber" binding:"required,min=1"`
	Force      bool `json:"force"`
}

// InitializeSeatsRequest 初始化座位请求
type InitializeSeatsRequest struct {
	Count int `json:"count" binding:"omitempty,min=1,max=1000"`
}

// ── 座位模块响应 ──

// SeatPosition 座位位置
type SeatPosition struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// SeatStudent 座位上的学员
type SeatStudent struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Slot      int    `json:"slot"`
}

// SeatResponse 座位信息（含占用者姓名）
type SeatResponse struct {
	ID                 string        `json:"_id"`
	SeatNumber         int           `json:"seatNumber"`
	Type               string        `json:"type"`
	SeatOccupiedTiming string        `json:"seatOccupiedTiming"`
	Occupied           bool          `json:"occupied"`
	Position           SeatPosition  `json:"position"`
	Students           []SeatStudent `json:"student"`
	Version            int           `json:"version"`
}

// ReconcileReport 座位一致性修复报告
type ReconcileReport struct {
	OrphanOccupants  int64 `json:"orphanOccupants"`
	SeatsRepaired    int   `json:"seatsRepaired"`
	StudentsResynced int   `json:"studentsResynced"`
}
