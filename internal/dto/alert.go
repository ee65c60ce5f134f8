package dto

// ── 提醒模块 DTO ──

// AlertListRequest 提醒列表查询参数
type AlertListRequest struct {
	PaginationRequest
	Type string `form:"type" binding:"omitempty,oneof=info warning error success"`
	Read *bool  `form:"read"`
}

// CreateAlertRequest 手动创建提醒
type CreateAlertRequest struct {
	Type      string `json:"type"      binding:"required,oneof=info warning error success"`
	Title     string `json:"title"     binding:"required,max=200"`
	Message   string `json:"message"   binding:"required,max=2000"`
	StudentID string `json:"studentId" binding:"omitempty,uuid"`
}

// BulkDeleteAlertsRequest 批量删除提醒（目前仅支持删除已读）
type BulkDeleteAlertsRequest struct {
	Read bool `form:"read"`
}
