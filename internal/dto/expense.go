package dto

// ── 支出模块 DTO ──

// ExpenseListRequest 支出列表查询参数
type ExpenseListRequest struct {
	PaginationRequest
	Category string `form:"category" binding:"omitempty,oneof=utilities maintenance supplies staff marketing other"`
	Type     string `form:"type"     binding:"omitempty,oneof=one-time recurring"`
}

// CreateExpenseRequest 新增支出
type CreateExpenseRequest struct {
	Category    string  `json:"category"    binding:"required,oneof=utilities maintenance supplies staff marketing other"`
	Description string  `json:"description" binding:"required,max=500"`
	Amount      float64 `json:"amount"      binding:"required,gt=0"`
	Date        string  `json:"date"        binding:"omitempty,datetime=2006-01-02"`
	Type        string  `json:"type"        binding:"omitempty,oneof=one-time recurring"`
}

// UpdateExpenseRequest 更新支出（白名单字段）
type UpdateExpenseRequest struct {
	Category    *string  `json:"category"    binding:"omitempty,oneof=utilities maintenance supplies staff marketing other"`
	Description *string  `json:"description" binding:"omitempty,max=500"`
	Amount      *float64 `json:"amount"      binding:"omitempty,gt=0"`
	Date        *string  `json:"date"        binding:"omitempty,datetime=2006-01-02"`
	Type        *string  `json:"type"        binding:"omitempty,oneof=one-time recurring"`
}
