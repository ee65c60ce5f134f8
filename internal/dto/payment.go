package dto

// ── 缴费模块 DTO ──

// PaymentListRequest 缴费列表查询参数
type PaymentListRequest struct {
	PaginationRequest
	Status    string `form:"status"    binding:"omitempty,oneof=pending paid overdue"`
	StudentID string `form:"studentId" binding:"omitempty,uuid"`
	Month     string `form:"month"     binding:"omitempty,month"`
	Year      int    `form:"year"      binding:"omitempty,min=2000,max=2100"`
	Search    string `form:"search"    binding:"omitempty,max=50"`
}

// PendingPaymentRequest 登记待缴账期
type PendingPaymentRequest struct {
	StudentID string  `json:"studentId" binding:"required,uuid"`
	Month     string  `json:"month"     binding:"required,month"`
	Year      int     `json:"year"      binding:"required,min=2000,max=2100"`
	Amount    float64 `json:"amount"    binding:"required,gt=0"`
}

// DepositPaymentRequest 登记缴费
type DepositPaymentRequest struct {
	StudentID string  `json:"studentId" binding:"required,uuid"`
	Month     string  `json:"month"     binding:"required,month"`
	Year      int     `json:"year"      binding:"required,min=2000,max=2100"`
	Amount    float64 `json:"amount"    binding:"required,gt=0"`
	Method    string  `json:"method"    binding:"required,oneof=cash upi card bank_transfer"`
}

// UpdatePaymentRequest 更新缴费记录（白名单字段）
type UpdatePaymentRequest struct {
	Amount   *float64 `json:"amount"   binding:"omitempty,gt=0"`
	Month    *string  `json:"month"    binding:"omitempty,month"`
	Year     *int     `json:"year"     binding:"omitempty,min=2000,max=2100"`
	Status   *string  `json:"status"   binding:"omitempty,oneof=pending paid overdue"`
	Method   *string  `json:"method"   binding:"omitempty,oneof=cash upi card bank_transfer"`
	PaidDate *string  `json:"paidDate" binding:"omitempty,datetime=2006-01-02"`
}

// ExportPaymentRequest 导出缴费记录
type ExportPaymentRequest struct {
	Format string `form:"format" binding:"omitempty,oneof=csv xlsx"`
	Status string `form:"status" binding:"omitempty,oneof=pending paid overdue"`
	Month  string `form:"month"  binding:"omitempty,month"`
	Year   int    `form:"year"   binding:"omitempty,min=2000,max=2100"`
}

// ── 缴费模块响应 ──

// SweepResult 逾期扫描结果
type SweepResult struct {
	Moved int `json:"moved"`
}

// GenerateResult 月度账单生成结果
type GenerateResult struct {
	Month   string `json:"month"`
	Year    int    `json:"year"`
	Created int64  `json:"created"`
	Skipped int64  `json:"skipped"`
}
