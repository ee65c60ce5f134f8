package dto

// ── 学员模块 DTO ──

// StudentListRequest 学员列表查询参数
type StudentListRequest struct {
	PaginationRequest
	Status string `form:"status" binding:"omitempty,oneof=active inactive"`
	Shift  string `form:"shift"  binding:"omitempty,oneof=morning afternoon evening"`
	Search string `form:"search" binding:"omitempty,max=50"`
}

// CreateStudentRequest 创建学员请求
type CreateStudentRequest struct {
	Name        string  `json:"name"         binding:"required,min=1,max=100"`
	Email       string  `json:"email"        binding:"required,email"`
	Phone       string  `json:"phone"        binding:"required,min=5,max=20"`
	Address     string  `json:"address"      binding:"omitempty,max=500"`
	JoinDate    string  `json:"join_date"    binding:"omitempty,datetime=2006-01-02"`
	Shift       string  `json:"shift"        binding:"required,oneof=morning afternoon evening"`
	SeatingType string  `json:"seating_type" binding:"omitempty,seat_timing"`
	MonthlyFee  float64 `json:"monthly_fee"  binding:"omitempty,min=0"`
}

// UpdateStudentRequest 更新学员请求；座位号不可通过此接口修改
type UpdateStudentRequest struct {
	Name        *string  `json:"name"         binding:"omitempty,min=1,max=100"`
	Email       *string  `json:"email"        binding:"omitempty,email"`
	Phone       *string  `json:"phone"        binding:"omitempty,min=5,max=20"`
	Address     *string  `json:"address"      binding:"omitempty,max=500"`
	Shift       *string  `json:"shift"        binding:"omitempty,oneof=morning afternoon evening"`
	SeatingType *string  `json:"seating_type" binding:"omitempty,seat_timing"`
	Status      *string  `json:"status"       binding:"omitempty,oneof=active inactive"`
	MonthlyFee  *float64 `json:"monthly_fee"  binding:"omitempty,min=0"`
}
