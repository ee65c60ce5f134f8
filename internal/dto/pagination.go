package dto

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PaginationRequest 列表分页参数
// 兼容旧前端的 limit 参数，page_size 优先
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
	Limit    int `form:"limit"     binding:"omitempty,min=1"`
}

func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

func (p *PaginationRequest) GetPageSize() int {
	size := p.PageSize
	if size <= 0 {
		size = p.Limit
	}
	switch {
	case size <= 0:
		return defaultPageSize
	case size > maxPageSize:
		return maxPageSize
	}
	return size
}

func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// PageResult 服务层分页结果
type PageResult[T any] struct {
	List     []T
	Total    int64
	Page     int
	PageSize int
}
