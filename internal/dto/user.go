package dto

// ── 用户模块 DTO ──

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	PaginationRequest
	Role       string `form:"role"       binding:"omitempty,oneof=Admin Faculty Student"`
	Department string `form:"department" binding:"omitempty,max=100"`
	Program    string `form:"program"    binding:"omitempty,max=100"`
	IsActive   *bool  `form:"is_active"`
}

// UpdateProfileRequest 更新个人资料请求
type UpdateProfileRequest struct {
	Name       *string `json:"name"        binding:"omitempty,min=2,max=100"`
	Department *string `json:"department"  binding:"omitempty,max=100"`
	Program    *string `json:"program"     binding:"omitempty,max=100"`
	YearLevel  *string `json:"year_level"  binding:"omitempty,max=20"`
}

// ApproveUserRequest 审核用户请求，可同时指定角色
type ApproveUserRequest struct {
	Role *string `json:"role" binding:"omitempty,oneof=Admin Faculty Student"`
}
