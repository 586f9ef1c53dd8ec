package dto

// ── 公告模块 DTO ──

// CreateAnnouncementRequest 创建公告请求
type CreateAnnouncementRequest struct {
	Title          string  `json:"title"           binding:"required,min=2,max=200"`
	Content        string  `json:"content"         binding:"required,max=10000"`
	TargetAudience string  `json:"target_audience" binding:"required,oneof=All Faculty Students Specific_Program"`
	TargetProgram  *string `json:"target_program"  binding:"omitempty,max=100"`
}

// UpdateAnnouncementRequest 更新公告请求
type UpdateAnnouncementRequest struct {
	Title          *string `json:"title"           binding:"omitempty,min=2,max=200"`
	Content        *string `json:"content"         binding:"omitempty,max=10000"`
	TargetAudience *string `json:"target_audience" binding:"omitempty,oneof=All Faculty Students Specific_Program"`
	TargetProgram  *string `json:"target_program"  binding:"omitempty,max=100"`
	Version        int     `json:"version"         binding:"required,min=1"`
}

// AnnouncementListRequest 公告列表查询参数
type AnnouncementListRequest struct {
	PaginationRequest
}

// AnnouncementResponse 公告信息响应
type AnnouncementResponse struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	TargetAudience string  `json:"target_audience"`
	TargetProgram  *string `json:"target_program,omitempty"`
	CreatedBy      string  `json:"created_by"`
	CreatorName    string  `json:"creator_name,omitempty"`
	Version        int     `json:"version"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// CreateAnnouncementResponse 创建公告响应，附带扇出结果
type CreateAnnouncementResponse struct {
	Announcement AnnouncementResponse `json:"announcement"`
	Fanout       *FanoutResponse      `json:"fanout,omitempty"`
}
