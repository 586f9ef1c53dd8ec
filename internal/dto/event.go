package dto

// ── 活动模块 DTO ──

// CreateEventRequest 创建活动请求
type CreateEventRequest struct {
	EventName      string  `json:"event_name"      binding:"required,min=2,max=200"`
	Description    string  `json:"description"     binding:"omitempty,max=5000"`
	Date           string  `json:"date"            binding:"required"` // "2026-09-01"
	Time           *string `json:"time"            binding:"omitempty"` // "14:30"
	Location       string  `json:"location"        binding:"required,max=200"`
	TargetAudience string  `json:"target_audience" binding:"required,oneof=All Faculty Students Specific_Program"`
	TargetProgram  *string `json:"target_program"  binding:"omitempty,max=100"`
}

// UpdateEventRequest 更新活动请求
type UpdateEventRequest struct {
	EventName      *string `json:"event_name"      binding:"omitempty,min=2,max=200"`
	Description    *string `json:"description"     binding:"omitempty,max=5000"`
	Date           *string `json:"date"`
	Time           *string `json:"time"`
	Location       *string `json:"location"        binding:"omitempty,max=200"`
	Status         *string `json:"status"          binding:"omitempty,oneof=Upcoming Ongoing Completed Cancelled"`
	TargetAudience *string `json:"target_audience" binding:"omitempty,oneof=All Faculty Students Specific_Program"`
	TargetProgram  *string `json:"target_program"  binding:"omitempty,max=100"`
	Version        int     `json:"version"         binding:"required,min=1"`
}

// EventResponse 活动信息响应
type EventResponse struct {
	ID             string  `json:"id"`
	EventName      string  `json:"event_name"`
	Description    string  `json:"description,omitempty"`
	Date           string  `json:"date"`
	Time           *string `json:"time,omitempty"`
	Location       string  `json:"location"`
	Status         string  `json:"status"`
	TargetAudience string  `json:"target_audience"`
	TargetProgram  *string `json:"target_program,omitempty"`
	CreatedBy      string  `json:"created_by"`
	CreatorName    string  `json:"creator_name,omitempty"`
	Version        int     `json:"version"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// CreateEventResponse 创建活动响应，附带扇出结果
type CreateEventResponse struct {
	Event  EventResponse   `json:"event"`
	Fanout *FanoutResponse `json:"fanout,omitempty"`
}
