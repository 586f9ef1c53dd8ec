package dto

// ── 通知模块 DTO ──

// NotificationListRequest 通知列表查询参数
type NotificationListRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

// BroadcastRequest 管理员广播系统通知
type BroadcastRequest struct {
	Message        string  `json:"message"         binding:"required,min=1,max=2000"`
	TargetAudience string  `json:"target_audience" binding:"required"`
	TargetProgram  *string `json:"target_program"  binding:"omitempty,max=100"`
}

// DeliveryResponse 单条投递记录（含通知内容）
type DeliveryResponse struct {
	ID             string  `json:"id"`
	NotificationID string  `json:"notification_id"`
	Message        string  `json:"message"`
	Type           string  `json:"type"`
	EventID        *string `json:"event_id,omitempty"`
	AnnouncementID *string `json:"announcement_id,omitempty"`
	ReadStatus     bool    `json:"read_status"`
	ViewedAt       string  `json:"viewed_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

// NotificationListResponse GET /notifications 响应
// UnreadCount 统计用户全部投递记录，而非当前页
type NotificationListResponse struct {
	Count       int                `json:"count"`
	UnreadCount int64              `json:"unreadCount"`
	Data        []DeliveryResponse `json:"data"`
}

// MarkAllReadResponse 全部已读响应
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

// FanoutResponse 扇出结果
type FanoutResponse struct {
	NotificationID string `json:"notification_id"`
	Recipients     int    `json:"recipients"`
	Delivered      int    `json:"delivered"`
	Failed         int    `json:"failed"`
}
