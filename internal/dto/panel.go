package dto

// ── 通知面板 DTO ──

// PanelItemResponse 面板中的单条通知
type PanelItemResponse struct {
	ID          string `json:"id"`
	Admin       string `json:"admin"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Read        bool   `json:"read"`
	Avatar      string `json:"avatar"`
	TimeAgo     string `json:"time_ago"`
	Timestamp   int64  `json:"timestamp"` // 毫秒
}

// BadgeResponse 铃铛角标
type BadgeResponse struct {
	Count   int    `json:"count"`
	Text    string `json:"text"`
	Visible bool   `json:"visible"`
}

// PanelResponse 面板渲染结果
type PanelResponse struct {
	Items           []PanelItemResponse `json:"items"`
	Empty           bool                `json:"empty"`
	Placeholder     string              `json:"placeholder,omitempty"`
	MarkAllDisabled bool                `json:"mark_all_disabled"`
	Badge           BadgeResponse       `json:"badge"`
}
