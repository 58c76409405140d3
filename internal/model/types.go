package model

// Settings 开关的展示设置，供页面渲染
type Settings struct {
	Enabled     bool   `json:"enabled"`
	Position    string `json:"position"`
	Label       string `json:"label"`
	Description string `json:"description"`
	ToggleColor string `json:"toggleColor"`
}

// CookModeStatus 烹饪模式当前状态
type CookModeStatus struct {
	Checked  bool   `json:"checked"`
	Disabled bool   `json:"disabled"`
	State    string `json:"state"`
	Status   string `json:"status"`
	Text     string `json:"text,omitempty"`
}

// ToggleRequest 切换开关请求
type ToggleRequest struct {
	Checked *bool `json:"checked" binding:"required"`
}

type Response struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
