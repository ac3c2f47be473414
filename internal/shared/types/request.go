package types

// LoginRequest selects an auth provider
type LoginRequest struct {
	Provider string `json:"provider" binding:"required"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LockRequest engages focus lock
type LockRequest struct {
	LockPanel string `json:"lock_panel"`
	Companion string `json:"companion"`
}

// TimerStartRequest starts a session; zero duration uses the settings default
type TimerStartRequest struct {
	Mode      string `json:"mode" binding:"required"`
	Duration  int    `json:"duration"`
	Lock      *bool  `json:"lock,omitempty"`
	Companion string `json:"companion"`
}

// PageRequest creates a page
type PageRequest struct {
	Title    string  `json:"title"`
	Icon     string  `json:"icon"`
	ParentID *string `json:"parent_id,omitempty"`
}

// PagePatch updates a page; nil fields are left untouched
type PagePatch struct {
	Title    *string `json:"title,omitempty"`
	Icon     *string `json:"icon,omitempty"`
	ParentID *string `json:"parent_id,omitempty"`
}

// BlockRequest appends or inserts a block; a nil index appends
type BlockRequest struct {
	Type    string `json:"type" binding:"required"`
	Content string `json:"content"`
	Index   *int   `json:"index,omitempty"`
}

// BlockPatch updates a block
type BlockPatch struct {
	Type       *string        `json:"type,omitempty"`
	Content    *string        `json:"content,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// MoveBlockRequest repositions a block within its page
type MoveBlockRequest struct {
	Index int `json:"index"`
}

// QuizRequest asks for a quiz over a page
type QuizRequest struct {
	PageID    string `json:"page_id" binding:"required"`
	Questions int    `json:"questions"`
}

// SummaryRequest asks for a page summary
type SummaryRequest struct {
	PageID string `json:"page_id" binding:"required"`
}

// ChatRequest represents a chat message request
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// SettingsPatch updates settings; nil fields are left untouched
type SettingsPatch struct {
	Theme          *string `json:"theme,omitempty"`
	Language       *string `json:"language,omitempty"`
	FocusMinutes   *int    `json:"focus_minutes,omitempty"`
	BreakMinutes   *int    `json:"break_minutes,omitempty"`
	LockOnStart    *bool   `json:"lock_on_start,omitempty"`
	CompanionPanel *string `json:"companion_panel,omitempty"`
	DefaultPreset  *string `json:"default_preset,omitempty"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type  string `json:"type"`
	Event *Event `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
}
