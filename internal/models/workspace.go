// internal/models/workspace.go
package models

import "time"

// 创作向导的标签页
const (
	TabScript     = "script"
	TabCharacters = "characters"
	TabSettings   = "settings"
	TabGenerate   = "generate"
)

// WorkspaceState 单个会话的创作向导状态，只保存在内存中
type WorkspaceState struct {
	SessionID       string      `json:"session_id"`
	Story           string      `json:"story"`
	Characters      []Character `json:"characters"`
	Analyzing       bool        `json:"analyzing"`
	Generating      bool        `json:"generating"`
	Progress        int         `json:"progress"`
	AudioGenerated  bool        `json:"audio_generated"`
	Playing         bool        `json:"playing"`
	BackgroundMusic string      `json:"background_music"`
	ActiveTab       string      `json:"active_tab"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Clone 深拷贝状态，避免调用方修改共享切片
func (s WorkspaceState) Clone() WorkspaceState {
	out := s
	if s.Characters != nil {
		out.Characters = make([]Character, len(s.Characters))
		copy(out.Characters, s.Characters)
	}
	return out
}

// AllVoicesAssigned 是否每个角色都分配了语音（空列表视为满足）
func (s WorkspaceState) AllVoicesAssigned() bool {
	for _, c := range s.Characters {
		if !c.HasVoice() {
			return false
		}
	}
	return true
}
