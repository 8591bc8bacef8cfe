// internal/models/character.go
package models

// Character 表示剧本中的一个角色及其配音设置
type Character struct {
	Name          string `json:"name"`
	Voice         string `json:"voice"`          // 已分配的语音ID，空字符串表示未分配
	DialogueCount int    `json:"dialogue_count"` // 台词行数
	Color         string `json:"color"`          // 展示用的渐变色标记
}

// HasVoice 角色是否已分配语音
func (c Character) HasVoice() bool {
	return c.Voice != ""
}

// DetectedCharacter 脚本分析识别出的说话人
type DetectedCharacter struct {
	Name            string `json:"name"`
	DialogueCount   int    `json:"dialogueCount"`
	EstimatedGender string `json:"estimatedGender"`
}
