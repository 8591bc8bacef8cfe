// internal/services/fixtures.go
package services

import "github.com/Corphon/StorySpark/internal/models"

// CharacterColors 角色卡片的渐变色，按检测顺序分配
var CharacterColors = []string{
	"from-blue-500 to-cyan-500",
	"from-purple-500 to-pink-500",
	"from-green-500 to-emerald-500",
	"from-orange-500 to-red-500",
	"from-yellow-500 to-orange-500",
	"from-indigo-500 to-purple-500",
}

// MusicOptions 背景音乐情绪
var MusicOptions = []models.MusicOption{
	{Value: "dramatic", Label: "Dramatic"},
	{Value: "mystery", Label: "Mystery"},
	{Value: "adventure", Label: "Adventure"},
	{Value: "romance", Label: "Romance"},
	{Value: "peaceful", Label: "Peaceful"},
}

// VoicesRequiredMessage 有角色未分配语音时生成被拦截的提示
const VoicesRequiredMessage = "Please assign voices to all characters before generating audio."

// SampleStory 示例剧本
const SampleStory = `Chapter 1: The Discovery

SARAH: (excited) I can't believe we actually found it! The ancient temple, just like the map described.

MARCUS: (cautious) Sarah, we need to be careful. These ruins have been untouched for centuries. Who knows what dangers lurk inside?

SARAH: Come on, Marcus! Where's your sense of adventure? This could be the archaeological discovery of the century!

NARRATOR: As Sarah stepped forward, her torch illuminated intricate carvings on the temple walls. The air grew thick with mystery and anticipation.

MARCUS: (sighing) Alright, but we stick together. And at the first sign of trouble, we're out of here.

SARAH: (laughing) Deal! But first, let's see what secrets this place holds.

NARRATOR: The ancient stones seemed to whisper stories of forgotten civilizations as the two explorers ventured deeper into the mysterious temple.`

// DetectedCharacters 模拟分析的固定结果，与输入内容无关
func DetectedCharacters() []models.Character {
	return []models.Character{
		{Name: "SARAH", DialogueCount: 3, Color: CharacterColors[0]},
		{Name: "MARCUS", DialogueCount: 2, Color: CharacterColors[1]},
		{Name: "NARRATOR", DialogueCount: 2, Color: CharacterColors[2]},
	}
}

// KnownMood 是否为支持的音乐情绪
func KnownMood(mood string) bool {
	for _, opt := range MusicOptions {
		if opt.Value == mood {
			return true
		}
	}
	return false
}
