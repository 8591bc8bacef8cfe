// internal/services/story_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Corphon/StorySpark/internal/errors"
	"github.com/Corphon/StorySpark/internal/llm"
	"github.com/Corphon/StorySpark/internal/utils"
)

// 故事续写相关常量
const (
	NoResponseText  = "No response"
	DetectedCommand = "go left"
)

// StoryService 调用LLM续写互动故事
type StoryService struct {
	provider llm.Provider
	model    string
	timeout  time.Duration
}

// NewStoryService 创建故事服务，provider 可以为 nil（未配置LLM）
func NewStoryService(provider llm.Provider, model string) *StoryService {
	return &StoryService{
		provider: provider,
		model:    model,
		timeout:  60 * time.Second,
	}
}

// Ready 是否配置了LLM提供者
func (s *StoryService) Ready() bool {
	return s.provider != nil
}

// BuildPrompt 拼接当前场景和玩家输入
func BuildPrompt(currentScene, userCommand string) string {
	return fmt.Sprintf("%s\n\nUser says: %s", currentScene, userCommand)
}

// NextScene 根据当前场景和玩家指令生成下一段场景
func (s *StoryService) NextScene(ctx context.Context, currentScene, userCommand string) (string, error) {
	if s.provider == nil {
		return "", apperrors.NewProcessingError("LLM提供者未配置", nil).WithCode("LLM_NOT_CONFIGURED")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	resp, err := s.provider.CompleteText(ctx, llm.CompletionRequest{
		Prompt: BuildPrompt(currentScene, userCommand),
		Model:  s.model,
	})
	utils.GetMetricsCollector().RecordDuration("story.next_ms", started)
	if err != nil {
		utils.GetLogger().Error("故事续写失败", map[string]interface{}{
			"provider": s.provider.GetName(),
			"error":    err,
		})
		if ctx.Err() == context.DeadlineExceeded {
			return "", apperrors.NewTimeoutError("LLM请求超时", err)
		}
		return "", apperrors.NewUpstreamError(s.provider.GetName()+" API call failed", err)
	}

	utils.GetMetricsCollector().IncrementCounter("story.next")
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return NoResponseText, nil
	}
	return resp.Text, nil
}

// DetectCommand 语音指令识别，目前固定返回同一指令
func (s *StoryService) DetectCommand(audioData string) string {
	utils.GetLogger().Debug("识别语音指令", map[string]interface{}{"bytes": len(audioData)})
	return DetectedCommand
}
