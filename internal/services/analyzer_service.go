// internal/services/analyzer_service.go
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/StorySpark/internal/errors"
	"github.com/Corphon/StorySpark/internal/models"
	"github.com/Corphon/StorySpark/internal/storage"
	"github.com/Corphon/StorySpark/internal/utils"
)

// AnalyzerService 识别剧本中的说话人并保存分析任务
type AnalyzerService struct {
	storage         *storage.FileStorage
	maxScriptLength int
}

// NewAnalyzerService 创建分析服务
func NewAnalyzerService(fs *storage.FileStorage, maxScriptLength int) *AnalyzerService {
	return &AnalyzerService{
		storage:         fs,
		maxScriptLength: maxScriptLength,
	}
}

// ValidateScriptLength 校验剧本长度（按字符计）
func ValidateScriptLength(script string, max int) error {
	if max > 0 && utf8.RuneCountInString(script) > max {
		return apperrors.NewValidationError(
			fmt.Sprintf("Script too long. Max allowed is %d characters.", max), nil,
		).WithCode("SCRIPT_TOO_LONG")
	}
	return nil
}

// ValidateScriptContent 剧本至少要有一行 "说话人: 台词"
func ValidateScriptContent(script string) error {
	if strings.TrimSpace(script) == "" || !strings.Contains(script, ":") {
		return apperrors.NewValidationError("Invalid script format", nil).WithCode("SCRIPT_INVALID")
	}
	return nil
}

// DetectSpeakers 每行第一个冒号前的文本视为说话人，按首次出现顺序统计台词行数
func DetectSpeakers(script string) []models.DetectedCharacter {
	characters := []models.DetectedCharacter{}
	index := make(map[string]int)

	for _, line := range strings.Split(strings.TrimSpace(script), "\n") {
		name, _, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if i, ok := index[name]; ok {
			characters[i].DialogueCount++
			continue
		}
		index[name] = len(characters)
		characters = append(characters, models.DetectedCharacter{
			Name:            name,
			DialogueCount:   1,
			EstimatedGender: "unknown",
		})
	}
	return characters
}

// AnalyzeScript 分析剧本并保存为任务
func (s *AnalyzerService) AnalyzeScript(script string) (*models.AnalysisJob, error) {
	if err := ValidateScriptLength(script, s.maxScriptLength); err != nil {
		return nil, err
	}
	started := time.Now()

	job := &models.AnalysisJob{
		JobID:      "analysis_" + uuid.NewString(),
		Characters: DetectSpeakers(script),
		CreatedAt:  time.Now(),
	}
	if err := s.storage.SaveDocument(storage.CollectionAnalysisJobs, job.JobID, job); err != nil {
		return nil, apperrors.NewProcessingError("保存分析任务失败", err)
	}

	utils.GetMetricsCollector().IncrementCounter("analyzer.jobs")
	utils.GetMetricsCollector().RecordDuration("analyzer.duration_ms", started)
	utils.GetLogger().Info("剧本分析完成", map[string]interface{}{
		"job_id":     job.JobID,
		"characters": len(job.Characters),
	})
	return job, nil
}

// GetJob 读取分析任务
func (s *AnalyzerService) GetJob(jobID string) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	if err := s.storage.LoadDocument(storage.CollectionAnalysisJobs, jobID, &job); err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			return nil, apperrors.NewNotFoundError("Job not found", err)
		}
		return nil, apperrors.NewProcessingError("读取分析任务失败", err)
	}
	return &job, nil
}
