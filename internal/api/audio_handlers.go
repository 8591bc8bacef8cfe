// internal/api/audio_handlers.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/StorySpark/internal/services"
)

// AnalyzeScript 识别剧本中的说话人
func (h *Handler) AnalyzeScript(c *gin.Context) {
	var req struct {
		Script  string                 `json:"script"`
		Options map[string]interface{} `json:"options"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	job, err := h.Analyzer.AnalyzeScript(req.Script)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}
	h.Response.Success(c, job)
}

// GetAnalysisStatus 查询分析任务
func (h *Handler) GetAnalysisStatus(c *gin.Context) {
	job, err := h.Analyzer.GetJob(c.Param("job_id"))
	if err != nil {
		h.Response.AppError(c, err)
		return
	}
	h.Response.Success(c, job)
}

// ListVoices 当前语音提供者的语音列表
func (h *Handler) ListVoices(c *gin.Context) {
	voices, err := h.Voices.ListVoices(c.Request.Context())
	if err != nil {
		h.Response.AppError(c, err)
		return
	}
	h.Response.Success(c, voices)
}

// PreviewVoice 合成一段试听音频
func (h *Handler) PreviewVoice(c *gin.Context) {
	res, err := h.Voices.PreviewVoice(c.Request.Context(), c.Param("voice_id"))
	if err != nil {
		h.Response.AppError(c, err)
		return
	}
	h.Response.Success(c, map[string]interface{}{
		"voice_id":    c.Param("voice_id"),
		"preview_url": res.AudioURL,
		"provider":    res.ProviderName,
	})
}

// GenerateAudio 创建异步音频任务
func (h *Handler) GenerateAudio(c *gin.Context) {
	var req services.AudioGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	job, err := h.Audio.GenerateAudio(req)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Accepted(c, map[string]interface{}{
		"jobId":        job.JobID,
		"status":       job.Status,
		"segments":     len(job.Segments),
		"progress_url": "/api/progress/" + job.JobID,
	}, "音频任务已创建")
}

// GetAudioStatus 查询音频任务
func (h *Handler) GetAudioStatus(c *gin.Context) {
	job, err := h.Audio.GetJob(c.Param("job_id"))
	if err != nil {
		h.Response.AppError(c, err)
		return
	}
	h.Response.Success(c, job)
}

// DownloadAudio 已完成任务的音频地址
func (h *Handler) DownloadAudio(c *gin.Context) {
	url, err := h.Audio.DownloadURL(c.Param("job_id"))
	if err != nil {
		h.Response.AppError(c, err)
		return
	}
	h.Response.Success(c, map[string]interface{}{"downloadUrl": url})
}

// ListMusic 背景音乐选项
func (h *Handler) ListMusic(c *gin.Context) {
	h.Response.Success(c, h.Audio.ListMusic())
}

// ApplyMusic 为音频任务设置背景音乐
func (h *Handler) ApplyMusic(c *gin.Context) {
	var req struct {
		JobID string `json:"jobId" binding:"required"`
		Mood  string `json:"mood" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	job, err := h.Audio.ApplyMusic(req.JobID, req.Mood)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}
	h.Response.Success(c, job)
}

// SubscribeProgress 以 SSE 推送任务进度
func (h *Handler) SubscribeProgress(c *gin.Context) {
	taskID := c.Param("task_id")

	tracker, exists := h.Progress.GetTracker(taskID)
	if !exists {
		h.Response.Error(c, http.StatusNotFound, ErrorTaskNotFound, "任务不存在")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()

	updateChan := tracker.Subscribe()
	defer tracker.Unsubscribe(updateChan)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"task_id\":%q}\n\n", taskID)
	c.Writer.Flush()

	for {
		select {
		case <-clientGone:
			return
		case update, ok := <-updateChan:
			if !ok {
				return
			}
			data, _ := json.Marshal(update)
			fmt.Fprintf(c.Writer, "event: progress\ndata: %s\n\n", data)
			c.Writer.Flush()

			if update.Status == services.ProgressCompleted || update.Status == services.ProgressFailed {
				return
			}
		case <-ticker.C:
			fmt.Fprintf(c.Writer, "event: heartbeat\ndata: {\"time\":%q}\n\n", time.Now().Format(time.RFC3339))
			c.Writer.Flush()
		}
	}
}

var errUploadTooLarge = errors.New("upload exceeds size limit")

// readTextUpload 读取 multipart 中的 file 字段
func readTextUpload(c *gin.Context) (*multipart.FileHeader, []byte, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, nil, err
	}
	file, err := fileHeader.Open()
	if err != nil {
		return fileHeader, nil, err
	}
	defer file.Close()

	// 多读一个字节用于发现超限文件
	data, err := io.ReadAll(io.LimitReader(file, maxImportSize+1))
	if err != nil {
		return fileHeader, nil, err
	}
	if len(data) > maxImportSize {
		return fileHeader, nil, errUploadTooLarge
	}
	return fileHeader, data, nil
}

// respondUploadError 超限返回 413，其余为读取失败
func (h *Handler) respondUploadError(c *gin.Context, err error) {
	if errors.Is(err, errUploadTooLarge) {
		h.Response.Error(c, http.StatusRequestEntityTooLarge, ErrorFileInvalid, "文件过大")
		return
	}
	h.Response.Error(c, http.StatusInternalServerError, ErrorFileUploadFailed, "读取上传文件失败", err.Error())
}

// UploadFile 仅接受 .txt 文件，返回原始内容
func (h *Handler) UploadFile(c *gin.Context) {
	fileHeader, data, err := readTextUpload(c)
	if fileHeader == nil {
		h.Response.BadRequest(c, "未找到上传的文件", err.Error())
		return
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".txt") {
		h.Response.Error(c, http.StatusBadRequest, ErrorFileInvalid, "Only .txt files are supported")
		return
	}
	if err != nil {
		h.respondUploadError(c, err)
		return
	}

	h.Response.Success(c, map[string]interface{}{
		"filename": fileHeader.Filename,
		"size":     len(data),
		"content":  string(data),
	}, fmt.Sprintf("File '%s' uploaded successfully.", fileHeader.Filename))
}

// ValidateFile 校验上传文件是否为 "说话人: 台词" 格式
func (h *Handler) ValidateFile(c *gin.Context) {
	fileHeader, data, err := readTextUpload(c)
	if fileHeader == nil {
		h.Response.BadRequest(c, "未找到上传的文件", err.Error())
		return
	}
	if err != nil {
		h.respondUploadError(c, err)
		return
	}

	if err := services.ValidateScriptContent(string(data)); err != nil {
		h.Response.AppError(c, err)
		return
	}
	h.Response.Success(c, map[string]interface{}{
		"filename":   fileHeader.Filename,
		"characters": services.DetectSpeakers(string(data)),
	}, "Script format is valid.")
}
