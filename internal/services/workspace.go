// internal/services/workspace.go
package services

import (
	"context"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/Corphon/StorySpark/internal/errors"
	"github.com/Corphon/StorySpark/internal/models"
)

// WorkspaceOptions 模拟分析和生成的计时参数
type WorkspaceOptions struct {
	AnalysisDelay    time.Duration
	ProgressStep     int
	ProgressInterval time.Duration
}

// DefaultWorkspaceOptions 与创作页的计时保持一致
func DefaultWorkspaceOptions() WorkspaceOptions {
	return WorkspaceOptions{
		AnalysisDelay:    2500 * time.Millisecond,
		ProgressStep:     8,
		ProgressInterval: 200 * time.Millisecond,
	}
}

// Workspace 一个会话的创作向导状态，所有修改在 mu 下串行执行
type Workspace struct {
	mu    sync.Mutex
	state models.WorkspaceState
	opts  WorkspaceOptions

	// 计时器绑定在 ctx 上，Reset 和 Close 会取消它
	ctx            context.Context
	cancel         context.CancelFunc
	stopGeneration context.CancelFunc
	wg             sync.WaitGroup

	subscribers map[chan models.WorkspaceState]struct{}
	lastAccess  atomic.Int64
	closed      bool
}

// NewWorkspace 创建初始状态的工作区
func NewWorkspace(sessionID string, opts WorkspaceOptions) *Workspace {
	defaults := DefaultWorkspaceOptions()
	if opts.AnalysisDelay <= 0 {
		opts.AnalysisDelay = defaults.AnalysisDelay
	}
	if opts.ProgressStep <= 0 {
		opts.ProgressStep = defaults.ProgressStep
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = defaults.ProgressInterval
	}

	w := &Workspace{
		state:       initialState(sessionID),
		opts:        opts,
		subscribers: make(map[chan models.WorkspaceState]struct{}),
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.touch()
	return w
}

func initialState(sessionID string) models.WorkspaceState {
	return models.WorkspaceState{
		SessionID:  sessionID,
		Characters: []models.Character{},
		ActiveTab:  models.TabScript,
		UpdatedAt:  time.Now(),
	}
}

func (w *Workspace) touch() {
	w.lastAccess.Store(time.Now().UnixNano())
}

// LastAccess 最后一次访问时间
func (w *Workspace) LastAccess() time.Time {
	return time.Unix(0, w.lastAccess.Load())
}

// Snapshot 返回当前状态的副本
func (w *Workspace) Snapshot() models.WorkspaceState {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	return w.state.Clone()
}

// mutate 在锁内修改状态并通知订阅者
func (w *Workspace) mutate(fn func(s *models.WorkspaceState) error) (models.WorkspaceState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()

	if w.closed {
		return w.state.Clone(), apperrors.NewConflictError("工作区已关闭", nil)
	}
	if err := fn(&w.state); err != nil {
		return w.state.Clone(), err
	}
	w.commitLocked()
	return w.state.Clone(), nil
}

func (w *Workspace) commitLocked() {
	w.state.UpdatedAt = time.Now()
	snapshot := w.state.Clone()
	for ch := range w.subscribers {
		offerLatest(ch, snapshot)
	}
}

// offerLatest 订阅通道只有一个槽位，未读的旧快照被替换为最新的
func offerLatest(ch chan models.WorkspaceState, snapshot models.WorkspaceState) {
	for {
		select {
		case ch <- snapshot:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// SetStory 替换剧本文本
func (w *Workspace) SetStory(story string) (models.WorkspaceState, error) {
	return w.mutate(func(s *models.WorkspaceState) error {
		s.Story = story
		return nil
	})
}

// LoadSample 载入示例剧本并回到剧本页
func (w *Workspace) LoadSample() (models.WorkspaceState, error) {
	return w.mutate(func(s *models.WorkspaceState) error {
		s.Story = SampleStory
		s.ActiveTab = models.TabScript
		return nil
	})
}

// ImportFile 导入纯文本文件，内容原样替换剧本
func (w *Workspace) ImportFile(filename, contentType string, data []byte) (models.WorkspaceState, error) {
	if !isPlainText(filename, contentType) {
		return w.Snapshot(), apperrors.NewValidationError("只支持纯文本文件", nil)
	}
	return w.mutate(func(s *models.WorkspaceState) error {
		s.Story = string(data)
		return nil
	})
}

func isPlainText(filename, contentType string) bool {
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil && mediaType != "application/octet-stream" {
			return mediaType == "text/plain"
		}
	}
	return strings.EqualFold(filepath.Ext(filename), ".txt")
}

// Analyze 模拟剧本分析：空白文本不做任何事，否则延迟后填入固定角色
func (w *Workspace) Analyze() (models.WorkspaceState, error) {
	var ctx context.Context
	state, err := w.mutate(func(s *models.WorkspaceState) error {
		if strings.TrimSpace(s.Story) == "" {
			return nil
		}
		s.Analyzing = true
		s.ActiveTab = models.TabCharacters
		ctx = w.ctx
		w.wg.Add(1)
		return nil
	})
	if err != nil || ctx == nil {
		return state, err
	}

	go w.runAnalysis(ctx)
	return state, nil
}

func (w *Workspace) runAnalysis(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(w.opts.AnalysisDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	// Reset 可能在计时器触发和拿到锁之间发生
	if ctx.Err() != nil {
		return
	}
	w.state.Characters = DetectedCharacters()
	w.state.Analyzing = false
	w.commitLocked()
}

// AssignVoice 按角色名设置语音，未知角色不做修改
func (w *Workspace) AssignVoice(name, voice string) (models.WorkspaceState, error) {
	return w.mutate(func(s *models.WorkspaceState) error {
		for i := range s.Characters {
			if s.Characters[i].Name == name {
				s.Characters[i].Voice = voice
			}
		}
		return nil
	})
}

// Generate 模拟音频生成：所有角色都有语音时按固定步长推进进度
func (w *Workspace) Generate() (models.WorkspaceState, error) {
	var genCtx context.Context
	state, err := w.mutate(func(s *models.WorkspaceState) error {
		if !s.AllVoicesAssigned() {
			return apperrors.NewValidationError(VoicesRequiredMessage, nil).WithCode("VOICES_REQUIRED")
		}
		s.Generating = true
		s.Progress = 0
		s.AudioGenerated = false
		s.ActiveTab = models.TabGenerate

		// 重复点击时只保留最新的进度计时器
		if w.stopGeneration != nil {
			w.stopGeneration()
		}
		genCtx, w.stopGeneration = context.WithCancel(w.ctx)
		w.wg.Add(1)
		return nil
	})
	if err != nil {
		return state, err
	}

	go w.runGeneration(genCtx)
	return state, nil
}

func (w *Workspace) runGeneration(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.opts.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if w.advance(ctx) {
			return
		}
	}
}

// advance 推进一步，返回是否已结束
func (w *Workspace) advance(ctx context.Context) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ctx.Err() != nil {
		return true
	}

	next := w.state.Progress + w.opts.ProgressStep
	if next >= 100 {
		w.state.Progress = 100
		w.state.Generating = false
		w.state.AudioGenerated = true
		w.commitLocked()
		return true
	}
	w.state.Progress = next
	w.commitLocked()
	return false
}

// TogglePlayback 切换播放状态
func (w *Workspace) TogglePlayback() (models.WorkspaceState, error) {
	return w.mutate(func(s *models.WorkspaceState) error {
		s.Playing = !s.Playing
		return nil
	})
}

// SetBackgroundMusic 设置背景音乐，空字符串表示不使用
func (w *Workspace) SetBackgroundMusic(mood string) (models.WorkspaceState, error) {
	return w.mutate(func(s *models.WorkspaceState) error {
		if mood != "" && !KnownMood(mood) {
			return apperrors.NewValidationError("未知的音乐情绪: "+mood, nil)
		}
		s.BackgroundMusic = mood
		return nil
	})
}

// SetActiveTab 切换标签页，没有角色时只能停留在剧本页
func (w *Workspace) SetActiveTab(tab string) (models.WorkspaceState, error) {
	return w.mutate(func(s *models.WorkspaceState) error {
		switch tab {
		case models.TabScript:
		case models.TabCharacters, models.TabSettings, models.TabGenerate:
			if len(s.Characters) == 0 {
				return apperrors.NewValidationError("请先分析剧本", nil).WithCode("TAB_UNAVAILABLE")
			}
		default:
			return apperrors.NewValidationError("未知的标签页: "+tab, nil)
		}
		s.ActiveTab = tab
		return nil
	})
}

// Reset 恢复初始状态并放弃所有进行中的计时器
func (w *Workspace) Reset() (models.WorkspaceState, error) {
	return w.mutate(func(s *models.WorkspaceState) error {
		w.cancel()
		w.ctx, w.cancel = context.WithCancel(context.Background())
		w.stopGeneration = nil
		*s = initialState(s.SessionID)
		return nil
	})
}

// Subscribe 订阅状态变更，订阅时立即收到当前状态；读取慢时只保留最新状态。返回的函数用于取消订阅
func (w *Workspace) Subscribe() (<-chan models.WorkspaceState, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()

	ch := make(chan models.WorkspaceState, 1)
	ch <- w.state.Clone()
	if w.closed {
		close(ch)
		return ch, func() {}
	}
	w.subscribers[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if _, ok := w.subscribers[ch]; ok {
				delete(w.subscribers, ch)
				close(ch)
			}
		})
	}
}

// SubscriberCount 当前订阅者数量
func (w *Workspace) SubscriberCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subscribers)
}

// Close 取消计时器、等待其退出并关闭所有订阅通道
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.cancel()
	for ch := range w.subscribers {
		delete(w.subscribers, ch)
		close(ch)
	}
	w.mu.Unlock()

	w.wg.Wait()
}
