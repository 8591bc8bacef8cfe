// internal/services/wizard_service.go
package services

import (
	"sync"
	"time"

	"github.com/Corphon/StorySpark/internal/utils"
)

// WizardService 按会话管理创作向导工作区，闲置超时的工作区会被回收
type WizardService struct {
	mu         sync.Mutex
	workspaces map[string]*Workspace
	opts       WorkspaceOptions
	ttl        time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWizardService 创建向导服务，ttl<=0 时不回收
func NewWizardService(opts WorkspaceOptions, ttl time.Duration) *WizardService {
	s := &WizardService{
		workspaces: make(map[string]*Workspace),
		opts:       opts,
		ttl:        ttl,
		stop:       make(chan struct{}),
	}

	if ttl > 0 {
		interval := ttl / 4
		if interval < time.Second {
			interval = time.Second
		}
		s.wg.Add(1)
		go s.evictLoop(interval)
	}
	return s
}

// Workspace 获取会话的工作区，不存在时创建
func (s *WizardService) Workspace(sessionID string) *Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ws, ok := s.workspaces[sessionID]; ok {
		ws.touch()
		return ws
	}

	ws := NewWorkspace(sessionID, s.opts)
	s.workspaces[sessionID] = ws
	utils.GetMetricsCollector().IncrementCounter("wizard.workspaces_created")
	utils.GetMetricsCollector().SetGauge("wizard.workspaces_active", int64(len(s.workspaces)))
	utils.GetLogger().Debug("创建工作区", map[string]interface{}{"session_id": sessionID})
	return ws
}

// Lookup 获取已存在的工作区
func (s *WizardService) Lookup(sessionID string) (*Workspace, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[sessionID]
	return ws, ok
}

// Count 活跃工作区数量
func (s *WizardService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workspaces)
}

// Discard 关闭并移除会话的工作区
func (s *WizardService) Discard(sessionID string) {
	s.mu.Lock()
	ws, ok := s.workspaces[sessionID]
	if ok {
		delete(s.workspaces, sessionID)
		utils.GetMetricsCollector().SetGauge("wizard.workspaces_active", int64(len(s.workspaces)))
	}
	s.mu.Unlock()

	if ok {
		ws.Close()
	}
}

// EvictIdle 回收闲置超过 ttl 且没有订阅者的工作区
func (s *WizardService) EvictIdle(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	var idle []*Workspace
	for id, ws := range s.workspaces {
		if ws.LastAccess().Before(cutoff) && ws.SubscriberCount() == 0 {
			idle = append(idle, ws)
			delete(s.workspaces, id)
		}
	}
	utils.GetMetricsCollector().SetGauge("wizard.workspaces_active", int64(len(s.workspaces)))
	s.mu.Unlock()

	for _, ws := range idle {
		ws.Close()
	}
	if len(idle) > 0 {
		utils.GetLogger().Info("回收闲置工作区", map[string]interface{}{"count": len(idle)})
	}
	return len(idle)
}

func (s *WizardService) evictLoop(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.EvictIdle(s.ttl)
		case <-s.stop:
			return
		}
	}
}

// Close 停止回收并关闭所有工作区
func (s *WizardService) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()

	s.mu.Lock()
	all := make([]*Workspace, 0, len(s.workspaces))
	for id, ws := range s.workspaces {
		all = append(all, ws)
		delete(s.workspaces, id)
	}
	s.mu.Unlock()

	for _, ws := range all {
		ws.Close()
	}
}
