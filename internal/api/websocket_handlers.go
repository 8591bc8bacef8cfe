// internal/api/websocket_handlers.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	apperrors "github.com/Corphon/StorySpark/internal/errors"
	"github.com/Corphon/StorySpark/internal/models"
	"github.com/Corphon/StorySpark/internal/services"
	"github.com/Corphon/StorySpark/internal/utils"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 54 * time.Second
)

// WorkspaceMessage 客户端发来的消息
type WorkspaceMessage struct {
	Type   string `json:"type"`             // ping | action
	Action string `json:"action,omitempty"` // 向导操作名称
	Name   string `json:"name,omitempty"`
	Voice  string `json:"voice,omitempty"`
	Story  string `json:"story,omitempty"`
	Mood   string `json:"mood,omitempty"`
	Tab    string `json:"tab,omitempty"`
}

// WebSocketHandler 处理 WebSocket 相关的 HTTP 请求
type WebSocketHandler struct {
	manager *WebSocketManager
	wizard  *services.WizardService
}

// NewWebSocketHandler 创建 WebSocket 处理器
func NewWebSocketHandler(manager *WebSocketManager, wizard *services.WizardService) *WebSocketHandler {
	return &WebSocketHandler{manager: manager, wizard: wizard}
}

// WorkspaceWebSocket 推送当前会话工作区的状态变化，并接受向导操作
func (wh *WebSocketHandler) WorkspaceWebSocket(c *gin.Context) {
	sessionID := SessionID(c)
	if sessionID == "" {
		http.Error(c.Writer, "会话ID缺失", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.GetLogger().Warn("❌ 工作区 WebSocket 升级失败", map[string]interface{}{"error": err})
		return
	}

	user, _ := GetUserFromContext(c)
	client := NewWebSocketClient(conn, sessionID, user.ID)
	workspace := wh.wizard.Workspace(sessionID)

	wh.manager.Register(client)
	defer wh.manager.Unregister(client)

	updates, unsubscribe := workspace.Subscribe()
	defer unsubscribe()

	go wh.handleWebSocketWrites(client)
	go wh.forwardState(client, updates)

	wh.handleWebSocketReads(client, workspace)
}

// forwardState 把工作区快照转发给客户端
func (wh *WebSocketHandler) forwardState(client *WebSocketClient, updates <-chan models.WorkspaceState) {
	for {
		select {
		case state, ok := <-updates:
			if !ok {
				client.Close()
				return
			}
			_ = client.SendLatest(map[string]interface{}{
				"type":      "state",
				"data":      state,
				"timestamp": time.Now().Format(time.RFC3339),
			})
		case <-client.done:
			return
		}
	}
}

// handleWebSocketReads 读取客户端消息直到连接断开
func (wh *WebSocketHandler) handleWebSocketReads(client *WebSocketClient, workspace *services.Workspace) {
	defer client.Close()

	client.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		return client.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		_, messageBytes, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.GetLogger().Warn("❌ WebSocket 读取错误", map[string]interface{}{"error": err})
			}
			return
		}
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var message WorkspaceMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			client.SendError(ErrorBadRequest, "无效的消息格式")
			continue
		}
		wh.handleMessage(client, workspace, message)
	}
}

// handleWebSocketWrites 串行写出发送队列并定期发送 ping
func (wh *WebSocketHandler) handleWebSocketWrites(client *WebSocketClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		client.Close()
	}()

	for {
		select {
		case message := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case message := <-client.latest:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-client.done:
			return
		}
	}
}

// handleMessage 分发客户端消息；状态变化通过订阅推送，这里只回复错误
func (wh *WebSocketHandler) handleMessage(client *WebSocketClient, workspace *services.Workspace, message WorkspaceMessage) {
	switch message.Type {
	case "ping":
		_ = client.SendMessage(map[string]interface{}{
			"type":      "pong",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	case "action":
		if _, err := applyWorkspaceAction(workspace, message); err != nil {
			code := ErrorBadRequest
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				code = appErr.Code
			}
			client.SendError(code, err.Error())
		}
	default:
		client.SendError(ErrorBadRequest, "未知的消息类型: "+message.Type)
	}
}

// applyWorkspaceAction 执行一个向导操作
func applyWorkspaceAction(ws *services.Workspace, message WorkspaceMessage) (models.WorkspaceState, error) {
	switch message.Action {
	case "set_story":
		return ws.SetStory(message.Story)
	case "load_sample":
		return ws.LoadSample()
	case "analyze":
		return ws.Analyze()
	case "assign_voice":
		return ws.AssignVoice(message.Name, message.Voice)
	case "generate":
		return ws.Generate()
	case "toggle_playback":
		return ws.TogglePlayback()
	case "set_music":
		return ws.SetBackgroundMusic(message.Mood)
	case "set_tab":
		return ws.SetActiveTab(message.Tab)
	case "reset":
		return ws.Reset()
	default:
		return ws.Snapshot(), apperrors.NewValidationError("未知的操作: "+message.Action, nil)
	}
}
