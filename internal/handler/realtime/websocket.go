package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	chatService "github.com/zhouzirui/chat-popup/backend/internal/service/chat"
	widgetService "github.com/zhouzirui/chat-popup/backend/internal/service/widget"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
	feedSize     = 32
)

// WebSocketHandler WebSocket弹窗处理器：接收界面事件，推送状态快照
type WebSocketHandler struct {
	chatSvc  *chatService.Service
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(chatSvc *chatService.Service) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/widgets/{sessionID}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DraftMessage 草稿更新
type DraftMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// conn 串行化写操作，gorilla 只允许一个并发写者
type conn struct {
	ws        *websocket.Conn
	sessionID string
	mu        sync.Mutex
}

func (c *conn) send(msgType string, data interface{}) error {
	msg := outgoingMessage{
		Type:      msgType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(msg)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (c *conn) closeUnmounted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "widget unmounted"),
		time.Now().Add(writeTimeout))
}

func (c *conn) sendError(message string) {
	if err := c.send("error", map[string]string{"message": message}); err != nil {
		log.Warn().Err(err).Str("component", "websocket").Str("session_id", c.sessionID).Msg("write error failed")
	}
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	widget, err := h.chatSvc.Widget(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	release, err := h.chatSvc.Attach(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	defer release()

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "websocket").Msg("upgrade failed")
		return
	}
	defer ws.Close()

	c := &conn{ws: ws, sessionID: sessionID}
	log.Info().Str("component", "websocket").Str("session_id", sessionID).Msg("connection opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	feed := widgetService.NewFeed(widget, feedSize)
	defer feed.Close()

	// 订阅前弹窗已被卸载时不会再收到 EventClosed
	if widget.Closed() {
		_ = c.send("state", widgetService.Event{Kind: widgetService.EventClosed, State: widget.Snapshot()})
		c.closeUnmounted()
		return
	}

	p := widget.Persona()
	if err := c.send("connected", map[string]any{
		"persona":  p.ID,
		"name":     p.Name,
		"subtitle": p.Subtitle,
		"state":    widget.Snapshot(),
	}); err != nil {
		return
	}

	go h.pingLoop(ctx, c)
	go h.pushLoop(ctx, cancel, c, feed)

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("component", "websocket").Str("session_id", sessionID).Msg("read error")
			}
			break
		}
		ws.SetReadDeadline(time.Now().Add(readTimeout))

		if ctx.Err() != nil {
			break
		}
		h.handleMessage(c, widget, &msg)
	}

	log.Info().Str("component", "websocket").Str("session_id", sessionID).Msg("connection closed")
}

func (h *WebSocketHandler) handleMessage(c *conn, widget *widgetService.Widget, msg *inboundMessage) {
	switch msg.Type {
	case "toggle":
		widget.TogglePopup()
	case "draft":
		var draft DraftMessage
		if err := json.Unmarshal(msg.Data, &draft); err != nil {
			c.sendError("invalid draft payload")
			return
		}
		widget.SetDraft(draft.Text)
	case "send":
		widget.SendMessage()
	case "key":
		var key widgetService.KeyEvent
		if err := json.Unmarshal(msg.Data, &key); err != nil {
			c.sendError("invalid key payload")
			return
		}
		result := widget.HandleKey(key)
		if err := c.send("key", result); err != nil {
			log.Warn().Err(err).Str("component", "websocket").Str("session_id", c.sessionID).Msg("write key result failed")
		}
	default:
		c.sendError("unsupported message type: " + msg.Type)
	}
}

// pushLoop 转发弹窗事件，弹窗卸载后关闭连接
func (h *WebSocketHandler) pushLoop(ctx context.Context, cancel context.CancelFunc, c *conn, feed *widgetService.Feed) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-feed.Events():
			if err := c.send("state", ev); err != nil {
				log.Warn().Err(err).Str("component", "websocket").Str("session_id", c.sessionID).Msg("write state failed")
				return
			}
			if ev.Kind == widgetService.EventClosed {
				c.closeUnmounted()
				return
			}
		}
	}
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
