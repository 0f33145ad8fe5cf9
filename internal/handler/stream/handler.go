package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	chatService "github.com/zhouzirui/chat-popup/backend/internal/service/chat"
	widgetService "github.com/zhouzirui/chat-popup/backend/internal/service/widget"
	"github.com/zhouzirui/chat-popup/backend/pkg/utils"
)

const (
	heartbeatInterval = 15 * time.Second
	feedSize          = 32
)

// Handler 通过 Server-Sent Events 推送弹窗状态
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建 SSE 处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册 SSE 路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/widgets/{sessionID}/events", h.handleEvents)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	widget, err := h.chatSvc.Widget(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	release, err := h.chatSvc.Attach(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	defer release()

	feed := widgetService.NewFeed(widget, feedSize)
	defer feed.Close()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	log.Debug().Str("component", "sse").Str("session_id", sessionID).Msg("stream opened")
	if err := h.stream(r.Context(), w, flusher, widget, feed, heartbeatInterval); err != nil {
		log.Debug().Err(err).Str("component", "sse").Str("session_id", sessionID).Msg("stream write failed")
	}
	log.Debug().Str("component", "sse").Str("session_id", sessionID).Msg("stream closed")
}

// stream 先写出当前快照，再逐条转发事件，直到客户端断开或弹窗被卸载
func (h *Handler) stream(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, widget *widgetService.Widget, feed *widgetService.Feed, heartbeat time.Duration) error {
	if err := utils.SendSSEEvent(w, flusher, "state", widgetService.Event{Kind: widgetService.EventSnapshot, State: widget.Snapshot(), ScrollToLatest: true}); err != nil {
		return err
	}
	if widget.Closed() {
		return utils.SendSSEEvent(w, flusher, string(widgetService.EventClosed), map[string]string{"reason": "unmounted"})
	}

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return err
			}
		case ev := <-feed.Events():
			if ev.Kind == widgetService.EventClosed {
				return utils.SendSSEEvent(w, flusher, string(widgetService.EventClosed), map[string]string{"reason": "unmounted"})
			}
			if err := utils.SendSSEEvent(w, flusher, "state", ev); err != nil {
				return err
			}
		}
	}
}
