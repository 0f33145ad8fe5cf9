package widget

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-popup/backend/internal/model/chat"
	chatService "github.com/zhouzirui/chat-popup/backend/internal/service/chat"
	widgetService "github.com/zhouzirui/chat-popup/backend/internal/service/widget"
	"github.com/zhouzirui/chat-popup/backend/pkg/utils"
)

// Handler 聊天弹窗的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建弹窗处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

type mountResponse struct {
	Session chat.Session `json:"session"`
	State   chat.State   `json:"state"`
}

type sendResponse struct {
	Sent  bool       `json:"sent"`
	State chat.State `json:"state"`
}

type keyResponse struct {
	widgetService.KeyResult
	State chat.State `json:"state"`
}

// RegisterRoutes 注册弹窗相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/widgets", h.handleMount)
	r.Get("/widgets/{sessionID}", h.handleSnapshot)
	r.Delete("/widgets/{sessionID}", h.handleUnmount)
	r.Post("/widgets/{sessionID}/toggle", h.handleToggle)
	r.Put("/widgets/{sessionID}/draft", h.handleDraft)
	r.Post("/widgets/{sessionID}/send", h.handleSend)
	r.Post("/widgets/{sessionID}/keys", h.handleKey)
}

// handleMount 挂载一个新的弹窗实例
func (h *Handler) handleMount(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaID string `json:"personaId"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, widget, err := h.chatSvc.Mount(r.Context(), payload.PersonaID)
	if err != nil {
		if errors.Is(err, chatService.ErrPersonaNotFound) {
			utils.RespondError(w, http.StatusBadRequest, "persona not found")
			return
		}
		log.Error().Err(err).Str("component", "widget_api").Msg("mount failed")
		utils.RespondError(w, http.StatusInternalServerError, "mount failed")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, mountResponse{Session: session, State: widget.Snapshot()})
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.lookup(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, widget.Snapshot())
}

// handleUnmount 卸载弹窗，取消尚未触发的回复
func (h *Handler) handleUnmount(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.Unmount(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondLookupError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.lookup(w, r)
	if !ok {
		return
	}
	widget.TogglePopup()
	utils.RespondJSON(w, http.StatusOK, widget.Snapshot())
}

func (h *Handler) handleDraft(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	widget, ok := h.lookup(w, r)
	if !ok {
		return
	}
	widget.SetDraft(payload.Text)
	utils.RespondJSON(w, http.StatusOK, widget.Snapshot())
}

// handleSend 发送草稿；请求体中的 text 会先写入草稿
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text *string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	widget, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if payload.Text != nil {
		widget.SetDraft(*payload.Text)
	}
	sent := widget.SendMessage()
	utils.RespondJSON(w, http.StatusOK, sendResponse{Sent: sent, State: widget.Snapshot()})
}

func (h *Handler) handleKey(w http.ResponseWriter, r *http.Request) {
	var key widgetService.KeyEvent
	if err := utils.DecodeJSON(r, &key); err != nil || key.Key == "" {
		utils.RespondError(w, http.StatusBadRequest, "key is required")
		return
	}

	widget, ok := h.lookup(w, r)
	if !ok {
		return
	}
	result := widget.HandleKey(key)
	utils.RespondJSON(w, http.StatusOK, keyResponse{KeyResult: result, State: widget.Snapshot()})
}

// lookup 查找会话对应的弹窗，并刷新空闲计时
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*widgetService.Widget, bool) {
	widget, err := h.chatSvc.Touch(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondLookupError(w, err)
		return nil, false
	}
	return widget, true
}

func respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, chatService.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondError(w, http.StatusInternalServerError, err.Error())
}
