package shell

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-popup/backend/internal/model/persona"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Page 页面模板的数据
type Page struct {
	Title     string
	Intro     string
	PersonaID string
	Name      string
	Subtitle  string
	APIBase   string
}

// Handler 渲染静态说明页并挂载聊天弹窗
type Handler struct {
	page Page
}

// New 创建页面处理器。persona 决定弹窗头部文案。
func New(p persona.Persona, apiBase string) *Handler {
	return &Handler{page: Page{
		Title:     "Chat Popup Demo",
		Intro:     "Click the bubble in the corner to chat with the assistant. The demo keeps conversations locally and sends playful automated replies so you can see the full flow.",
		PersonaID: p.ID,
		Name:      p.Name,
		Subtitle:  p.Subtitle,
		APIBase:   apiBase,
	}}
}

// RegisterRoutes 注册页面路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, h.page); err != nil {
		log.Error().Err(err).Str("component", "shell").Msg("render page failed")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}
