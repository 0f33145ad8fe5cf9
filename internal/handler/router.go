package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/chat-popup/backend/internal/handler/persona"
	"github.com/zhouzirui/chat-popup/backend/internal/handler/realtime"
	"github.com/zhouzirui/chat-popup/backend/internal/handler/shell"
	"github.com/zhouzirui/chat-popup/backend/internal/handler/stream"
	"github.com/zhouzirui/chat-popup/backend/internal/handler/widget"
	middlewarePkg "github.com/zhouzirui/chat-popup/backend/internal/middleware"
	personaModel "github.com/zhouzirui/chat-popup/backend/internal/model/persona"
	chatService "github.com/zhouzirui/chat-popup/backend/internal/service/chat"
	"github.com/zhouzirui/chat-popup/backend/pkg/utils"
)

// RouterConfig carries the parts of the configuration the HTTP layer needs.
type RouterConfig struct {
	AllowedOrigins []string
	// ShellPersona decides the popup header on the shell page.
	ShellPersona personaModel.Persona
}

// NewRouter wires HTTP routes to core services.
func NewRouter(personas personaModel.Store, chatSvc *chatService.Service, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.AllowedOrigins))

	shell.New(cfg.ShellPersona, "/api").RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"widgets": chatSvc.Count(),
		})
	})

	r.Route("/api", func(api chi.Router) {
		persona.New(personas).RegisterRoutes(api)
		widget.New(chatSvc).RegisterRoutes(api)
		stream.New(chatSvc).RegisterRoutes(api)
		realtime.NewWebSocketHandler(chatSvc).RegisterRoutes(api)
	})

	return r
}
