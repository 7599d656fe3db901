/*
Package handler provides the HTTP routing of the chat server.

This file defines the main Router: CORS, request ids, request logging and panic recovery,
a health probe, and the websocket endpoint guarded by a per-IP connection limiter.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"originchats/internal/pkg/limiter"
	"originchats/internal/pkg/logx"
	"originchats/internal/pkg/resp"
)

// Router builds the HTTP handler serving /health and the websocket on / and /ws.
func Router(deps *AppDeps) http.Handler {
	connLimiter := deps.ConnLimiter
	if connLimiter == nil {
		connLimiter = limiter.NewIPRateLimiter(rate.Limit(deps.Config.ConnectRate), deps.Config.ConnectBurst)
	}

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() || len(allowedOrigins) == 0 {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{"*"}
	if !deps.Config.IsDevelopment() && len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]any{
			"status":   "ok",
			"service":  deps.Config.ServerName,
			"version":  deps.Config.ServerVersion,
			"online":   deps.Server.Online(),
			"sessions": deps.Server.Hub().Len(),
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(connLimiter.Middleware)

		ws := HandleWebSocket(wsUpgrader, deps)
		r.Get("/", ws)
		r.Get("/ws", ws)
	})

	return r
}
