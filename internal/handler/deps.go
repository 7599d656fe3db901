package handler

import (
	"originchats/internal/app/chat"
	"originchats/internal/configs"
	"originchats/internal/pkg/limiter"
)

// AppDeps are the collaborators shared by the HTTP handlers.
type AppDeps struct {
	Server *chat.Server
	Config *configs.AppConfig

	// ConnLimiter throttles websocket upgrades per IP. Router builds one from Config
	// when it is nil.
	ConnLimiter *limiter.IPRateLimiter
}
