package handler

import (
	"messenger/internal/config"
	"messenger/internal/service"
	"messenger/internal/ws"
	"messenger/pkg/logger"
)

type Handlers struct {
	Health       *HealthHandler
	Auth         *AuthHandler
	User         *UserHandler
	Conversation *ConversationHandler
	WebSocket    *WebSocketHandler
}

func NewHandlers(services *service.Services, hub *ws.Hub, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(),
		Auth:         NewAuthHandler(services.Auth, log),
		User:         NewUserHandler(services.User, log),
		Conversation: NewConversationHandler(services.Conversation, services.Message, log),
		WebSocket:    NewWebSocketHandler(hub, services, cfg.Chat, log),
	}
}
