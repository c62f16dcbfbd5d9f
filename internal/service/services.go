package service

import (
	"messenger/internal/config"
	"messenger/internal/repository"
	"messenger/pkg/logger"
)

type Services struct {
	Auth         AuthService
	User         UserService
	Conversation ConversationService
	Message      MessageService
	RateLimit    RateLimitService
}

func NewServices(repos *repository.Repositories, cfg *config.Config, log logger.Logger) *Services {
	return &Services{
		Auth:         NewAuthService(repos.User, cfg.JWT, log),
		User:         NewUserService(repos.User, log),
		Conversation: NewConversationService(repos.Conversation, log),
		Message:      NewMessageService(repos.Message, repos.Conversation, cfg.Chat.HistoryPageSize, cfg.Chat.MaxHistoryPage, log),
		RateLimit:    NewRateLimitService(repos.RateLimit, log),
	}
}
