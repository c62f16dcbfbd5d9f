package service

import (
	"context"
	"fmt"
	"strings"

	"messenger/internal/domain"
	"messenger/internal/repository"
	"messenger/pkg/errors"
	"messenger/pkg/logger"

	"github.com/google/uuid"
)

type SendMessageInput struct {
	ConversationID uuid.UUID
	Content        string
	Kind           string
	File           *domain.FilePayload
}

type MessageService interface {
	Send(ctx context.Context, senderID uuid.UUID, input SendMessageInput) (*domain.Message, error)
	History(ctx context.Context, userID, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error)
}

type messageService struct {
	messageRepo      repository.MessageRepository
	conversationRepo repository.ConversationRepository
	historyPageSize  int
	maxHistoryPage   int
	log              logger.Logger
}

func NewMessageService(messageRepo repository.MessageRepository, conversationRepo repository.ConversationRepository, historyPageSize, maxHistoryPage int, log logger.Logger) MessageService {
	return &messageService{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		historyPageSize:  historyPageSize,
		maxHistoryPage:   maxHistoryPage,
		log:              log,
	}
}

// Send проводит сообщение через весь конвейер доставки:
// проверка участия -> вставка (БД присваивает id и created_at) ->
// повторное чтение строки вместе с именем отправителя.
// Рассылку по комнате выполняет вызывающий websocket-слой уже после того,
// как сообщение durably сохранено.
func (s *messageService) Send(ctx context.Context, senderID uuid.UUID, input SendMessageInput) (*domain.Message, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" && input.File == nil {
		return nil, fmt.Errorf("%w: content is required", errors.ErrBadRequest)
	}

	kind := input.Kind
	if kind == "" {
		kind = domain.MessageKindText
	}
	if !domain.ValidMessageKind(kind) {
		return nil, fmt.Errorf("%w: unknown message kind %q", errors.ErrBadRequest, kind)
	}

	isParticipant, err := s.conversationRepo.IsParticipant(ctx, senderID, input.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	if !isParticipant {
		// Сообщение не сохраняется и никому не рассылается
		return nil, errors.ErrAccessDenied
	}

	message := &domain.Message{
		ConversationID: input.ConversationID,
		SenderID:       senderID,
		Content:        content,
		Kind:           kind,
		File:           input.File,
	}

	if err := s.messageRepo.Insert(ctx, message); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}

	hydrated, err := s.messageRepo.GetWithSender(ctx, message.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}

	return hydrated, nil
}

func (s *messageService) History(ctx context.Context, userID, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error) {
	isParticipant, err := s.conversationRepo.IsParticipant(ctx, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	if !isParticipant {
		return nil, errors.ErrAccessDenied
	}

	if limit <= 0 || limit > s.maxHistoryPage {
		limit = s.historyPageSize
	}
	if offset < 0 {
		offset = 0
	}

	return s.messageRepo.ListByConversation(ctx, conversationID, limit, offset)
}
