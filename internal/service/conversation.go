package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"messenger/internal/domain"
	"messenger/internal/repository"
	"messenger/pkg/errors"
	"messenger/pkg/logger"

	"github.com/google/uuid"
)

type CreateConversationInput struct {
	Type         string
	Name         string
	Participants []uuid.UUID
}

type ConversationService interface {
	Create(ctx context.Context, createdBy uuid.UUID, input CreateConversationInput) (*domain.Conversation, bool, error)
	Get(ctx context.Context, userID, conversationID uuid.UUID) (*domain.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Conversation, error)
	Memberships(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	Delete(ctx context.Context, userID, conversationID uuid.UUID) error
	Leave(ctx context.Context, userID, conversationID uuid.UUID) error
}

type conversationService struct {
	conversationRepo repository.ConversationRepository
	log              logger.Logger
}

func NewConversationService(conversationRepo repository.ConversationRepository, log logger.Logger) ConversationService {
	return &conversationService{
		conversationRepo: conversationRepo,
		log:              log,
	}
}

// Create создаёт беседу. Для личной беседы из двух человек сначала ищется
// существующая - в этом случае возвращается она и флаг existing=true.
func (s *conversationService) Create(ctx context.Context, createdBy uuid.UUID, input CreateConversationInput) (*domain.Conversation, bool, error) {
	if input.Type != domain.ConversationTypeDirect && input.Type != domain.ConversationTypeGroup {
		return nil, false, fmt.Errorf("%w: invalid conversation type %q", errors.ErrBadRequest, input.Type)
	}
	if len(input.Participants) == 0 {
		return nil, false, fmt.Errorf("%w: participants are required", errors.ErrBadRequest)
	}

	if input.Type == domain.ConversationTypeDirect && len(input.Participants) == 1 {
		existing, err := s.conversationRepo.FindDirectBetween(ctx, createdBy, input.Participants[0])
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", errors.ErrStorage, err)
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	var name *string
	if trimmed := strings.TrimSpace(input.Name); trimmed != "" {
		name = &trimmed
	}

	conversation := &domain.Conversation{
		ID:        uuid.New(),
		Name:      name,
		Type:      input.Type,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	// Создатель всегда входит в список участников
	participantIDs := []uuid.UUID{createdBy}
	for _, id := range input.Participants {
		if id != createdBy {
			participantIDs = append(participantIDs, id)
		}
	}

	if err := s.conversationRepo.Create(ctx, conversation, participantIDs); err != nil {
		return nil, false, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}

	s.log.Info("Conversation created", "conversation_id", conversation.ID, "type", conversation.Type, "created_by", createdBy)
	return conversation, false, nil
}

func (s *conversationService) Get(ctx context.Context, userID, conversationID uuid.UUID) (*domain.Conversation, error) {
	isParticipant, err := s.conversationRepo.IsParticipant(ctx, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	if !isParticipant {
		return nil, errors.ErrAccessDenied
	}

	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, errors.ErrConversationNotFound
	}

	participants, err := s.conversationRepo.GetParticipants(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	conversation.Participants = participants

	return conversation, nil
}

func (s *conversationService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Conversation, error) {
	return s.conversationRepo.ListForUser(ctx, userID)
}

func (s *conversationService) Memberships(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return s.conversationRepo.ListMemberships(ctx, userID)
}

// Delete удаляет групповую беседу; разрешено только создателю группы
func (s *conversationService) Delete(ctx context.Context, userID, conversationID uuid.UUID) error {
	isParticipant, err := s.conversationRepo.IsParticipant(ctx, userID, conversationID)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	if !isParticipant {
		return errors.ErrConversationNotFound
	}

	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return errors.ErrConversationNotFound
	}

	if conversation.Type != domain.ConversationTypeGroup {
		return fmt.Errorf("%w: only group conversations can be deleted", errors.ErrBadRequest)
	}
	if conversation.CreatedBy != userID {
		return errors.ErrForbidden
	}

	return s.conversationRepo.Delete(ctx, conversationID)
}

// Leave выводит пользователя из группы; создатель покинуть группу не может
func (s *conversationService) Leave(ctx context.Context, userID, conversationID uuid.UUID) error {
	isParticipant, err := s.conversationRepo.IsParticipant(ctx, userID, conversationID)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	if !isParticipant {
		return errors.ErrConversationNotFound
	}

	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return errors.ErrConversationNotFound
	}

	if conversation.Type != domain.ConversationTypeGroup {
		return fmt.Errorf("%w: you can only leave group conversations", errors.ErrBadRequest)
	}
	if conversation.CreatedBy == userID {
		return fmt.Errorf("%w: group creator cannot leave, delete the group instead", errors.ErrBadRequest)
	}

	return s.conversationRepo.RemoveParticipant(ctx, conversationID, userID)
}
