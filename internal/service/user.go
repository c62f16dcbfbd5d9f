package service

import (
	"context"
	"errors"

	"messenger/internal/domain"
	"messenger/internal/repository"
	"messenger/pkg/logger"

	"github.com/google/uuid"
)

type UserService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	List(ctx context.Context, excludeID uuid.UUID) ([]*domain.User, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
}

type userService struct {
	userRepo repository.UserRepository
	log      logger.Logger
}

func NewUserService(userRepo repository.UserRepository, log logger.Logger) UserService {
	return &userService{userRepo: userRepo, log: log}
}

func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.New("user not found")
	}

	user.PasswordHash = ""
	return user, nil
}

// List отдаёт справочник пользователей для выбора собеседника
func (s *userService) List(ctx context.Context, excludeID uuid.UUID) ([]*domain.User, error) {
	return s.userRepo.List(ctx, excludeID)
}

func (s *userService) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	if status != domain.StatusOnline && status != domain.StatusOffline {
		return errors.New("invalid status")
	}
	return s.userRepo.SetStatus(ctx, id, status)
}
