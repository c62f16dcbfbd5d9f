package repository

import (
	"context"
	"errors"
	"fmt"

	"messenger/internal/domain"
	"messenger/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation *domain.Conversation, participantIDs []uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	GetParticipants(ctx context.Context, conversationID uuid.UUID) ([]*domain.Participant, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Conversation, error)
	FindDirectBetween(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error)
	IsParticipant(ctx context.Context, userID, conversationID uuid.UUID) (bool, error)
	ListMemberships(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	RemoveParticipant(ctx context.Context, conversationID, userID uuid.UUID) error
	Delete(ctx context.Context, conversationID uuid.UUID) error
}

type conversationRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewConversationRepository(db *pgxpool.Pool, log logger.Logger) ConversationRepository {
	return &conversationRepository{db: db, log: log}
}

// Create вставляет беседу и всех её участников в одной транзакции
func (r *conversationRepository) Create(ctx context.Context, conversation *domain.Conversation, participantIDs []uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO conversations (id, name, type, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err = tx.QueryRow(ctx, query,
		conversation.ID, conversation.Name, conversation.Type, conversation.CreatedBy,
		conversation.CreatedAt, conversation.UpdatedAt,
	).Scan(&conversation.CreatedAt, &conversation.UpdatedAt)
	if err != nil {
		r.log.Error("Failed to create conversation", "error", err)
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	for _, userID := range participantIDs {
		_, err = tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT (conversation_id, user_id) DO NOTHING
		`, conversation.ID, userID)
		if err != nil {
			r.log.Error("Failed to add participant", "error", err, "user_id", userID)
			return fmt.Errorf("failed to add participant: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *conversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT id, name, type, created_by, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`

	conversation := &domain.Conversation{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&conversation.ID, &conversation.Name, &conversation.Type,
		&conversation.CreatedBy, &conversation.CreatedAt, &conversation.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New("conversation not found")
		}
		r.log.Error("Failed to get conversation", "error", err, "conversation_id", id)
		return nil, err
	}

	return conversation, nil
}

func (r *conversationRepository) GetParticipants(ctx context.Context, conversationID uuid.UUID) ([]*domain.Participant, error) {
	query := `
		SELECT u.id, u.username, u.email, u.status, cp.joined_at
		FROM conversation_participants cp
		JOIN users u ON cp.user_id = u.id
		WHERE cp.conversation_id = $1
		ORDER BY cp.joined_at
	`

	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		r.log.Error("Failed to get participants", "error", err, "conversation_id", conversationID)
		return nil, err
	}
	defer rows.Close()

	var participants []*domain.Participant
	for rows.Next() {
		p := &domain.Participant{}
		if err := rows.Scan(&p.UserID, &p.Username, &p.Email, &p.Status, &p.JoinedAt); err != nil {
			r.log.Error("Failed to scan participant", "error", err)
			return nil, err
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Conversation, error) {
	query := `
		SELECT c.id, c.name, c.type, c.created_by, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants cp ON c.id = cp.conversation_id
		WHERE cp.user_id = $1
		ORDER BY c.updated_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("Failed to list conversations", "error", err, "user_id", userID)
		return nil, err
	}
	defer rows.Close()

	var conversations []*domain.Conversation
	for rows.Next() {
		c := &domain.Conversation{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			r.log.Error("Failed to scan conversation", "error", err)
			return nil, err
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Участники и последнее сообщение подгружаются отдельными запросами
	// на каждую беседу: список бесед пользователя короткий, N+1 здесь приемлем
	for _, c := range conversations {
		participants, err := r.GetParticipants(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		c.Participants = participants

		lastMessage, err := r.getLastMessage(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		c.LastMessage = lastMessage
	}

	return conversations, nil
}

func (r *conversationRepository) getLastMessage(ctx context.Context, conversationID uuid.UUID) (*domain.Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.sender_id, u.username, m.content, m.kind, m.created_at
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at DESC
		LIMIT 1
	`

	message := &domain.Message{}
	err := r.db.QueryRow(ctx, query, conversationID).Scan(
		&message.ID, &message.ConversationID, &message.SenderID, &message.SenderUsername,
		&message.Content, &message.Kind, &message.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("Failed to get last message", "error", err, "conversation_id", conversationID)
		return nil, err
	}

	return message, nil
}

// FindDirectBetween ищет существующую личную беседу ровно из двух участников
func (r *conversationRepository) FindDirectBetween(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT c.id, c.name, c.type, c.created_by, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants cp1 ON c.id = cp1.conversation_id
		JOIN conversation_participants cp2 ON c.id = cp2.conversation_id
		WHERE c.type = 'direct'
		  AND cp1.user_id = $1
		  AND cp2.user_id = $2
		  AND (SELECT COUNT(*) FROM conversation_participants WHERE conversation_id = c.id) = 2
		LIMIT 1
	`

	conversation := &domain.Conversation{}
	err := r.db.QueryRow(ctx, query, userA, userB).Scan(
		&conversation.ID, &conversation.Name, &conversation.Type,
		&conversation.CreatedBy, &conversation.CreatedAt, &conversation.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("Failed to find direct conversation", "error", err)
		return nil, err
	}

	return conversation, nil
}

func (r *conversationRepository) IsParticipant(ctx context.Context, userID, conversationID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $1 AND user_id = $2
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, conversationID, userID).Scan(&exists); err != nil {
		r.log.Error("Failed to check participant", "error", err, "conversation_id", conversationID, "user_id", userID)
		return false, err
	}

	return exists, nil
}

func (r *conversationRepository) ListMemberships(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT conversation_id FROM conversation_participants WHERE user_id = $1`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("Failed to list memberships", "error", err, "user_id", userID)
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *conversationRepository) RemoveParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	query := `DELETE FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2`

	_, err := r.db.Exec(ctx, query, conversationID, userID)
	if err != nil {
		r.log.Error("Failed to remove participant", "error", err, "conversation_id", conversationID, "user_id", userID)
		return err
	}

	return nil
}

// Delete удаляет групповую беседу вместе с сообщениями и участниками
func (r *conversationRepository) Delete(ctx context.Context, conversationID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	statements := []string{
		`DELETE FROM messages WHERE conversation_id = $1`,
		`DELETE FROM conversation_participants WHERE conversation_id = $1`,
		`DELETE FROM conversations WHERE id = $1`,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt, conversationID); err != nil {
			r.log.Error("Failed to delete conversation", "error", err, "conversation_id", conversationID)
			return err
		}
	}

	return tx.Commit(ctx)
}
