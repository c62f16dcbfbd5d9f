package repository

import (
	"context"
	"errors"

	"messenger/internal/domain"
	"messenger/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository interface {
	Insert(ctx context.Context, message *domain.Message) error
	GetWithSender(ctx context.Context, messageID int64) (*domain.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error)
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

// Insert записывает сообщение; id и created_at присваивает БД
func (r *messageRepository) Insert(ctx context.Context, message *domain.Message) error {
	query := `
		INSERT INTO messages (conversation_id, sender_id, content, kind, file_data, file_name, file_size, file_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	var fileData, fileName, fileType *string
	var fileSize *int64
	if message.File != nil {
		fileData = &message.File.Data
		fileName = &message.File.Name
		fileSize = &message.File.Size
		fileType = &message.File.MediaType
	}

	err := r.db.QueryRow(ctx, query,
		message.ConversationID, message.SenderID, message.Content, message.Kind,
		fileData, fileName, fileSize, fileType,
	).Scan(&message.ID, &message.CreatedAt)

	if err != nil {
		r.log.Error("Failed to insert message", "error", err, "conversation_id", message.ConversationID)
		return err
	}

	return nil
}

// GetWithSender перечитывает строку вместе с именем отправителя.
// Именно этот гидратированный вид рассылается по комнате.
func (r *messageRepository) GetWithSender(ctx context.Context, messageID int64) (*domain.Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.sender_id, u.username, m.content, m.kind,
		       m.file_data, m.file_name, m.file_size, m.file_type, m.created_at
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.id = $1
	`

	message, err := r.scanMessage(r.db.QueryRow(ctx, query, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New("message not found")
		}
		r.log.Error("Failed to get message", "error", err, "message_id", messageID)
		return nil, err
	}

	return message, nil
}

// ListByConversation отдаёт страницу истории от старых к новым
func (r *messageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.sender_id, u.username, m.content, m.kind,
		       m.file_data, m.file_name, m.file_size, m.file_type, m.created_at
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, conversationID, limit, offset)
	if err != nil {
		r.log.Error("Failed to list messages", "error", err, "conversation_id", conversationID)
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		message, err := r.scanMessage(rows)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, err
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Запрос идёт от новых к старым, клиент отображает от старых к новым
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (r *messageRepository) scanMessage(row pgx.Row) (*domain.Message, error) {
	message := &domain.Message{}
	var fileData, fileName, fileType *string
	var fileSize *int64

	err := row.Scan(
		&message.ID, &message.ConversationID, &message.SenderID, &message.SenderUsername,
		&message.Content, &message.Kind, &fileData, &fileName, &fileSize, &fileType,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if fileData != nil || fileName != nil {
		message.File = &domain.FilePayload{}
		if fileData != nil {
			message.File.Data = *fileData
		}
		if fileName != nil {
			message.File.Name = *fileName
		}
		if fileSize != nil {
			message.File.Size = *fileSize
		}
		if fileType != nil {
			message.File.MediaType = *fileType
		}
	}

	return message, nil
}
