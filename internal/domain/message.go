package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message - сообщение беседы. ID и CreatedAt присваивает БД при вставке;
// до этого момента сообщение не покидает сервер.
type Message struct {
	ID             int64        `json:"id"`
	ConversationID uuid.UUID    `json:"conversation_id"`
	SenderID       uuid.UUID    `json:"sender_id"`
	SenderUsername string       `json:"sender_username"`
	Content        string       `json:"content"`
	Kind           string       `json:"kind"`
	File           *FilePayload `json:"file,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// FilePayload - метаданные вложения для image/document сообщений
type FilePayload struct {
	Data      string `json:"data,omitempty"`
	Name      string `json:"name,omitempty"`
	Size      int64  `json:"size,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

const (
	MessageKindText     = "text"
	MessageKindImage    = "image"
	MessageKindDocument = "document"
)

func ValidMessageKind(kind string) bool {
	switch kind {
	case MessageKindText, MessageKindImage, MessageKindDocument:
		return true
	}
	return false
}
