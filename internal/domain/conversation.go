package domain

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID           uuid.UUID      `json:"id"`
	Name         *string        `json:"name,omitempty"`
	Type         string         `json:"type"`
	CreatedBy    uuid.UUID      `json:"created_by"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Participants []*Participant `json:"participants,omitempty"`
	LastMessage  *Message       `json:"last_message,omitempty"`
}

// Participant - участник беседы в том виде, в каком его отдаёт REST-слой
type Participant struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Status   string    `json:"status"`
	JoinedAt time.Time `json:"joined_at"`
}

const (
	ConversationTypeDirect = "direct"
	ConversationTypeGroup  = "group"
)
