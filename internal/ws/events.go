package ws

import (
	"encoding/json"
	"fmt"

	"messenger/internal/domain"

	"github.com/google/uuid"
)

// EventType - закрытый набор типов событий wire-протокола.
// Диспетчеризация идёт исчерпывающим switch, а не таблицей по строкам.
type EventType string

const (
	// клиент -> сервер
	EventAuthenticate      EventType = "authenticate"
	EventJoinConversation  EventType = "join_conversation"
	EventLeaveConversation EventType = "leave_conversation"
	EventSendMessage       EventType = "send_message"
	EventTypingStart       EventType = "typing_start"
	EventTypingStop        EventType = "typing_stop"

	// сервер -> клиент
	EventAuthenticated     EventType = "authenticated"
	EventAuthError         EventType = "auth_error"
	EventNewMessage        EventType = "new_message"
	EventUserTyping        EventType = "user_typing"
	EventUserStoppedTyping EventType = "user_stopped_typing"
	EventUserOnline        EventType = "user_online"
	EventUserOffline       EventType = "user_offline"
	EventError             EventType = "error"
)

// Envelope - кадр протокола: тип события плюс произвольная полезная нагрузка
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type AuthenticatePayload struct {
	Token string `json:"token"`
}

type AuthenticatedPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
}

type ConversationRef struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

type SendMessagePayload struct {
	ConversationID uuid.UUID           `json:"conversation_id"`
	Content        string              `json:"content"`
	Kind           string              `json:"kind,omitempty"`
	File           *domain.FilePayload `json:"file,omitempty"`
}

type PresencePayload struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
}

type TypingPayload struct {
	UserID         uuid.UUID `json:"user_id"`
	Username       string    `json:"username"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}

// Encode собирает готовый к отправке кадр
func Encode(event EventType, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
		}
		raw = b
	}

	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s envelope: %w", event, err)
	}

	return frame, nil
}

func mustEncode(event EventType, data any) []byte {
	frame, err := Encode(event, data)
	if err != nil {
		// Полезные нагрузки протокола всегда сериализуемы
		panic(err)
	}
	return frame
}

func decodePayload[T any](raw json.RawMessage) (*T, error) {
	var payload T
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("malformed payload: %w", err)
	}
	return &payload, nil
}
