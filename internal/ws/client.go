package ws

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"sync"
	"time"

	"messenger/internal/config"
	"messenger/internal/domain"
	"messenger/internal/service"
	"messenger/pkg/errors"
	"messenger/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client - одно живое websocket-соединение. Identity привязывается первым
// событием authenticate и неизменна до закрытия соединения.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	services *service.Services
	cfg      config.ChatConfig
	log      logger.Logger

	send chan []byte

	mu     sync.Mutex
	closed bool

	userID        uuid.UUID
	username      string
	authenticated bool
}

func NewClient(hub *Hub, conn *websocket.Conn, services *service.Services, cfg config.ChatConfig, log logger.Logger) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		services: services,
		cfg:      cfg,
		log:      log,
		send:     make(chan []byte, cfg.SendBufferSize),
	}
}

// Run запускает насосы чтения и записи; возвращается после закрытия соединения
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer c.disconnect()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Unexpected websocket close", "error", err)
			}
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			c.sendError("malformed frame")
			continue
		}

		c.dispatch(envelope)
	}
}

func (c *Client) writePump() {
	// Пинг должен уходить чаще, чем истекает read deadline на той стороне
	ticker := time.NewTicker(c.cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch разбирает входящее событие. Набор событий закрыт: всё, что не
// входит в клиентскую половину протокола, отбрасывается с ошибкой.
func (c *Client) dispatch(envelope Envelope) {
	switch envelope.Event {
	case EventAuthenticate:
		c.handleAuthenticate(envelope.Data)
	case EventJoinConversation:
		c.handleJoin(envelope.Data)
	case EventLeaveConversation:
		c.handleLeave(envelope.Data)
	case EventSendMessage:
		c.handleSendMessage(envelope.Data)
	case EventTypingStart:
		c.handleTyping(envelope.Data, EventUserTyping)
	case EventTypingStop:
		c.handleTyping(envelope.Data, EventUserStoppedTyping)
	case EventAuthenticated, EventAuthError, EventNewMessage, EventUserTyping,
		EventUserStoppedTyping, EventUserOnline, EventUserOffline, EventError:
		c.sendError("server-side event not accepted from client")
	default:
		c.sendError("unknown event")
	}
}

// handleAuthenticate привязывает identity к соединению. Порядок побочных
// эффектов фиксирован: привязка identity -> подписка на комнаты ->
// отметка online -> подтверждение -> presence-рассылка остальным.
func (c *Client) handleAuthenticate(raw json.RawMessage) {
	payload, err := decodePayload[AuthenticatePayload](raw)
	if err != nil {
		c.sendFrame(mustEncode(EventAuthError, ErrorPayload{Reason: "invalid token"}))
		return
	}

	ctx := context.Background()
	user, err := c.services.Auth.ValidateToken(ctx, payload.Token)
	if err != nil {
		// Соединение не закрывается: клиент может повторить с новым токеном
		c.sendFrame(mustEncode(EventAuthError, ErrorPayload{Reason: "invalid token"}))
		return
	}

	if c.authenticated {
		// Повторная аутентификация требует нового соединения
		c.sendError("already authenticated")
		return
	}

	c.userID = user.ID
	c.username = user.Username
	c.authenticated = true
	c.hub.MarkAuthenticated(c)

	memberships, err := c.services.Conversation.Memberships(ctx, user.ID)
	if err != nil {
		c.log.Error("Failed to load memberships", "error", err, "user_id", user.ID)
		memberships = nil
	}
	for _, conversationID := range memberships {
		c.hub.Join(c, conversationID)
	}

	if err := c.services.User.SetStatus(ctx, user.ID, domain.StatusOnline); err != nil {
		c.log.Warn("Failed to mark user online", "error", err, "user_id", user.ID)
	}

	c.sendFrame(mustEncode(EventAuthenticated, AuthenticatedPayload{
		UserID:   user.ID,
		Username: user.Username,
	}))

	c.hub.BroadcastToOthers(mustEncode(EventUserOnline, PresencePayload{
		UserID:   user.ID,
		Username: user.Username,
	}), c)

	c.log.Info("Connection authenticated", "user_id", user.ID, "username", user.Username, "rooms", len(memberships))
}

// handleJoin подписывает на комнату без проверки членства: реальный
// контроль доступа выполняется на send_message и при чтении истории
func (c *Client) handleJoin(raw json.RawMessage) {
	payload, err := decodePayload[ConversationRef](raw)
	if err != nil {
		c.sendError("malformed payload")
		return
	}
	c.hub.Join(c, payload.ConversationID)
}

func (c *Client) handleLeave(raw json.RawMessage) {
	payload, err := decodePayload[ConversationRef](raw)
	if err != nil {
		c.sendError("malformed payload")
		return
	}
	c.hub.Leave(c, payload.ConversationID)
}

func (c *Client) handleSendMessage(raw json.RawMessage) {
	if !c.authenticated {
		c.sendError(errors.ErrNotAuthenticated.Error())
		return
	}

	payload, err := decodePayload[SendMessagePayload](raw)
	if err != nil {
		c.sendError("malformed payload")
		return
	}

	message, err := c.services.Message.Send(context.Background(), c.userID, service.SendMessageInput{
		ConversationID: payload.ConversationID,
		Content:        payload.Content,
		Kind:           payload.Kind,
		File:           payload.File,
	})
	if err != nil {
		// Ошибка уходит только отправителю; другим участникам ничего не рассылается
		c.sendError(sendFailureReason(err))
		return
	}

	// Рассылка только после durable-записи: кадр всегда несёт id и
	// created_at, присвоенные БД, и возвращается в том числе отправителю
	c.hub.BroadcastToRoom(message.ConversationID, mustEncode(EventNewMessage, message))
}

func (c *Client) handleTyping(raw json.RawMessage, event EventType) {
	if !c.authenticated {
		c.sendError(errors.ErrNotAuthenticated.Error())
		return
	}

	payload, err := decodePayload[ConversationRef](raw)
	if err != nil {
		c.sendError("malformed payload")
		return
	}

	// Fire-and-forget: без персистентности и без гарантий доставки
	c.hub.BroadcastToRoomExcept(payload.ConversationID, mustEncode(event, TypingPayload{
		UserID:         c.userID,
		Username:       c.username,
		ConversationID: payload.ConversationID,
	}), c)
}

// disconnect снимает соединение с учёта. Для аутентифицированного соединения
// каждый разрыв помечает пользователя offline и рассылает user_offline -
// наблюдаемое поведение "последний закрывший выигрывает" при нескольких
// устройствах сохранено намеренно.
func (c *Client) disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.conn.Close()
	c.hub.Unregister(c)

	if !c.authenticated {
		return
	}

	// Background context: закрытие соединения не должно отменять запись статуса
	if err := c.services.User.SetStatus(context.Background(), c.userID, domain.StatusOffline); err != nil {
		c.log.Warn("Failed to mark user offline", "error", err, "user_id", c.userID)
	}

	c.hub.BroadcastToOthers(mustEncode(EventUserOffline, PresencePayload{
		UserID:   c.userID,
		Username: c.username,
	}), nil)

	c.log.Info("Connection closed", "user_id", c.userID, "username", c.username)
}

// enqueue ставит кадр в очередь записи, никогда не блокируя хаб.
// Переполненный буфер означает безнадёжно отставшее соединение - оно
// закрывается, разрыв доводит до Unregister через readPump.
func (c *Client) enqueue(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	select {
	case c.send <- frame:
	default:
		c.log.Warn("Send buffer full, dropping connection", "user_id", c.userID)
		go c.conn.Close()
	}
}

func (c *Client) sendFrame(frame []byte) {
	c.enqueue(frame)
}

func (c *Client) sendError(reason string) {
	c.enqueue(mustEncode(EventError, ErrorPayload{Reason: reason}))
}

func sendFailureReason(err error) string {
	switch {
	case goerrors.Is(err, errors.ErrAccessDenied):
		return errors.ErrAccessDenied.Error()
	case goerrors.Is(err, errors.ErrBadRequest):
		return err.Error()
	default:
		return "failed to send message"
	}
}
