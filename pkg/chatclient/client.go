package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"messenger/internal/domain"
	"messenger/internal/ws"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handlers - колбэки на серверные события. Необъявленные колбэки
// пропускаются молча.
type Handlers struct {
	OnNewMessage    func(message *domain.Message)
	OnReconciled    func(entry *Entry)
	OnTyping        func(payload ws.TypingPayload)
	OnStoppedTyping func(payload ws.TypingPayload)
	OnUserOnline    func(payload ws.PresencePayload)
	OnUserOffline   func(payload ws.PresencePayload)
	OnError         func(reason string)
}

type Options struct {
	// Пороги эвристики статуса доставки
	DeliveredAfter time.Duration
	ReadAfter      time.Duration
	// Окно typing-дебаунса
	TypingDebounce time.Duration
	// Таймаут ожидания ответа на authenticate
	AuthTimeout time.Duration
}

func (o *Options) withDefaults() {
	if o.DeliveredAfter == 0 {
		o.DeliveredAfter = 2 * time.Second
	}
	if o.ReadAfter == 0 {
		o.ReadAfter = 10 * time.Second
	}
	if o.TypingDebounce == 0 {
		o.TypingDebounce = 2 * time.Second
	}
	if o.AuthTimeout == 0 {
		o.AuthTimeout = 10 * time.Second
	}
}

// Client - программный аналог браузерного клиента мессенджера: держит
// websocket-соединение, ведёт оптимистичный реестр собственных сообщений
// и дебаунс typing-сигналов.
type Client struct {
	conn     *websocket.Conn
	ledger   *Ledger
	handlers Handlers
	opts     Options

	writeMu sync.Mutex

	mu       sync.Mutex
	userID   uuid.UUID
	username string
	authed   bool
	typing   map[uuid.UUID]*TypingNotifier

	authResult chan error
}

// Dial открывает соединение; identity привязывается отдельным вызовом
// Authenticate, как и в wire-протоколе
func Dial(ctx context.Context, url string, handlers Handlers, opts Options) (*Client, error) {
	opts.withDefaults()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	return &Client{
		conn:       conn,
		ledger:     NewLedger(opts.DeliveredAfter, opts.ReadAfter),
		handlers:   handlers,
		opts:       opts,
		typing:     make(map[uuid.UUID]*TypingNotifier),
		authResult: make(chan error, 1),
	}, nil
}

// Authenticate отправляет токен первым событием и ждёт подтверждения.
// Требует запущенного Listen: ответ приходит тем же каналом событий.
func (c *Client) Authenticate(token string) error {
	if err := c.emit(ws.EventAuthenticate, ws.AuthenticatePayload{Token: token}); err != nil {
		return err
	}

	select {
	case err := <-c.authResult:
		return err
	case <-time.After(c.opts.AuthTimeout):
		return errors.New("authenticate timed out")
	}
}

func (c *Client) JoinConversation(conversationID uuid.UUID) error {
	return c.emit(ws.EventJoinConversation, ws.ConversationRef{ConversationID: conversationID})
}

func (c *Client) LeaveConversation(conversationID uuid.UUID) error {
	return c.emit(ws.EventLeaveConversation, ws.ConversationRef{ConversationID: conversationID})
}

// SendMessage отрисовывает сообщение оптимистично и отправляет его на
// сервер. Возвращённая запись будет переписана на месте, когда придёт
// авторитетная рассылка new_message.
func (c *Client) SendMessage(conversationID uuid.UUID, content, kind string) (*Entry, error) {
	if kind == "" {
		kind = domain.MessageKindText
	}

	entry := c.ledger.Append(conversationID, content, kind)

	// Отправка сообщения завершает ввод
	c.notifier(conversationID).Stop()

	err := c.emit(ws.EventSendMessage, ws.SendMessagePayload{
		ConversationID: conversationID,
		Content:        content,
		Kind:           kind,
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// Keystroke регистрирует нажатие клавиши в беседе; typing_start уходит
// только на первое нажатие в окне
func (c *Client) Keystroke(conversationID uuid.UUID) {
	c.notifier(conversationID).Keystroke()
}

func (c *Client) StopTyping(conversationID uuid.UUID) {
	c.notifier(conversationID).Stop()
}

func (c *Client) Ledger() *Ledger {
	return c.ledger
}

func (c *Client) Identity() (uuid.UUID, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID, c.username, c.authed
}

// Listen читает серверные события до закрытия соединения или отмены
// контекста
func (c *Client) Listen(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var envelope ws.Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			continue
		}

		c.handle(envelope)
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) handle(envelope ws.Envelope) {
	switch envelope.Event {
	case ws.EventAuthenticated:
		var payload ws.AuthenticatedPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return
		}
		c.mu.Lock()
		c.userID = payload.UserID
		c.username = payload.Username
		c.authed = true
		c.mu.Unlock()
		select {
		case c.authResult <- nil:
		default:
		}

	case ws.EventAuthError:
		var payload ws.ErrorPayload
		_ = json.Unmarshal(envelope.Data, &payload)
		select {
		case c.authResult <- fmt.Errorf("auth error: %s", payload.Reason):
		default:
		}

	case ws.EventNewMessage:
		var message domain.Message
		if err := json.Unmarshal(envelope.Data, &message); err != nil {
			return
		}
		c.mu.Lock()
		own := c.authed && message.SenderID == c.userID
		c.mu.Unlock()

		if own {
			// Собственное сообщение: не новый элемент, а сверка
			// последней оптимистичной записи
			if entry := c.ledger.Reconcile(&message); entry != nil && c.handlers.OnReconciled != nil {
				c.handlers.OnReconciled(entry)
			}
			return
		}
		if c.handlers.OnNewMessage != nil {
			c.handlers.OnNewMessage(&message)
		}

	case ws.EventUserTyping:
		c.dispatchTyping(envelope.Data, c.handlers.OnTyping)

	case ws.EventUserStoppedTyping:
		c.dispatchTyping(envelope.Data, c.handlers.OnStoppedTyping)

	case ws.EventUserOnline:
		c.dispatchPresence(envelope.Data, c.handlers.OnUserOnline)

	case ws.EventUserOffline:
		c.dispatchPresence(envelope.Data, c.handlers.OnUserOffline)

	case ws.EventError:
		var payload ws.ErrorPayload
		_ = json.Unmarshal(envelope.Data, &payload)
		if c.handlers.OnError != nil {
			c.handlers.OnError(payload.Reason)
		}
	}
}

func (c *Client) dispatchTyping(raw json.RawMessage, handler func(ws.TypingPayload)) {
	if handler == nil {
		return
	}
	var payload ws.TypingPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	handler(payload)
}

func (c *Client) dispatchPresence(raw json.RawMessage, handler func(ws.PresencePayload)) {
	if handler == nil {
		return
	}
	var payload ws.PresencePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	handler(payload)
}

func (c *Client) notifier(conversationID uuid.UUID) *TypingNotifier {
	c.mu.Lock()
	defer c.mu.Unlock()

	notifier, ok := c.typing[conversationID]
	if !ok {
		notifier = NewTypingNotifier(c.opts.TypingDebounce,
			func() { _ = c.emit(ws.EventTypingStart, ws.ConversationRef{ConversationID: conversationID}) },
			func() { _ = c.emit(ws.EventTypingStop, ws.ConversationRef{ConversationID: conversationID}) },
		)
		c.typing[conversationID] = notifier
	}
	return notifier
}

func (c *Client) emit(event ws.EventType, payload any) error {
	frame, err := ws.Encode(event, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}
