package chatclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"messenger/internal/domain"
	"messenger/internal/ws"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedServer отвечает на клиентскую половину протокола каноническими
// серверными кадрами, без хаба и хранилища
type scriptedServer struct {
	url    string
	userID uuid.UUID

	typingEvents chan ws.EventType
}

func newScriptedServer(t *testing.T) *scriptedServer {
	t.Helper()

	s := &scriptedServer{
		userID:       uuid.New(),
		typingEvents: make(chan ws.EventType, 16),
	}

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		nextID := int64(0)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var envelope ws.Envelope
			if json.Unmarshal(raw, &envelope) != nil {
				continue
			}

			switch envelope.Event {
			case ws.EventAuthenticate:
				var payload ws.AuthenticatePayload
				_ = json.Unmarshal(envelope.Data, &payload)
				if payload.Token != "good-token" {
					s.reply(conn, ws.EventAuthError, ws.ErrorPayload{Reason: "invalid token"})
					continue
				}
				s.reply(conn, ws.EventAuthenticated, ws.AuthenticatedPayload{UserID: s.userID, Username: "alice"})

			case ws.EventSendMessage:
				var payload ws.SendMessagePayload
				_ = json.Unmarshal(envelope.Data, &payload)
				nextID++
				s.reply(conn, ws.EventNewMessage, domain.Message{
					ID:             nextID,
					ConversationID: payload.ConversationID,
					SenderID:       s.userID,
					SenderUsername: "alice",
					Content:        payload.Content,
					Kind:           domain.MessageKindText,
					CreatedAt:      time.Now(),
				})

			case ws.EventTypingStart, ws.EventTypingStop:
				s.typingEvents <- envelope.Event
			}
		}
	}))
	t.Cleanup(srv.Close)

	s.url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return s
}

func (s *scriptedServer) reply(conn *websocket.Conn, event ws.EventType, payload any) {
	frame, err := ws.Encode(event, payload)
	if err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, frame)
}

func dialClient(t *testing.T, s *scriptedServer, handlers Handlers, opts Options) *Client {
	t.Helper()

	client, err := Dial(context.Background(), s.url, handlers, opts)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = client.Listen(ctx) }()

	return client
}

func TestClientAuthenticate(t *testing.T) {
	server := newScriptedServer(t)
	client := dialClient(t, server, Handlers{}, Options{})

	require.NoError(t, client.Authenticate("good-token"))

	userID, username, authed := client.Identity()
	assert.True(t, authed)
	assert.Equal(t, server.userID, userID)
	assert.Equal(t, "alice", username)
}

func TestClientAuthenticateRejected(t *testing.T) {
	server := newScriptedServer(t)
	client := dialClient(t, server, Handlers{}, Options{AuthTimeout: 2 * time.Second})

	err := client.Authenticate("bad-token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth error")

	_, _, authed := client.Identity()
	assert.False(t, authed)
}

func TestClientSendMessageReconciles(t *testing.T) {
	server := newScriptedServer(t)

	reconciled := make(chan *Entry, 1)
	client := dialClient(t, server, Handlers{
		OnReconciled: func(entry *Entry) { reconciled <- entry },
	}, Options{})

	require.NoError(t, client.Authenticate("good-token"))

	conversationID := uuid.New()
	entry, err := client.SendMessage(conversationID, "hello", "")
	require.NoError(t, err)
	assert.False(t, entry.Confirmed)
	assert.Equal(t, 1, client.Ledger().Pending(conversationID))

	select {
	case confirmed := <-reconciled:
		// Та же запись переписана серверными id и created_at
		assert.Same(t, entry, confirmed)
		assert.True(t, confirmed.Confirmed)
		assert.Equal(t, int64(1), confirmed.MessageID)
		assert.False(t, confirmed.CreatedAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("reconciliation did not arrive")
	}

	assert.Equal(t, 0, client.Ledger().Pending(conversationID))
	assert.Len(t, client.Ledger().Entries(conversationID), 1)
}

func TestClientForeignMessageIsNotReconciled(t *testing.T) {
	server := newScriptedServer(t)

	// Сервер в этом тесте шлёт сообщение от чужого имени: identity клиента
	// ещё не привязана, рассылка должна пойти в OnNewMessage
	incoming := make(chan *domain.Message, 1)
	client := dialClient(t, server, Handlers{
		OnNewMessage: func(message *domain.Message) { incoming <- message },
	}, Options{})

	conversationID := uuid.New()
	_, err := client.SendMessage(conversationID, "hello", "")
	require.NoError(t, err)

	select {
	case message := <-incoming:
		assert.Equal(t, "hello", message.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("message did not arrive")
	}

	// Оптимистичная запись осталась неподтверждённой
	assert.Equal(t, 1, client.Ledger().Pending(conversationID))
}

func TestClientTypingDebounceOnWire(t *testing.T) {
	server := newScriptedServer(t)
	client := dialClient(t, server, Handlers{}, Options{TypingDebounce: time.Minute})

	require.NoError(t, client.Authenticate("good-token"))

	conversationID := uuid.New()
	for i := 0; i < 5; i++ {
		client.Keystroke(conversationID)
	}

	select {
	case event := <-server.typingEvents:
		assert.Equal(t, ws.EventTypingStart, event)
	case <-time.After(2 * time.Second):
		t.Fatal("typing_start did not arrive")
	}

	// Отправка сообщения завершает ввод
	_, err := client.SendMessage(conversationID, "done", "")
	require.NoError(t, err)

	select {
	case event := <-server.typingEvents:
		assert.Equal(t, ws.EventTypingStop, event)
	case <-time.After(2 * time.Second):
		t.Fatal("typing_stop did not arrive")
	}

	// Лишних typing-кадров за серию нажатий не было
	select {
	case event := <-server.typingEvents:
		t.Fatalf("unexpected extra typing event %s", event)
	case <-time.After(200 * time.Millisecond):
	}
}
