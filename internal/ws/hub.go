package ws

import (
	"sync"

	"messenger/pkg/logger"

	"github.com/google/uuid"
)

// Hub владеет всем разделяемым состоянием realtime-подсистемы:
// множеством живых соединений, подписками на комнаты и presence-счётчиками.
// Всё состояние меняется только под одним мьютексом; хендлеры соединений
// никогда не трогают карты напрямую.
type Hub struct {
	mu sync.RWMutex

	connections map[*Client]struct{}
	rooms       map[uuid.UUID]map[*Client]struct{}
	presence    map[uuid.UUID]int

	log logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		connections: make(map[*Client]struct{}),
		rooms:       make(map[uuid.UUID]map[*Client]struct{}),
		presence:    make(map[uuid.UUID]int),
		log:         log,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = struct{}{}
}

// MarkAuthenticated учитывает соединение в presence-счётчике своей identity.
// Вызывается ровно один раз после успешного authenticate.
func (h *Hub) MarkAuthenticated(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.presence[c.userID]++
}

// Unregister снимает соединение со всех комнат и, если оно было
// аутентифицировано, уменьшает presence-счётчик. Возвращает true, если
// у identity не осталось живых соединений.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.connections[c]; !ok {
		return false
	}
	delete(h.connections, c)

	for roomID, members := range h.rooms {
		if _, ok := members[c]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}

	close(c.send)

	if !c.authenticated {
		return false
	}

	h.presence[c.userID]--
	if h.presence[c.userID] <= 0 {
		delete(h.presence, c.userID)
		return true
	}
	return false
}

// Join идемпотентно подписывает соединение на комнату беседы.
// Проверки членства здесь нет: контроль доступа выполняется на операциях.
func (h *Hub) Join(c *Client, conversationID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.connections[c]; !ok {
		return
	}

	members, ok := h.rooms[conversationID]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[conversationID] = members
	}
	members[c] = struct{}{}
}

func (h *Hub) Leave(c *Client, conversationID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, conversationID)
	}
}

// BroadcastToRoom доставляет кадр всем подписчикам комнаты, включая
// собственные соединения отправителя: его UI сверяет оптимистичное
// сообщение именно по этой рассылке. Пустая комната - тихий no-op.
func (h *Hub) BroadcastToRoom(conversationID uuid.UUID, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[conversationID] {
		c.enqueue(frame)
	}
}

// BroadcastToRoomExcept - то же, но без соединения-отправителя (typing-сигналы)
func (h *Hub) BroadcastToRoomExcept(conversationID uuid.UUID, frame []byte, except *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[conversationID] {
		if c == except {
			continue
		}
		c.enqueue(frame)
	}
}

// BroadcastToOthers доставляет кадр всем соединениям, кроме указанного
// (presence-события)
func (h *Hub) BroadcastToOthers(frame []byte, except *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.connections {
		if c == except {
			continue
		}
		c.enqueue(frame)
	}
}

func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.presence[userID] > 0
}

func (h *Hub) OnlineUsers() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]uuid.UUID, 0, len(h.presence))
	for id := range h.presence {
		users = append(users, id)
	}
	return users
}

// RoomSize сообщает число подписанных на комнату соединений
func (h *Hub) RoomSize(conversationID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}
