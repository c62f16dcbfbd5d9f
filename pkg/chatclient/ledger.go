package chatclient

import (
	"sync"
	"time"

	"messenger/internal/domain"

	"github.com/google/uuid"
)

// Status - воспринимаемый отправителем прогресс собственного сообщения.
// Вычисляется локально по возрасту авторитетного created_at, без
// подтверждений от получателей, и никогда не движется назад.
type Status int

const (
	StatusSent Status = iota
	StatusDelivered
	StatusRead
)

func (s Status) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusRead:
		return "read"
	default:
		return "sent"
	}
}

// Entry - одно собственное сообщение в локальном представлении клиента.
// До подтверждения несёт временный отрицательный LocalID и нулевой
// CreatedAt; после - авторитетные MessageID и CreatedAt из рассылки.
type Entry struct {
	LocalID        int64
	MessageID      int64
	ConversationID uuid.UUID
	Content        string
	Kind           string
	CreatedAt      time.Time
	Confirmed      bool

	status Status
}

// Ledger ведёт оптимистично отрисованные сообщения и их сверку с
// серверными рассылками. Предполагается не более одного неподтверждённого
// сообщения за раз: сопоставление позиционное, по последней ожидающей
// записи, без сравнения содержимого.
type Ledger struct {
	mu sync.Mutex

	deliveredAfter time.Duration
	readAfter      time.Duration

	nextLocalID int64
	entries     []*Entry

	now func() time.Time
}

func NewLedger(deliveredAfter, readAfter time.Duration) *Ledger {
	return &Ledger{
		deliveredAfter: deliveredAfter,
		readAfter:      readAfter,
		nextLocalID:    -1,
		now:            time.Now,
	}
}

// Append создаёт оптимистичную запись: она отрисовывается сразу,
// до какого-либо ответа сервера
func (l *Ledger) Append(conversationID uuid.UUID, content, kind string) *Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := &Entry{
		LocalID:        l.nextLocalID,
		ConversationID: conversationID,
		Content:        content,
		Kind:           kind,
		status:         StatusSent,
	}
	l.nextLocalID--
	l.entries = append(l.entries, entry)

	return entry
}

// Reconcile сверяет авторитетную рассылку собственного сообщения с
// локальной записью: последняя ещё не подтверждённая запись переписывается
// на месте - идентификатор и отметка времени заменяются серверными.
// Новая запись не создаётся никогда. Возвращает nil, если ожидающих нет
// (например, рассылка пришла на другое устройство отправителя).
func (l *Ledger) Reconcile(message *domain.Message) *Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := len(l.entries) - 1; i >= 0; i-- {
		entry := l.entries[i]
		if entry.Confirmed || entry.ConversationID != message.ConversationID {
			continue
		}

		entry.MessageID = message.ID
		entry.CreatedAt = message.CreatedAt
		entry.Confirmed = true
		return entry
	}

	return nil
}

// Status пересчитывает статус записи по возрасту сообщения.
// Результат монотонный: однажды достигнутый статус не понижается,
// даже если часы ушли назад.
func (l *Ledger) Status(entry *Entry) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !entry.Confirmed {
		return entry.status
	}

	age := l.now().Sub(entry.CreatedAt)

	var computed Status
	switch {
	case age < l.deliveredAfter:
		computed = StatusSent
	case age < l.readAfter:
		computed = StatusDelivered
	default:
		computed = StatusRead
	}

	if computed > entry.status {
		entry.status = computed
	}
	return entry.status
}

// Entries - снимок записей беседы в порядке отправки
func (l *Ledger) Entries(conversationID uuid.UUID) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var snapshot []Entry
	for _, entry := range l.entries {
		if entry.ConversationID == conversationID {
			snapshot = append(snapshot, *entry)
		}
	}
	return snapshot
}

// Pending сообщает число ещё не подтверждённых записей беседы
func (l *Ledger) Pending(conversationID uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, entry := range l.entries {
		if !entry.Confirmed && entry.ConversationID == conversationID {
			count++
		}
	}
	return count
}
