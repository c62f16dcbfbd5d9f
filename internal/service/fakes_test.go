package service

import (
	"context"
	"errors"
	"time"

	"messenger/internal/domain"

	"github.com/google/uuid"
)

// callLog фиксирует порядок обращений к репозиториям: конвейер доставки
// проверяется именно по нему
type callLog struct {
	calls []string
}

func (l *callLog) record(name string) {
	l.calls = append(l.calls, name)
}

type fakeConversationRepo struct {
	log *callLog

	conversations map[uuid.UUID]*domain.Conversation
	members       map[uuid.UUID]map[uuid.UUID]struct{}

	forcedErr error
}

func newFakeConversationRepo(log *callLog) *fakeConversationRepo {
	return &fakeConversationRepo{
		log:           log,
		conversations: make(map[uuid.UUID]*domain.Conversation),
		members:       make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

func (r *fakeConversationRepo) addConversation(conversation *domain.Conversation, memberIDs ...uuid.UUID) {
	r.conversations[conversation.ID] = conversation
	r.members[conversation.ID] = make(map[uuid.UUID]struct{})
	for _, id := range memberIDs {
		r.members[conversation.ID][id] = struct{}{}
	}
}

func (r *fakeConversationRepo) Create(ctx context.Context, conversation *domain.Conversation, participantIDs []uuid.UUID) error {
	r.log.record("Create")
	if r.forcedErr != nil {
		return r.forcedErr
	}
	r.addConversation(conversation, participantIDs...)
	return nil
}

func (r *fakeConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	conversation, ok := r.conversations[id]
	if !ok {
		return nil, errors.New("conversation not found")
	}
	return conversation, nil
}

func (r *fakeConversationRepo) GetParticipants(ctx context.Context, conversationID uuid.UUID) ([]*domain.Participant, error) {
	var participants []*domain.Participant
	for id := range r.members[conversationID] {
		participants = append(participants, &domain.Participant{UserID: id})
	}
	return participants, nil
}

func (r *fakeConversationRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Conversation, error) {
	var conversations []*domain.Conversation
	for id, members := range r.members {
		if _, ok := members[userID]; ok {
			conversations = append(conversations, r.conversations[id])
		}
	}
	return conversations, nil
}

func (r *fakeConversationRepo) FindDirectBetween(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	r.log.record("FindDirectBetween")
	if r.forcedErr != nil {
		return nil, r.forcedErr
	}
	for id, conversation := range r.conversations {
		if conversation.Type != domain.ConversationTypeDirect {
			continue
		}
		members := r.members[id]
		if len(members) != 2 {
			continue
		}
		_, hasA := members[userA]
		_, hasB := members[userB]
		if hasA && hasB {
			return conversation, nil
		}
	}
	return nil, nil
}

func (r *fakeConversationRepo) IsParticipant(ctx context.Context, userID, conversationID uuid.UUID) (bool, error) {
	r.log.record("IsParticipant")
	if r.forcedErr != nil {
		return false, r.forcedErr
	}
	_, ok := r.members[conversationID][userID]
	return ok, nil
}

func (r *fakeConversationRepo) ListMemberships(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, members := range r.members {
		if _, ok := members[userID]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *fakeConversationRepo) RemoveParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	r.log.record("RemoveParticipant")
	delete(r.members[conversationID], userID)
	return nil
}

func (r *fakeConversationRepo) Delete(ctx context.Context, conversationID uuid.UUID) error {
	r.log.record("Delete")
	delete(r.conversations, conversationID)
	delete(r.members, conversationID)
	return nil
}

type fakeMessageRepo struct {
	log *callLog

	messages  []*domain.Message
	nextID    int64
	usernames map[uuid.UUID]string

	lastLimit  int
	lastOffset int

	insertErr error
}

func newFakeMessageRepo(log *callLog) *fakeMessageRepo {
	return &fakeMessageRepo{
		log:       log,
		nextID:    1,
		usernames: make(map[uuid.UUID]string),
	}
}

func (r *fakeMessageRepo) Insert(ctx context.Context, message *domain.Message) error {
	r.log.record("Insert")
	if r.insertErr != nil {
		return r.insertErr
	}

	message.ID = r.nextID
	message.CreatedAt = time.Now()
	r.nextID++

	stored := *message
	r.messages = append(r.messages, &stored)
	return nil
}

func (r *fakeMessageRepo) GetWithSender(ctx context.Context, messageID int64) (*domain.Message, error) {
	r.log.record("GetWithSender")
	for _, stored := range r.messages {
		if stored.ID == messageID {
			hydrated := *stored
			hydrated.SenderUsername = r.usernames[stored.SenderID]
			return &hydrated, nil
		}
	}
	return nil, errors.New("message not found")
}

func (r *fakeMessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error) {
	r.log.record("ListByConversation")
	r.lastLimit = limit
	r.lastOffset = offset

	var all []*domain.Message
	for _, message := range r.messages {
		if message.ConversationID == conversationID {
			all = append(all, message)
		}
	}

	// Страница отсчитывается от самых новых, отдаётся от старых к новым
	end := len(all) - offset
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	return all[start:end], nil
}

type fakeUserRepo struct {
	users    map[uuid.UUID]*domain.User
	sessions map[uuid.UUID]*domain.UserSession
	statuses map[uuid.UUID]string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:    make(map[uuid.UUID]*domain.User),
		sessions: make(map[uuid.UUID]*domain.UserSession),
		statuses: make(map[uuid.UUID]string),
	}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	for _, existing := range r.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return errors.New("user with this email or username already exists")
		}
	}
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmailOrUsername(ctx context.Context, identifier string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Email == identifier || user.Username == identifier {
			copied := *user
			return &copied, nil
		}
	}
	return nil, errors.New("user not found")
}

func (r *fakeUserRepo) List(ctx context.Context, excludeID uuid.UUID) ([]*domain.User, error) {
	var users []*domain.User
	for id, user := range r.users {
		if id == excludeID {
			continue
		}
		copied := *user
		users = append(users, &copied)
	}
	return users, nil
}

func (r *fakeUserRepo) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	r.statuses[id] = status
	if user, ok := r.users[id]; ok {
		user.Status = status
	}
	return nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *domain.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return errors.New("user not found")
	}
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) CreateSession(ctx context.Context, session *domain.UserSession) error {
	stored := *session
	r.sessions[session.ID] = &stored
	return nil
}

func (r *fakeUserRepo) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.UserSession, error) {
	for _, session := range r.sessions {
		if session.RefreshTokenHash != tokenHash {
			continue
		}
		if session.RevokedAt != nil || session.ExpiresAt.Before(time.Now()) {
			continue
		}
		copied := *session
		return &copied, nil
	}
	return nil, errors.New("session not found")
}

func (r *fakeUserRepo) RevokeSession(ctx context.Context, sessionID uuid.UUID, reason string) error {
	session, ok := r.sessions[sessionID]
	if !ok {
		return errors.New("session not found")
	}
	now := time.Now()
	session.RevokedAt = &now
	session.RevokedReason = &reason
	return nil
}
