package handler

import (
	"bytes"
	"context"
	"encoding/json"
	goerrors "errors"
	"net/http/httptest"
	"testing"

	"messenger/internal/domain"
	"messenger/internal/middleware"
	"messenger/internal/service"
	"messenger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Стабы сервисного слоя для HTTP-тестов: каждый тест задаёт канонический
// ответ, хендлеры проверяются на статусы и формат тела.

type stubAuthService struct {
	registerResp *service.LoginResponse
	registerErr  error
	loginResp    *service.LoginResponse
	loginErr     error
	tokens       map[string]*domain.User
	logoutErr    error
}

func (s *stubAuthService) Register(ctx context.Context, username, email, password string) (*service.LoginResponse, error) {
	return s.registerResp, s.registerErr
}

func (s *stubAuthService) Login(ctx context.Context, identifier, password string) (*service.LoginResponse, error) {
	return s.loginResp, s.loginErr
}

func (s *stubAuthService) RefreshToken(ctx context.Context, refreshToken string) (*service.TokenResponse, error) {
	return nil, goerrors.New("not implemented")
}

func (s *stubAuthService) ValidateToken(ctx context.Context, tokenString string) (*domain.User, error) {
	user, ok := s.tokens[tokenString]
	if !ok {
		return nil, goerrors.New("invalid token")
	}
	return user, nil
}

func (s *stubAuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.logoutErr
}

type stubConversationService struct {
	createConv     *domain.Conversation
	createExisting bool
	createErr      error
	getConv        *domain.Conversation
	getErr         error
	list           []*domain.Conversation
	deleteErr      error
	leaveErr       error
}

func (s *stubConversationService) Create(ctx context.Context, createdBy uuid.UUID, input service.CreateConversationInput) (*domain.Conversation, bool, error) {
	return s.createConv, s.createExisting, s.createErr
}

func (s *stubConversationService) Get(ctx context.Context, userID, conversationID uuid.UUID) (*domain.Conversation, error) {
	return s.getConv, s.getErr
}

func (s *stubConversationService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Conversation, error) {
	return s.list, nil
}

func (s *stubConversationService) Memberships(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (s *stubConversationService) Delete(ctx context.Context, userID, conversationID uuid.UUID) error {
	return s.deleteErr
}

func (s *stubConversationService) Leave(ctx context.Context, userID, conversationID uuid.UUID) error {
	return s.leaveErr
}

type stubMessageService struct {
	history    []*domain.Message
	historyErr error
}

func (s *stubMessageService) Send(ctx context.Context, senderID uuid.UUID, input service.SendMessageInput) (*domain.Message, error) {
	return nil, goerrors.New("not implemented")
}

func (s *stubMessageService) History(ctx context.Context, userID, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error) {
	return s.history, s.historyErr
}

type routerFixture struct {
	auth         *stubAuthService
	conversation *stubConversationService
	message      *stubMessageService
	router       *gin.Engine
	user         *domain.User
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	user := &domain.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com"}

	auth := &stubAuthService{tokens: map[string]*domain.User{"valid-token": user}}
	conversation := &stubConversationService{}
	message := &stubMessageService{}

	log := logger.Nop()
	authHandler := NewAuthHandler(auth, log)
	conversationHandler := NewConversationHandler(conversation, message, log)
	authMiddleware := middleware.NewAuthMiddleware(auth, log)

	router := gin.New()
	api := router.Group("/api/v1")
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)

	protected := api.Group("", authMiddleware.RequireAuth())
	protected.POST("/conversations", conversationHandler.Create)
	protected.GET("/conversations", conversationHandler.List)
	protected.GET("/conversations/:id", conversationHandler.GetByID)
	protected.GET("/conversations/:id/messages", conversationHandler.GetMessages)
	protected.DELETE("/conversations/:id", conversationHandler.Delete)
	protected.POST("/conversations/:id/leave", conversationHandler.Leave)

	return &routerFixture{
		auth:         auth,
		conversation: conversation,
		message:      message,
		router:       router,
		user:         user,
	}
}

func (f *routerFixture) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
