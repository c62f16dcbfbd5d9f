package handler

import (
	"net/http"

	"messenger/internal/config"
	"messenger/internal/service"
	"messenger/internal/ws"
	"messenger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // В продакшене нужно проверять origin
	},
}

type WebSocketHandler struct {
	hub      *ws.Hub
	services *service.Services
	cfg      config.ChatConfig
	log      logger.Logger
}

func NewWebSocketHandler(hub *ws.Hub, services *service.Services, cfg config.ChatConfig, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		services: services,
		cfg:      cfg,
		log:      log,
	}
}

// Handle поднимает websocket-соединение. Аутентификация происходит не при
// рукопожатии, а первым событием authenticate внутри соединения.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := ws.NewClient(h.hub, conn, h.services, h.cfg, h.log)
	h.hub.Register(client)
	client.Run()
}
