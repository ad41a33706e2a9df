package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/websocket"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/pkg/auth"
)

// WSHandler обрабатывает WebSocket соединения
type WSHandler struct {
	hub            *websocket.Hub
	wsManager      *websocket.Manager
	tokenService   *auth.TokenService
	allowedOrigins []string
	upgrader       gorillaws.Upgrader
}

// NewWSHandler создает новый обработчик WebSocket
func NewWSHandler(
	hub *websocket.Hub,
	wsManager *websocket.Manager,
	tokenService *auth.TokenService,
	allowedOrigins []string,
) *WSHandler {
	h := &WSHandler{
		hub:            hub,
		wsManager:      wsManager,
		tokenService:   tokenService,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = gorillaws.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Пустой Origin — не браузерный клиент (мобильное приложение, curl)
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}
	log.Printf("WebSocket: rejected unauthorized origin: %s", origin)
	return false
}

// HandleConnection обрабатывает входящее WebSocket соединение.
// Аутентификация — короткоживущим тикетом в query-параметре:
// браузерный WebSocket не умеет ставить заголовок Authorization.
func (h *WSHandler) HandleConnection(c *gin.Context) {
	ticket := c.Query("ticket")
	if ticket == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Query parameter 'ticket' is required"})
		return
	}

	claims, err := h.tokenService.ParseWSTicket(ticket)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired ticket"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade сам пишет HTTP-ответ об ошибке
		log.Printf("[WSHandler] Ошибка при upgrade соединения: %v", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, claims.UserID, claims.SessionID)
	h.wsManager.ConnectClient(client)
}
