package websocket

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время, которое разрешено писать сообщение клиенту.
	writeWait = 10 * time.Second

	// Время, которое разрешено клиенту читать следующее сообщение.
	pongWait = 30 * time.Second

	// Периодичность отправки ping-сообщений клиенту.
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего сообщения
	maxMessageSize = 512

	// Размер буфера канала исходящих сообщений клиента
	clientBufferSize = 128
)

// Client является посредником между WebSocket соединением и hub
type Client struct {
	// Уникальный ID соединения (у одного игрока их может быть несколько)
	ConnectionID string

	// Идентификаторы из WS-тикета
	UserID    uint
	SessionID uint

	hub  *Hub
	conn *websocket.Conn

	// Буферизованный канал для исходящих сообщений
	send chan []byte
}

// NewClient создает клиента для принятого соединения
func NewClient(hub *Hub, conn *websocket.Conn, userID uint, sessionID uint) *Client {
	return &Client{
		ConnectionID: uuid.New().String(),
		UserID:       userID,
		SessionID:    sessionID,
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, clientBufferSize),
	}
}

// StartPumps регистрирует клиента и запускает горутины чтения и записи
func (c *Client) StartPumps() {
	c.hub.register <- c
	go c.writePump()
	go c.readPump()
}

// readPump читает сообщения из WebSocket соединения.
// Входящих команд по WS нет (все мутации идут через HTTP API),
// но pump нужен для обработки pong и обнаружения разрыва.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WSClient] Соединение %s закрыто с ошибкой: %v", c.ConnectionID, err)
			}
			return
		}
	}
}

// writePump пишет сообщения из канала send в WebSocket соединение
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
