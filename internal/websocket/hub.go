package websocket

import (
	"log"
	"sync"
)

// Hub держит активные соединения, сгруппированные по сессиям, и рассылает
// события комнаты. Доставка — best effort: клиент с переполненным буфером
// отключается и после переподключения догоняет состояние через снапшот.
type Hub struct {
	// Комнаты: sessionID → множество клиентов
	rooms map[uint]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan roomMessage

	mu sync.RWMutex

	done chan struct{}
}

type roomMessage struct {
	sessionID uint
	payload   []byte
}

// NewHub создает новый hub
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uint]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run запускает главный цикл hub. Вызывается в отдельной горутине.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Shutdown останавливает цикл hub и закрывает все соединения
func (h *Hub) Shutdown() {
	close(h.done)
}

// BroadcastBytes рассылает готовый payload всем клиентам комнаты
func (h *Hub) BroadcastBytes(sessionID uint, payload []byte) {
	select {
	case h.broadcast <- roomMessage{sessionID: sessionID, payload: payload}:
	case <-h.done:
	}
}

// RoomSize возвращает количество соединений в комнате сессии
func (h *Hub) RoomSize(sessionID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[client.SessionID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[client.SessionID] = room
	}
	room[client] = struct{}{}
	log.Printf("[Hub] Клиент %s (user %d) подключен к сессии #%d, в комнате %d соединений",
		client.ConnectionID, client.UserID, client.SessionID, len(room))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[client.SessionID]
	if !ok {
		return
	}
	if _, ok := room[client]; !ok {
		return
	}
	delete(room, client)
	close(client.send)
	if len(room) == 0 {
		delete(h.rooms, client.SessionID)
	}
	log.Printf("[Hub] Клиент %s отключен от сессии #%d", client.ConnectionID, client.SessionID)
}

func (h *Hub) deliver(msg roomMessage) {
	h.mu.RLock()
	room := h.rooms[msg.sessionID]
	slow := make([]*Client, 0)
	for client := range room {
		select {
		case client.send <- msg.payload:
		default:
			// Переполненный буфер: клиент не успевает, отключаем
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		log.Printf("[Hub] Буфер клиента %s переполнен, соединение закрывается", client.ConnectionID)
		h.removeClientLocked(client)
	}
}

func (h *Hub) removeClientLocked(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[client.SessionID]
	if !ok {
		return
	}
	if _, ok := room[client]; !ok {
		return
	}
	delete(room, client)
	close(client.send)
	client.conn.Close()
	if len(room) == 0 {
		delete(h.rooms, client.SessionID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sessionID, room := range h.rooms {
		for client := range room {
			close(client.send)
			client.conn.Close()
		}
		delete(h.rooms, sessionID)
	}
	log.Println("[Hub] Все соединения закрыты")
}
