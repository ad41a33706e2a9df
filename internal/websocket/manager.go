package websocket

import (
	"encoding/json"
	"fmt"
	"log"
)

// Manager — фасад WebSocket-слоя для сервисов: сериализует события и
// отдает их hub для рассылки по комнате сессии
type Manager struct {
	hub *Hub
}

// NewManager создает менеджер поверх hub
func NewManager(hub *Hub) *Manager {
	return &Manager{hub: hub}
}

// BroadcastToSession рассылает событие всем клиентам сессии.
// Реализует интерфейс рассылки, который ожидают сервисы.
func (m *Manager) BroadcastToSession(sessionID uint, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event for session #%d: %w", sessionID, err)
	}
	m.hub.BroadcastBytes(sessionID, payload)
	return nil
}

// ConnectClient регистрирует принятое соединение в комнате сессии
func (m *Manager) ConnectClient(client *Client) {
	client.StartPumps()
	log.Printf("[WSManager] Клиент %s зарегистрирован в сессии #%d", client.ConnectionID, client.SessionID)
}

// SessionConnections возвращает количество соединений в комнате
func (m *Manager) SessionConnections(sessionID uint) int {
	return m.hub.RoomSize(sessionID)
}
