package websocket

import (
	"encoding/json"
	"sync"

	"slot-auction/internal/domain"
	"slot-auction/pkg/logger"
)

type ConnectionManager struct {
	connections  map[string]map[string]domain.WebSocketConnection // topic -> companyID -> connection
	companyConns map[string][]domain.WebSocketConnection          // companyID -> connections
	mutex        sync.RWMutex
	log          logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections:  make(map[string]map[string]domain.WebSocketConnection),
		companyConns: make(map[string][]domain.WebSocketConnection),
		log:          log,
	}
}

// RegisterConnection replaces any earlier connection of the company on the
// same topic; the replaced connection is closed.
func (cm *ConnectionManager) RegisterConnection(companyID, topic string, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.connections[topic] == nil {
		cm.connections[topic] = make(map[string]domain.WebSocketConnection)
	}
	if previous, exists := cm.connections[topic][companyID]; exists && previous != conn {
		cm.removeCompanyConn(companyID, topic)
		if err := previous.Close(); err != nil {
			cm.log.Warn("Failed to close replaced connection", "company_id", companyID, "topic", topic, "error", err)
		}
	}
	cm.connections[topic][companyID] = conn
	cm.companyConns[companyID] = append(cm.companyConns[companyID], conn)

	cm.log.Info("Connection registered", "company_id", companyID, "topic", topic)
	return nil
}

// UnregisterConnection removes conn. It is a no-op when conn has already been
// replaced by a newer connection of the same company on its topic.
func (cm *ConnectionManager) UnregisterConnection(conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	companyID, topic := conn.CompanyID(), conn.Topic()
	topicConns, exists := cm.connections[topic]
	if !exists || topicConns[companyID] != conn {
		return nil
	}
	delete(topicConns, companyID)
	if len(topicConns) == 0 {
		delete(cm.connections, topic)
	}
	cm.removeCompanyConn(companyID, topic)

	cm.log.Info("Connection unregistered", "company_id", companyID, "topic", topic)
	return nil
}

// removeCompanyConn must be called with the mutex held.
func (cm *ConnectionManager) removeCompanyConn(companyID, topic string) {
	companyConnections, exists := cm.companyConns[companyID]
	if !exists {
		return
	}

	var remaining []domain.WebSocketConnection
	for _, existing := range companyConnections {
		if existing.Topic() != topic {
			remaining = append(remaining, existing)
		}
	}
	if len(remaining) == 0 {
		delete(cm.companyConns, companyID)
	} else {
		cm.companyConns[companyID] = remaining
	}
}

func (cm *ConnectionManager) CloseAndUnregisterConnections(topic string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if topicConns, exists := cm.connections[topic]; exists {
		for companyID, conn := range topicConns {
			if err := conn.Close(); err != nil {
				cm.log.Error("Failed to close connection", "company_id", companyID, "topic", topic, "error", err)
			}
			cm.removeCompanyConn(companyID, topic)
		}
		delete(cm.connections, topic)
	}

	cm.log.Info("Connections closed for topic", "topic", topic)
	return nil
}

func (cm *ConnectionManager) GetConnectionsForTopic(topic string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var connections []domain.WebSocketConnection
	for _, conn := range cm.connections[topic] {
		connections = append(connections, conn)
	}
	return connections
}

func (cm *ConnectionManager) GetConnectionsForCompany(companyID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	return append([]domain.WebSocketConnection(nil), cm.companyConns[companyID]...)
}

func (cm *ConnectionManager) allConnections() []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var connections []domain.WebSocketConnection
	for _, topicConns := range cm.connections {
		for _, conn := range topicConns {
			connections = append(connections, conn)
		}
	}
	return connections
}

func (cm *ConnectionManager) BroadcastToTopic(topic string, message interface{}) error {
	connections := cm.GetConnectionsForTopic(topic)
	cm.log.Debug("Broadcasting to topic", "topic", topic, "connections", len(connections))
	return cm.send(connections, message)
}

func (cm *ConnectionManager) BroadcastToAll(message interface{}) error {
	return cm.send(cm.allConnections(), message)
}

func (cm *ConnectionManager) NotifyCompany(companyID string, message interface{}) error {
	return cm.send(cm.GetConnectionsForCompany(companyID), message)
}

// send marshals once and writes to every connection. A failed write is logged
// and does not stop delivery to the others.
func (cm *ConnectionManager) send(connections []domain.WebSocketConnection, message interface{}) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	for _, conn := range connections {
		if err := conn.Send(messageBytes); err != nil {
			cm.log.Error("Failed to send message", "company_id", conn.CompanyID(), "topic", conn.Topic(), "error", err)
		}
	}
	return nil
}
