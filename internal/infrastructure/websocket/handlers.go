package websocket

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"slot-auction/internal/domain"
	"slot-auction/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// WebSocketHandler upgrades gateway subscriptions. Clients only receive
// notifications; bids are placed over the HTTP API.
type WebSocketHandler struct {
	reader      domain.LedgerReader
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewWebSocketHandler(reader domain.LedgerReader, connManager domain.ConnectionManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		reader:      reader,
		connManager: connManager,
		log:         log,
	}
}

// HandleSessionConnection subscribes to /ws/sessions/{sessionID}.
func (h *WebSocketHandler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]

	session, err := h.reader.GetSession(r.Context(), sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		http.Error(w, "auction session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("Failed to load auction session", "session_id", sessionID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if session.Status.Terminal() {
		h.log.Info("Rejected connection - auction session is over", "session_id", sessionID, "status", session.Status)
		http.Error(w, "auction session is over", http.StatusForbidden)
		return
	}

	h.serve(w, r, domain.SessionTopic(sessionID))
}

// HandleSlotConnection subscribes to /ws/slots/{slotID} for sessionless bidding.
func (h *WebSocketHandler) HandleSlotConnection(w http.ResponseWriter, r *http.Request) {
	slotID, err := strconv.ParseInt(mux.Vars(r)["slotID"], 10, 64)
	if err != nil {
		http.Error(w, "invalid slot id", http.StatusBadRequest)
		return
	}

	if _, err := h.reader.GetSlot(r.Context(), slotID); err != nil {
		if errors.Is(err, domain.ErrSlotNotFound) {
			http.Error(w, "slot not found", http.StatusNotFound)
			return
		}
		h.log.Error("Failed to load slot", "slot_id", slotID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.serve(w, r, domain.SlotTopic(slotID))
}

func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, topic string) {
	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		http.Error(w, "company_id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewWebSocketConnection(conn, companyID, topic)
	if err := h.connManager.RegisterConnection(companyID, topic, wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		_ = wsConn.Close()
		return
	}

	go wsConn.keepAlive()
	go h.handleMessages(wsConn)
}

func (h *WebSocketHandler) handleMessages(conn *WebSocketConnection) {
	defer func() {
		_ = h.connManager.UnregisterConnection(conn)
		_ = conn.Close()
	}()

	conn.conn.SetReadLimit(4096)
	_ = conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg map[string]interface{}
		if err := conn.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Connection closed unexpectedly", "company_id", conn.CompanyID(), "topic", conn.Topic(), "error", err)
			}
			return
		}

		if msgType, _ := msg["type"].(string); msgType == "ping" {
			if err := conn.SendJSON(map[string]string{"type": "pong"}); err != nil {
				return
			}
		}
	}
}

// WebSocketConnection serializes writes to one gorilla connection.
type WebSocketConnection struct {
	conn      *websocket.Conn
	companyID string
	topic     string

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func NewWebSocketConnection(conn *websocket.Conn, companyID, topic string) *WebSocketConnection {
	return &WebSocketConnection{
		conn:      conn,
		companyID: companyID,
		topic:     topic,
		done:      make(chan struct{}),
	}
}

func (wsc *WebSocketConnection) Send(payload []byte) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()
	_ = wsc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return wsc.conn.WriteMessage(websocket.TextMessage, payload)
}

func (wsc *WebSocketConnection) SendJSON(message interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()
	_ = wsc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return wsc.conn.WriteJSON(message)
}

func (wsc *WebSocketConnection) Close() error {
	var err error
	wsc.closeOnce.Do(func() {
		close(wsc.done)
		err = wsc.conn.Close()
	})
	return err
}

func (wsc *WebSocketConnection) CompanyID() string {
	return wsc.companyID
}

func (wsc *WebSocketConnection) Topic() string {
	return wsc.topic
}

func (wsc *WebSocketConnection) keepAlive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			wsc.writeMu.Lock()
			err := wsc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			wsc.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-wsc.done:
			return
		}
	}
}
