package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"slot-auction/internal/domain"
	"slot-auction/internal/infrastructure/websocket"
	"slot-auction/pkg/logger"
)

type WebSocketHandlers struct {
	wsHandler *websocket.WebSocketHandler
}

func NewWebSocketHandlers(reader domain.LedgerReader, connManager domain.ConnectionManager, log logger.Logger) *WebSocketHandlers {
	return &WebSocketHandlers{
		wsHandler: websocket.NewWebSocketHandler(reader, connManager, log),
	}
}

// Register mounts the gateway subscription routes on r.
func (h *WebSocketHandlers) Register(r *mux.Router) {
	r.HandleFunc("/ws/sessions/{sessionID}", h.HandleSessionConnection).Methods(http.MethodGet)
	r.HandleFunc("/ws/slots/{slotID}", h.HandleSlotConnection).Methods(http.MethodGet)
}

func (h *WebSocketHandlers) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	h.wsHandler.HandleSessionConnection(w, r)
}

func (h *WebSocketHandlers) HandleSlotConnection(w http.ResponseWriter, r *http.Request) {
	h.wsHandler.HandleSlotConnection(w, r)
}
