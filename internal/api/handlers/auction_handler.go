package handlers

//go:generate mockgen -source=auction_handler.go -destination=mock_auction_api.go -package=handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"slot-auction/internal/domain"
	"slot-auction/internal/services"
	"slot-auction/pkg/logger"
)

// AuctionAPI is the command/query surface the HTTP layer drives.
type AuctionAPI interface {
	PlaceBid(ctx context.Context, req services.PlaceBidRequest) (*domain.Bid, error)
	WithdrawBid(ctx context.Context, bidID string) (*domain.Bid, error)
	AcceptBid(ctx context.Context, bidID string) (*domain.Bid, error)
	RejectBid(ctx context.Context, bidID string) (*domain.Bid, error)
	GetBid(ctx context.Context, bidID string) (*domain.Bid, error)
	ListBids(ctx context.Context, slotID int64, status domain.BidStatus) ([]*domain.Bid, error)

	CreateSession(ctx context.Context, req services.CreateSessionRequest) (*domain.AuctionSession, error)
	StartSession(ctx context.Context, sessionID string) (*domain.AuctionSession, error)
	PauseSession(ctx context.Context, sessionID string) (*domain.AuctionSession, error)
	ResumeSession(ctx context.Context, sessionID string) (*domain.AuctionSession, error)
	EndSession(ctx context.Context, sessionID string) (*domain.AuctionSession, error)
	ExtendSession(ctx context.Context, sessionID string, duration time.Duration) (*domain.AuctionSession, error)
	CancelSession(ctx context.Context, sessionID string) (*domain.AuctionSession, error)
	GetSession(ctx context.Context, sessionID string) (*domain.AuctionSession, error)
	ListSessions(ctx context.Context, status domain.SessionStatus) ([]*domain.AuctionSession, error)
	Winners(ctx context.Context, sessionID string) ([]domain.Winner, error)
	ListNotifications(ctx context.Context, sessionID string, limit int) ([]*domain.Notification, error)

	ProvisionSlot(ctx context.Context, req services.ProvisionSlotRequest) (*domain.Slot, error)
	GetSlot(ctx context.Context, slotID int64) (*domain.Slot, error)
	ListSlots(ctx context.Context) ([]*domain.Slot, error)
}

type PlaceBidRequest struct {
	SlotID   int64           `json:"slot_id"`
	BidderID string          `json:"bidder_id"`
	UserID   string          `json:"user_id"`
	Amount   decimal.Decimal `json:"amount"`
}

type CreateSessionRequest struct {
	Name                  string           `json:"name"`
	StartTime             time.Time        `json:"start_time"`
	EndTime               time.Time        `json:"end_time"`
	BidIncrement          decimal.Decimal  `json:"bid_increment"`
	AutoExtend            bool             `json:"auto_extend"`
	ExtendDurationSeconds int64            `json:"extend_duration_seconds"`
	MaxExtensions         int              `json:"max_extensions"`
	ReservePrice          *decimal.Decimal `json:"reserve_price,omitempty"`
	SlotIDs               []int64          `json:"slot_ids"`
}

type ExtendSessionRequest struct {
	DurationSeconds int64 `json:"duration_seconds"`
}

type ProvisionSlotRequest struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	ReservePrice decimal.Decimal `json:"reserve_price"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Reason        string           `json:"reason"`
	Message       string           `json:"message"`
	MinimumAmount *decimal.Decimal `json:"minimum_amount,omitempty"`
}

type AuctionHandler struct {
	api AuctionAPI
	log logger.Logger
}

func NewAuctionHandler(api AuctionAPI, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{api: api, log: log}
}

// Register mounts the API under g.
func (h *AuctionHandler) Register(g *echo.Group) {
	g.POST("/bids", h.PlaceBid)
	g.GET("/bids", h.ListBids)
	g.GET("/bids/:id", h.GetBid)
	g.DELETE("/bids/:id", h.WithdrawBid)
	g.POST("/bids/:id/accept", h.AcceptBid)
	g.POST("/bids/:id/reject", h.RejectBid)

	g.POST("/sessions", h.CreateSession)
	g.GET("/sessions", h.ListSessions)
	g.GET("/sessions/:id", h.GetSession)
	g.POST("/sessions/:id/start", h.sessionCommand("start", h.api.StartSession))
	g.POST("/sessions/:id/pause", h.sessionCommand("pause", h.api.PauseSession))
	g.POST("/sessions/:id/resume", h.sessionCommand("resume", h.api.ResumeSession))
	g.POST("/sessions/:id/end", h.sessionCommand("end", h.api.EndSession))
	g.POST("/sessions/:id/cancel", h.sessionCommand("cancel", h.api.CancelSession))
	g.POST("/sessions/:id/extend", h.ExtendSession)
	g.GET("/sessions/:id/winners", h.Winners)
	g.GET("/sessions/:id/notifications", h.ListNotifications)

	g.POST("/slots", h.ProvisionSlot)
	g.GET("/slots", h.ListSlots)
	g.GET("/slots/:id", h.GetSlot)
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	h.log.Info("PlaceBid endpoint called", "slot_id", req.SlotID, "bidder_id", req.BidderID, "amount", req.Amount.String())

	bid, err := h.api.PlaceBid(c.Request().Context(), services.PlaceBidRequest{
		SlotID:    req.SlotID,
		CompanyID: req.BidderID,
		UserID:    req.UserID,
		Amount:    req.Amount,
	})
	if err != nil {
		return h.fail(c, "place bid", err)
	}
	return c.JSON(http.StatusCreated, bid)
}

func (h *AuctionHandler) WithdrawBid(c echo.Context) error {
	return h.bidCommand(c, "withdraw", h.api.WithdrawBid)
}

func (h *AuctionHandler) AcceptBid(c echo.Context) error {
	return h.bidCommand(c, "accept", h.api.AcceptBid)
}

func (h *AuctionHandler) RejectBid(c echo.Context) error {
	return h.bidCommand(c, "reject", h.api.RejectBid)
}

func (h *AuctionHandler) bidCommand(c echo.Context, op string, fn func(context.Context, string) (*domain.Bid, error)) error {
	bidID := c.Param("id")
	h.log.Info("Bid command called", "op", op, "bid_id", bidID)

	bid, err := fn(c.Request().Context(), bidID)
	if err != nil {
		return h.fail(c, op+" bid", err)
	}
	return c.JSON(http.StatusOK, bid)
}

func (h *AuctionHandler) GetBid(c echo.Context) error {
	bid, err := h.api.GetBid(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "get bid", err)
	}
	return c.JSON(http.StatusOK, bid)
}

func (h *AuctionHandler) ListBids(c echo.Context) error {
	var slotID int64
	if raw := c.QueryParam("slot_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return badRequest(c, "invalid slot_id")
		}
		slotID = id
	}
	bids, err := h.api.ListBids(c.Request().Context(), slotID, domain.BidStatus(c.QueryParam("status")))
	if err != nil {
		return h.fail(c, "list bids", err)
	}
	return c.JSON(http.StatusOK, bids)
}

func (h *AuctionHandler) CreateSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	h.log.Info("CreateSession endpoint called", "name", req.Name, "slots", req.SlotIDs)

	cmd := services.CreateSessionRequest{
		Name:           req.Name,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		BidIncrement:   req.BidIncrement,
		AutoExtend:     req.AutoExtend,
		ExtendDuration: time.Duration(req.ExtendDurationSeconds) * time.Second,
		MaxExtensions:  req.MaxExtensions,
		SlotIDs:        req.SlotIDs,
	}
	if req.ReservePrice != nil {
		cmd.ReservePrice = decimal.NewNullDecimal(*req.ReservePrice)
	}

	session, err := h.api.CreateSession(c.Request().Context(), cmd)
	if err != nil {
		return h.fail(c, "create session", err)
	}
	h.log.Info("Auction session created successfully", "session_id", session.ID)
	return c.JSON(http.StatusCreated, session)
}

func (h *AuctionHandler) sessionCommand(op string, fn func(context.Context, string) (*domain.AuctionSession, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		sessionID := c.Param("id")
		h.log.Info("Session command called", "op", op, "session_id", sessionID)

		session, err := fn(c.Request().Context(), sessionID)
		if err != nil {
			return h.fail(c, op+" session", err)
		}
		return c.JSON(http.StatusOK, session)
	}
}

func (h *AuctionHandler) ExtendSession(c echo.Context) error {
	sessionID := c.Param("id")

	var req ExtendSessionRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}
	h.log.Info("ExtendSession endpoint called", "session_id", sessionID, "seconds", req.DurationSeconds)

	session, err := h.api.ExtendSession(c.Request().Context(), sessionID, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		return h.fail(c, "extend session", err)
	}
	return c.JSON(http.StatusOK, session)
}

func (h *AuctionHandler) GetSession(c echo.Context) error {
	session, err := h.api.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "get session", err)
	}
	return c.JSON(http.StatusOK, session)
}

func (h *AuctionHandler) ListSessions(c echo.Context) error {
	sessions, err := h.api.ListSessions(c.Request().Context(), domain.SessionStatus(c.QueryParam("status")))
	if err != nil {
		return h.fail(c, "list sessions", err)
	}
	return c.JSON(http.StatusOK, sessions)
}

func (h *AuctionHandler) Winners(c echo.Context) error {
	winners, err := h.api.Winners(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "winners", err)
	}
	return c.JSON(http.StatusOK, winners)
}

func (h *AuctionHandler) ListNotifications(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return badRequest(c, "limit must be a non-negative integer")
		}
		limit = n
	}
	notifications, err := h.api.ListNotifications(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return h.fail(c, "list notifications", err)
	}
	return c.JSON(http.StatusOK, notifications)
}

func (h *AuctionHandler) ProvisionSlot(c echo.Context) error {
	var req ProvisionSlotRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	h.log.Info("ProvisionSlot endpoint called", "slot_id", req.ID, "name", req.Name)

	slot, err := h.api.ProvisionSlot(c.Request().Context(), services.ProvisionSlotRequest{
		ID:           req.ID,
		Name:         req.Name,
		ReservePrice: req.ReservePrice,
	})
	if err != nil {
		return h.fail(c, "provision slot", err)
	}
	return c.JSON(http.StatusCreated, slot)
}

func (h *AuctionHandler) GetSlot(c echo.Context) error {
	slotID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return badRequest(c, "invalid slot id")
	}
	slot, err := h.api.GetSlot(c.Request().Context(), slotID)
	if err != nil {
		return h.fail(c, "get slot", err)
	}
	return c.JSON(http.StatusOK, slot)
}

func (h *AuctionHandler) ListSlots(c echo.Context) error {
	slots, err := h.api.ListSlots(c.Request().Context())
	if err != nil {
		return h.fail(c, "list slots", err)
	}
	return c.JSON(http.StatusOK, slots)
}

func (h *AuctionHandler) fail(c echo.Context, op string, err error) error {
	status, body := mapError(err)
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", "op", op, "error", err)
	} else {
		h.log.Debug("Request refused", "op", op, "status", status, "reason", body.Reason)
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Reason: "InvalidInput", Message: message})
}

// mapError translates domain errors into an HTTP status and response body.
func mapError(err error) (int, ErrorResponse) {
	var rejection *domain.Rejection
	if errors.As(err, &rejection) {
		body := ErrorResponse{Reason: string(rejection.Reason), Message: rejection.Message}
		if rejection.MinimumAmount.Valid {
			minimum := rejection.MinimumAmount.Decimal
			body.MinimumAmount = &minimum
		}
		return http.StatusBadRequest, body
	}

	switch {
	case errors.Is(err, domain.ErrSlotNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrBidNotFound):
		return http.StatusNotFound, ErrorResponse{Reason: "NotFound", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, ErrorResponse{Reason: "InvalidInput", Message: err.Error()}
	case errors.Is(err, domain.ErrAlreadyTerminal):
		return http.StatusBadRequest, ErrorResponse{Reason: "AlreadyTerminal", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidSessionTransition):
		return http.StatusBadRequest, ErrorResponse{Reason: "InvalidSessionTransition", Message: err.Error()}
	case errors.Is(err, domain.ErrExtensionLimitReached):
		return http.StatusBadRequest, ErrorResponse{Reason: "ExtensionLimitReached", Message: err.Error()}
	case errors.Is(err, domain.ErrSlotUnavailable):
		return http.StatusBadRequest, ErrorResponse{Reason: "SlotUnavailable", Message: err.Error()}
	case errors.Is(err, domain.ErrSlotExists):
		return http.StatusConflict, ErrorResponse{Reason: "SlotExists", Message: err.Error()}
	case errors.Is(err, domain.ErrTxConflict):
		return http.StatusConflict, ErrorResponse{Reason: "Conflict", Message: "concurrent update, retry the request"}
	}
	return http.StatusInternalServerError, ErrorResponse{Reason: "Internal", Message: "internal server error"}
}
