package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jeffRnR/noizy-hub/internal/application"
	"github.com/jeffRnR/noizy-hub/internal/domain/event"
	"github.com/jeffRnR/noizy-hub/internal/domain/ticket"
	"github.com/jeffRnR/noizy-hub/internal/domain/waitlist"
)

type TicketHandler struct {
	ticketService TicketServiceInterface
}

func NewTicketHandler(ticketService TicketServiceInterface) *TicketHandler {
	return &TicketHandler{ticketService: ticketService}
}

type AddTicketTypeRequest struct {
	Name          string `json:"name" validate:"required" example:"一般"`
	Price         int    `json:"price" validate:"gte=0" example:"5000"`
	TotalQuantity int    `json:"total_quantity" validate:"required,gt=0" example:"100"`
	ExpiresAt     string `json:"expires_at,omitempty" example:"2026-07-31T23:59:59+09:00"`
}

type TicketTypeResponse struct {
	ID            string `json:"id" example:"770e8400-e29b-41d4-a716-446655440000"`
	EventID       string `json:"event_id" example:"660e8400-e29b-41d4-a716-446655440000"`
	Name          string `json:"name" example:"一般"`
	Price         int    `json:"price" example:"5000"`
	TotalQuantity int    `json:"total_quantity" example:"100"`
	ExpiresAt     string `json:"expires_at,omitempty" example:"2026-07-31T23:59:59+09:00"`
}

func toTicketTypeResponse(tt *ticket.TicketType) *TicketTypeResponse {
	resp := &TicketTypeResponse{
		ID:            tt.ID,
		EventID:       tt.EventID,
		Name:          tt.Name,
		Price:         tt.Price,
		TotalQuantity: tt.TotalQuantity,
	}
	if tt.ExpiresAt != nil {
		resp.ExpiresAt = tt.ExpiresAt.Format(time.RFC3339)
	}
	return resp
}

type TicketResponse struct {
	ID              string `json:"id" example:"880e8400-e29b-41d4-a716-446655440000"`
	EventID         string `json:"event_id" example:"660e8400-e29b-41d4-a716-446655440000"`
	TicketTypeID    string `json:"ticket_type_id" example:"770e8400-e29b-41d4-a716-446655440000"`
	UserID          string `json:"user_id" example:"user-123"`
	Status          string `json:"status" example:"valid"`
	Amount          int    `json:"amount" example:"5000"`
	PaymentIntentID string `json:"payment_intent_id,omitempty" example:"pi_3abc"`
	PurchasedAt     string `json:"purchased_at" example:"2026-08-01T18:10:00+09:00"`
}

func toTicketResponse(t *ticket.Ticket) *TicketResponse {
	resp := &TicketResponse{
		ID:           t.ID,
		EventID:      t.EventID,
		TicketTypeID: t.TicketTypeID,
		UserID:       t.UserID,
		Status:       string(t.Status),
		Amount:       t.Amount,
		PurchasedAt:  t.PurchasedAt.Format(time.RFC3339),
	}
	if t.PaymentIntentID != nil {
		resp.PaymentIntentID = *t.PaymentIntentID
	}
	return resp
}

// AddTicketType godoc
// @Summary チケット種別を追加
// @Description イベントにチケット種別を追加します。総定員が増えた分は待機者へ再配分されます
// @Tags tickets
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body AddTicketTypeRequest true "チケット種別情報"
// @Success 201 {object} TicketTypeResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /events/{id}/ticket-types [post]
func (h *TicketHandler) AddTicketType(c echo.Context) error {
	eventID := c.Param("id")
	var req AddTicketTypeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "リクエストの形式が不正です"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	input := application.AddTicketTypeInput{
		EventID:       eventID,
		Name:          req.Name,
		Price:         req.Price,
		TotalQuantity: req.TotalQuantity,
	}
	if req.ExpiresAt != "" {
		expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "販売終了日時の形式が不正です"})
		}
		input.ExpiresAt = &expiresAt
	}

	tt, err := h.ticketService.AddTicketType(c.Request().Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, event.ErrEventNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "イベントが見つかりません"})
		case errors.Is(err, event.ErrEventAlreadyCancelled):
			return c.JSON(http.StatusConflict, map[string]string{"error": "イベントは既に中止されています"})
		default:
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
	}
	return c.JSON(http.StatusCreated, toTicketTypeResponse(tt))
}

// ListTicketTypes godoc
// @Summary チケット種別一覧を取得
// @Tags tickets
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {array} TicketTypeResponse
// @Failure 404 {object} map[string]string
// @Router /events/{id}/ticket-types [get]
func (h *TicketHandler) ListTicketTypes(c echo.Context) error {
	eventID := c.Param("id")
	types, err := h.ticketService.ListTicketTypes(c.Request().Context(), eventID)
	if err != nil {
		if errors.Is(err, event.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "イベントが見つかりません"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	responses := make([]*TicketTypeResponse, len(types))
	for i, tt := range types {
		responses[i] = toTicketTypeResponse(tt)
	}
	return c.JSON(http.StatusOK, responses)
}

type PurchaseTicketRequest struct {
	UserID          string `json:"user_id" validate:"required" example:"user-123"`
	TicketTypeID    string `json:"ticket_type_id" validate:"required" example:"770e8400-e29b-41d4-a716-446655440000"`
	PaymentIntentID string `json:"payment_intent_id,omitempty" example:"pi_3abc"`
}

// Purchase godoc
// @Summary チケットを購入
// @Description アクティブなオファーを行使してチケットを購入します
// @Tags tickets
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body PurchaseTicketRequest true "購入情報"
// @Success 201 {object} TicketResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /events/{id}/tickets [post]
func (h *TicketHandler) Purchase(c echo.Context) error {
	eventID := c.Param("id")
	var req PurchaseTicketRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "リクエストの形式が不正です"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	t, err := h.ticketService.PurchaseTicket(c.Request().Context(), application.PurchaseTicketInput{
		EventID:         eventID,
		UserID:          req.UserID,
		TicketTypeID:    req.TicketTypeID,
		PaymentIntentID: req.PaymentIntentID,
	})
	if err != nil {
		switch {
		case errors.Is(err, event.ErrEventNotFound), errors.Is(err, ticket.ErrTicketTypeNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, waitlist.ErrNoActiveOffer):
			return c.JSON(http.StatusConflict, map[string]string{"error": "アクティブなオファーがありません"})
		case errors.Is(err, event.ErrEventAlreadyCancelled), errors.Is(err, application.ErrTicketTypeSaleEnded):
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}
	return c.JSON(http.StatusCreated, toTicketResponse(t))
}

// GetByID godoc
// @Summary チケットを取得
// @Tags tickets
// @Produce json
// @Param id path string true "チケットID"
// @Success 200 {object} TicketResponse
// @Failure 404 {object} map[string]string
// @Router /tickets/{id} [get]
func (h *TicketHandler) GetByID(c echo.Context) error {
	id := c.Param("id")
	t, err := h.ticketService.GetTicket(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ticket.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "チケットが見つかりません"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, toTicketResponse(t))
}

// GetUserTicket godoc
// @Summary ユーザーのイベントチケットを取得
// @Tags tickets
// @Produce json
// @Param id path string true "イベントID"
// @Param user_id query string true "ユーザーID"
// @Success 200 {object} TicketResponse
// @Failure 404 {object} map[string]string
// @Router /events/{id}/tickets [get]
func (h *TicketHandler) GetUserTicket(c echo.Context) error {
	eventID := c.Param("id")
	userID := c.QueryParam("user_id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id は必須です"})
	}

	t, err := h.ticketService.GetUserTicketForEvent(c.Request().Context(), eventID, userID)
	if err != nil {
		if errors.Is(err, ticket.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "チケットが見つかりません"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, toTicketResponse(t))
}

// Use godoc
// @Summary チケットを使用
// @Description 入場時にチケットを使用済みにします
// @Tags tickets
// @Produce json
// @Param id path string true "チケットID"
// @Success 200 {object} TicketResponse
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tickets/{id}/use [post]
func (h *TicketHandler) Use(c echo.Context) error {
	return h.transition(c, h.ticketService.UseTicket)
}

// Refund godoc
// @Summary チケットを払い戻し
// @Description チケットを払い戻し、解放された枠を待機者へ再配分します
// @Tags tickets
// @Produce json
// @Param id path string true "チケットID"
// @Success 200 {object} TicketResponse
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tickets/{id}/refund [post]
func (h *TicketHandler) Refund(c echo.Context) error {
	return h.transition(c, h.ticketService.RefundTicket)
}

// Cancel godoc
// @Summary チケットを取り消し
// @Tags tickets
// @Produce json
// @Param id path string true "チケットID"
// @Success 200 {object} TicketResponse
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tickets/{id}/cancel [post]
func (h *TicketHandler) Cancel(c echo.Context) error {
	return h.transition(c, h.ticketService.CancelTicket)
}

func (h *TicketHandler) transition(c echo.Context, fn func(ctx context.Context, id string) (*ticket.Ticket, error)) error {
	id := c.Param("id")
	t, err := fn(c.Request().Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ticket.ErrTicketNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "チケットが見つかりません"})
		case errors.Is(err, ticket.ErrTicketNotValid), errors.Is(err, ticket.ErrTicketAlreadyReleased):
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, toTicketResponse(t))
}
