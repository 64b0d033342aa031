package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jeffRnR/noizy-hub/internal/application"
	"github.com/jeffRnR/noizy-hub/internal/domain/event"
)

type EventHandler struct {
	eventService     EventServiceInterface
	inventoryService InventoryServiceInterface
}

func NewEventHandler(eventService EventServiceInterface, inventoryService InventoryServiceInterface) *EventHandler {
	return &EventHandler{eventService: eventService, inventoryService: inventoryService}
}

type CreateEventRequest struct {
	Name        string `json:"name" validate:"required" example:"渋谷サマーフェス2026"`
	Description string `json:"description" example:"夏の野外ライブ"`
	Location    string `json:"location" example:"渋谷O-EAST"`
	EventDate   string `json:"event_date" validate:"required" example:"2026-08-01T18:00:00+09:00"`
	OwnerID     string `json:"owner_id" validate:"required" example:"user-123"`
	ImageURL    string `json:"image_url" example:"https://example.com/flyer.png"`
}

type EventResponse struct {
	ID          string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Name        string `json:"name" example:"渋谷サマーフェス2026"`
	Description string `json:"description" example:"夏の野外ライブ"`
	Location    string `json:"location" example:"渋谷O-EAST"`
	EventDate   string `json:"event_date" example:"2026-08-01T18:00:00+09:00"`
	OwnerID     string `json:"owner_id" example:"user-123"`
	ImageURL    string `json:"image_url,omitempty" example:"https://example.com/flyer.png"`
	IsCancelled bool   `json:"is_cancelled" example:"false"`
	CreatedAt   string `json:"created_at" example:"2026-06-01T10:00:00+09:00"`
	UpdatedAt   string `json:"updated_at" example:"2026-06-01T10:00:00+09:00"`
}

func toEventResponse(e *event.Event) *EventResponse {
	return &EventResponse{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Location:    e.Location,
		EventDate:   e.EventDate.Format(time.RFC3339),
		OwnerID:     e.OwnerID,
		ImageURL:    e.ImageURL,
		IsCancelled: e.IsCancelled,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   e.UpdatedAt.Format(time.RFC3339),
	}
}

// Create godoc
// @Summary イベントを作成
// @Description 新しいイベントを作成します
// @Tags events
// @Accept json
// @Produce json
// @Param request body CreateEventRequest true "イベント情報"
// @Success 201 {object} EventResponse
// @Failure 400 {object} map[string]string
// @Router /events [post]
func (h *EventHandler) Create(c echo.Context) error {
	var req CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "リクエストの形式が不正です"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	eventDate, err := time.Parse(time.RFC3339, req.EventDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "開催日時の形式が不正です"})
	}

	input := application.CreateEventInput{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		EventDate:   eventDate,
		OwnerID:     req.OwnerID,
		ImageURL:    req.ImageURL,
	}

	e, err := h.eventService.CreateEvent(c.Request().Context(), input)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, toEventResponse(e))
}

// GetByID godoc
// @Summary イベントを取得
// @Description 指定IDのイベントを取得します
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 404 {object} map[string]string
// @Router /events/{id} [get]
func (h *EventHandler) GetByID(c echo.Context) error {
	id := c.Param("id")
	e, err := h.eventService.GetEvent(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, event.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "イベントが見つかりません"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// List godoc
// @Summary イベント一覧を取得
// @Description 中止されていないイベントの一覧を取得します
// @Tags events
// @Produce json
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} EventResponse
// @Router /events [get]
func (h *EventHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	events, err := h.eventService.ListEvents(c.Request().Context(), limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	responses := make([]*EventResponse, len(events))
	for i, e := range events {
		responses[i] = toEventResponse(e)
	}
	return c.JSON(http.StatusOK, responses)
}

type UpdateEventRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
	EventDate   string `json:"event_date" validate:"required"`
	ImageURL    string `json:"image_url"`
}

// Update godoc
// @Summary イベントを更新
// @Description 指定IDのイベントを更新します
// @Tags events
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body UpdateEventRequest true "イベント情報"
// @Success 200 {object} EventResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /events/{id} [put]
func (h *EventHandler) Update(c echo.Context) error {
	id := c.Param("id")
	var req UpdateEventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "リクエストの形式が不正です"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	eventDate, err := time.Parse(time.RFC3339, req.EventDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "開催日時の形式が不正です"})
	}

	input := application.UpdateEventInput{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		EventDate:   eventDate,
		ImageURL:    req.ImageURL,
	}

	e, err := h.eventService.UpdateEvent(c.Request().Context(), input)
	if err != nil {
		if errors.Is(err, event.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "イベントが見つかりません"})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// Cancel godoc
// @Summary イベントを中止
// @Description イベントを中止し、有効チケットの払い戻しとウェイティングリストの失効を行います
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /events/{id}/cancel [post]
func (h *EventHandler) Cancel(c echo.Context) error {
	id := c.Param("id")
	e, err := h.eventService.CancelEvent(c.Request().Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, event.ErrEventNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "イベントが見つかりません"})
		case errors.Is(err, event.ErrEventAlreadyCancelled):
			return c.JSON(http.StatusConflict, map[string]string{"error": "イベントは既に中止されています"})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

type AvailabilityResponse struct {
	IsSoldOut        bool `json:"is_sold_out" example:"false"`
	TotalTickets     int  `json:"total_tickets" example:"100"`
	PurchasedCount   int  `json:"purchased_count" example:"60"`
	ActiveOffers     int  `json:"active_offers" example:"5"`
	RemainingTickets int  `json:"remaining_tickets" example:"35"`
}

// Availability godoc
// @Summary イベントの販売状況を取得
// @Description 定員・購入済み・アクティブオファー・残数を単一スナップショットで返します
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} AvailabilityResponse
// @Failure 404 {object} map[string]string
// @Router /events/{id}/availability [get]
func (h *EventHandler) Availability(c echo.Context) error {
	id := c.Param("id")
	avail, err := h.inventoryService.GetEventAvailability(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, event.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "イベントが見つかりません"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, AvailabilityResponse{
		IsSoldOut:        avail.IsSoldOut,
		TotalTickets:     avail.TotalTickets,
		PurchasedCount:   avail.PurchasedCount,
		ActiveOffers:     avail.ActiveOffers,
		RemainingTickets: avail.RemainingTickets,
	})
}

type OwnerEventResponse struct {
	Event          *EventResponse `json:"event"`
	TotalCapacity  int            `json:"total_capacity" example:"100"`
	SoldCount      int            `json:"sold_count" example:"60"`
	UsedCount      int            `json:"used_count" example:"10"`
	RefundedCount  int            `json:"refunded_count" example:"3"`
	CancelledCount int            `json:"cancelled_count" example:"1"`
	Revenue        int            `json:"revenue" example:"420000"`
}

// OwnerEvents godoc
// @Summary 主催者のイベント一覧を取得
// @Description 主催者のイベント一覧を販売集計つきで取得します
// @Tags events
// @Produce json
// @Param owner_id path string true "主催者ID"
// @Success 200 {array} OwnerEventResponse
// @Router /owners/{owner_id}/events [get]
func (h *EventHandler) OwnerEvents(c echo.Context) error {
	ownerID := c.Param("owner_id")
	stats, err := h.eventService.ListOwnerEvents(c.Request().Context(), ownerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	responses := make([]*OwnerEventResponse, len(stats))
	for i, s := range stats {
		responses[i] = &OwnerEventResponse{
			Event:          toEventResponse(s.Event),
			TotalCapacity:  s.TotalCapacity,
			SoldCount:      s.SoldCount,
			UsedCount:      s.UsedCount,
			RefundedCount:  s.RefundedCount,
			CancelledCount: s.CancelledCount,
			Revenue:        s.Revenue,
		}
	}
	return c.JSON(http.StatusOK, responses)
}

// Stats godoc
// @Summary イベントの販売集計を取得
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} OwnerEventResponse
// @Failure 404 {object} map[string]string
// @Router /events/{id}/stats [get]
func (h *EventHandler) Stats(c echo.Context) error {
	id := c.Param("id")
	s, err := h.eventService.GetEventStats(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, event.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "イベントが見つかりません"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, &OwnerEventResponse{
		Event:          toEventResponse(s.Event),
		TotalCapacity:  s.TotalCapacity,
		SoldCount:      s.SoldCount,
		UsedCount:      s.UsedCount,
		RefundedCount:  s.RefundedCount,
		CancelledCount: s.CancelledCount,
		Revenue:        s.Revenue,
	})
}

type DailySalesResponse struct {
	Date    string `json:"date" example:"2026-08-29"`
	Count   int    `json:"count" example:"12"`
	Revenue int    `json:"revenue" example:"96000"`
}

// SalesTrend godoc
// @Summary イベントの日別販売推移を取得
// @Description 直近の日別販売数と売上を返します（デフォルト7日）
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Param days query int false "集計日数" default(7)
// @Success 200 {array} DailySalesResponse
// @Failure 404 {object} map[string]string
// @Router /events/{id}/sales-trend [get]
func (h *EventHandler) SalesTrend(c echo.Context) error {
	id := c.Param("id")
	days, _ := strconv.Atoi(c.QueryParam("days"))

	trend, err := h.eventService.GetSalesTrend(c.Request().Context(), id, days)
	if err != nil {
		if errors.Is(err, event.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "イベントが見つかりません"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	responses := make([]DailySalesResponse, len(trend))
	for i, d := range trend {
		responses[i] = DailySalesResponse{
			Date:    d.Date.Format("2006-01-02"),
			Count:   d.Count,
			Revenue: d.Revenue,
		}
	}
	return c.JSON(http.StatusOK, responses)
}
