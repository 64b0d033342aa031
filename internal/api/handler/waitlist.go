package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jeffRnR/noizy-hub/internal/domain/event"
	"github.com/jeffRnR/noizy-hub/internal/domain/waitlist"
)

type WaitlistHandler struct {
	waitlistService WaitlistServiceInterface
}

func NewWaitlistHandler(waitlistService WaitlistServiceInterface) *WaitlistHandler {
	return &WaitlistHandler{waitlistService: waitlistService}
}

type JoinWaitlistRequest struct {
	UserID string `json:"user_id" validate:"required" example:"user-123"`
}

type WaitlistEntryResponse struct {
	ID             string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	EventID        string `json:"event_id" example:"660e8400-e29b-41d4-a716-446655440000"`
	UserID         string `json:"user_id" example:"user-123"`
	Status         string `json:"status" example:"offered"`
	OfferExpiresAt string `json:"offer_expires_at,omitempty" example:"2026-08-01T18:30:00+09:00"`
	CreatedAt      string `json:"created_at" example:"2026-08-01T18:00:00+09:00"`
}

type JoinWaitlistResponse struct {
	Success bool                   `json:"success" example:"true"`
	Status  string                 `json:"status" example:"offered"`
	Message string                 `json:"message" example:"チケットをオファーしました。30分以内に購入してください"`
	Entry   *WaitlistEntryResponse `json:"entry"`
}

func toWaitlistEntryResponse(e *waitlist.Entry) *WaitlistEntryResponse {
	resp := &WaitlistEntryResponse{
		ID:        e.ID,
		EventID:   e.EventID,
		UserID:    e.UserID,
		Status:    string(e.Status),
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
	if e.OfferExpiresAt != nil {
		resp.OfferExpiresAt = e.OfferExpiresAt.Format(time.RFC3339)
	}
	return resp
}

// Join godoc
// @Summary ウェイティングリストに参加
// @Description イベントのウェイティングリストに参加します。空きがあれば即座にオファーが発行されます
// @Tags waitlist
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body JoinWaitlistRequest true "参加情報"
// @Success 201 {object} JoinWaitlistResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /events/{id}/waitlist [post]
func (h *WaitlistHandler) Join(c echo.Context) error {
	eventID := c.Param("id")
	var req JoinWaitlistRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "リクエストの形式が不正です"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.waitlistService.JoinQueue(c.Request().Context(), eventID, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, event.ErrEventNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "イベントが見つかりません"})
		case errors.Is(err, event.ErrEventNotSellable):
			return c.JSON(http.StatusConflict, map[string]string{"error": "イベントはチケット販売期間外です"})
		case errors.Is(err, waitlist.ErrAlreadyInWaitlist):
			return c.JSON(http.StatusConflict, map[string]string{"error": "既にウェイティングリストに参加しています"})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}

	return c.JSON(http.StatusCreated, JoinWaitlistResponse{
		Success: result.Success,
		Status:  string(result.Status),
		Message: result.Message,
		Entry:   toWaitlistEntryResponse(result.Entry),
	})
}

type QueuePositionResponse struct {
	Entry    *WaitlistEntryResponse `json:"entry"`
	Position int                    `json:"position" example:"3"`
}

// Position godoc
// @Summary ウェイティングリストの順位を取得
// @Description ユーザーのエントリとFIFO順位（1始まり）を返します
// @Tags waitlist
// @Produce json
// @Param id path string true "イベントID"
// @Param user_id query string true "ユーザーID"
// @Success 200 {object} QueuePositionResponse
// @Failure 404 {object} map[string]string
// @Router /events/{id}/waitlist/position [get]
func (h *WaitlistHandler) Position(c echo.Context) error {
	eventID := c.Param("id")
	userID := c.QueryParam("user_id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id は必須です"})
	}

	pos, err := h.waitlistService.GetQueuePosition(c.Request().Context(), eventID, userID)
	if err != nil {
		if errors.Is(err, waitlist.ErrEntryNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "エントリが見つかりません"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, QueuePositionResponse{
		Entry:    toWaitlistEntryResponse(pos.Entry),
		Position: pos.Position,
	})
}

// ReleaseOffer godoc
// @Summary オファーを返上
// @Description アクティブなオファーを自発的に返上します。解放された枠は次の待機者へ再配分されます
// @Tags waitlist
// @Param id path string true "イベントID"
// @Param entry_id path string true "エントリID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /events/{id}/waitlist/offers/{entry_id} [delete]
func (h *WaitlistHandler) ReleaseOffer(c echo.Context) error {
	eventID := c.Param("id")
	entryID := c.Param("entry_id")

	err := h.waitlistService.ReleaseOffer(c.Request().Context(), eventID, entryID)
	if err != nil {
		switch {
		case errors.Is(err, waitlist.ErrEntryNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "エントリが見つかりません"})
		case errors.Is(err, waitlist.ErrNoActiveOffer):
			return c.JSON(http.StatusConflict, map[string]string{"error": "アクティブなオファーがありません"})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}
	return c.NoContent(http.StatusNoContent)
}
