package handler

import (
	"context"
	"net/http"

	"parkease/internal/domain"
	"parkease/internal/proof"
	"parkease/internal/service"

	"github.com/gin-gonic/gin"
)

type ReservationHandler struct {
	reservations *service.ReservationService
}

func NewReservationHandler(rs *service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservations: rs}
}

// POST /reservations
func (h *ReservationHandler) Reserve(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var dto domain.ReserveDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "spot_id and spot_class are required"})
		return
	}
	res, err := h.reservations.Reserve(c.Request.Context(), id, dto)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// PUT /reservations/check-in
func (h *ReservationHandler) CheckIn(c *gin.Context) {
	h.act(c, h.reservations.CheckIn)
}

// PUT /reservations/check-out
func (h *ReservationHandler) CheckOut(c *gin.Context) {
	h.act(c, h.reservations.CheckOut)
}

type actionFunc func(ctx context.Context, id domain.Identity, target domain.ReservationActionDTO) (*domain.Reservation, error)

func (h *ReservationHandler) act(c *gin.Context, action actionFunc) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var dto domain.ReservationActionDTO
	if err := c.ShouldBindJSON(&dto); err != nil || (dto.ReservationID <= 0 && dto.QRToken == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reservation_id or qr_token is required"})
		return
	}
	res, err := action(c.Request.Context(), id, dto)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DELETE /reservations/:id
func (h *ReservationHandler) Cancel(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	reservationID, ok := paramID(c, "id", "reservation")
	if !ok {
		return
	}
	res, err := h.reservations.Cancel(c.Request.Context(), id, reservationID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reservation cancelled", "reservation": res})
}

// GET /reservations/current
func (h *ReservationHandler) GetCurrent(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	res, err := h.reservations.GetCurrent(c.Request.Context(), id.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /reservations
func (h *ReservationHandler) List(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	list, err := h.reservations.ListForUser(c.Request.Context(), id.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /reservations/:id
func (h *ReservationHandler) Get(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	reservationID, ok := paramID(c, "id", "reservation")
	if !ok {
		return
	}
	res, err := h.reservations.GetByID(c.Request.Context(), id, reservationID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /reservations/:id/qr
func (h *ReservationHandler) QRCode(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	reservationID, ok := paramID(c, "id", "reservation")
	if !ok {
		return
	}
	res, err := h.reservations.GetByID(c.Request.Context(), id, reservationID)
	if err != nil {
		writeError(c, err)
		return
	}
	png, err := proof.PNG(res.QRToken, proof.DefaultSize)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}
