package handler

import (
	"errors"
	"net/http"

	"parkease/internal/domain"
	"parkease/internal/service"

	"github.com/gin-gonic/gin"
)

type SpotHandler struct {
	spots      *service.SpotService
	reconciler *service.Reconciler
}

func NewSpotHandler(spots *service.SpotService, reconciler *service.Reconciler) *SpotHandler {
	return &SpotHandler{spots: spots, reconciler: reconciler}
}

// GET /spots
func (h *SpotHandler) ListSpots(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	views, err := h.spots.ListSpots(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// GET /spots/:id
func (h *SpotHandler) GetSpot(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	spotID, ok := paramID(c, "id", "spot")
	if !ok {
		return
	}
	view, err := h.spots.GetSpot(c.Request.Context(), id, spotID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /spots
func (h *SpotHandler) CreateSpot(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var dto domain.SpotDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	spot, err := h.spots.CreateSpot(c.Request.Context(), id, dto)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, spot)
}

// PUT /spots/:id
func (h *SpotHandler) UpdateSpot(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	spotID, ok := paramID(c, "id", "spot")
	if !ok {
		return
	}
	var dto domain.SpotDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	spot, err := h.spots.UpdateSpot(c.Request.Context(), id, spotID, dto)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, spot)
}

// DELETE /spots/:id
func (h *SpotHandler) DeleteSpot(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	spotID, ok := paramID(c, "id", "spot")
	if !ok {
		return
	}
	if err := h.spots.DeleteSpot(c.Request.Context(), id, spotID); err != nil {
		// Active reservations block deletion: 409.
		if errors.Is(err, service.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "spot deleted"})
}

// POST /spots/:id/reconcile
func (h *SpotHandler) ReconcileSpot(c *gin.Context) {
	spotID, ok := paramID(c, "id", "spot")
	if !ok {
		return
	}
	avail, err := h.reconciler.Reconcile(c.Request.Context(), spotID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"spot_id": spotID, "standard_available": avail.Standard, "ev_available": avail.Ev})
}

// POST /spots/reconcile
func (h *SpotHandler) ReconcileAll(c *gin.Context) {
	corrected, err := h.reconciler.ReconcileAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"corrected": corrected})
}
