package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"honnylove-backend/internal/inventory"
)

type adjustRequest struct {
	ProductID  int64  `json:"product_id" binding:"required"`
	LocationID int64  `json:"location_id"`
	Delta      int    `json:"delta" binding:"required"`
	Reason     string `json:"reason" binding:"max=200"`
}

func (h *Handler) LowStock(c *gin.Context) {
	list, err := h.svc.LowStock(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

func (h *Handler) StockLevels(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	levels, err := h.svc.StockLevels(c.Request.Context(), id)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, levels)
}

func (h *Handler) AdjustInventory(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abortBadRequest(c, err)
		return
	}
	if req.LocationID == 0 {
		req.LocationID = inventory.DefaultLocationID
	}
	rec, err := h.svc.AdjustInventory(c.Request.Context(), actor, req.ProductID, req.LocationID, req.Delta, req.Reason)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
