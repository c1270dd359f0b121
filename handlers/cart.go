package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"honnylove-backend/internal/commerce"
)

type cartItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

type cartQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required,min=0"`
}

func (h *Handler) GetCart(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	resp, err := h.svc.GetCart(c.Request.Context(), actor.UserID)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) AddToCart(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abortBadRequest(c, err)
		return
	}
	resp, err := h.svc.AddToCart(c.Request.Context(), actor.UserID, req.ProductID, req.Quantity)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) SetCartQuantity(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	productID, ok := h.idParam(c, "productId")
	if !ok {
		return
	}
	var req cartQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abortBadRequest(c, err)
		return
	}
	resp, err := h.svc.SetCartQuantity(c.Request.Context(), actor.UserID, productID, *req.Quantity)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) RemoveFromCart(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	productID, ok := h.idParam(c, "productId")
	if !ok {
		return
	}
	resp, err := h.svc.RemoveFromCart(c.Request.Context(), actor.UserID, productID)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Checkout(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var in commerce.CheckoutInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.abortBadRequest(c, err)
		return
	}
	details, err := h.svc.Checkout(c.Request.Context(), actor.UserID, in)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, details)
}
