package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"honnylove-backend/internal/auth"
	"honnylove-backend/internal/commerce"
	"honnylove-backend/internal/products"
)

// optionalActor reads a bearer token on public routes. Anonymous callers and
// invalid tokens are treated as customers.
func (h *Handler) optionalActor(c *gin.Context) commerce.Actor {
	parts := strings.Fields(c.GetHeader("Authorization"))
	if h.keys == nil || len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return commerce.Actor{}
	}
	claims, err := h.keys.Validate(parts[1], auth.TokenAccess)
	if err != nil {
		return commerce.Actor{}
	}
	id, err := claims.UserID()
	if err != nil {
		return commerce.Actor{}
	}
	return commerce.Actor{UserID: id, Staff: claims.IsStaff()}
}

func (h *Handler) CreateProduct(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	if c.Request.ContentLength > 5*1024 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Request body too large."})
		return
	}
	var in products.NewProduct
	if err := c.ShouldBindJSON(&in); err != nil {
		h.abortBadRequest(c, err)
		return
	}
	p, err := h.svc.CreateProduct(c.Request.Context(), actor, in)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var patch products.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.abortBadRequest(c, err)
		return
	}
	p, err := h.svc.UpdateProduct(c.Request.Context(), actor, id, patch)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.GetProduct(c.Request.Context(), h.optionalActor(c), id)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) ListProducts(c *gin.Context) {
	list, err := h.svc.ListProducts(c.Request.Context(), h.optionalActor(c))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}
