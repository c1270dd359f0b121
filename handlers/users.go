package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"honnylove-backend/internal/users"
)

const maxAuthBody = 4 * 1024

func (h *Handler) Signup(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAuthBody)
	var nu users.NewUser
	if err := c.ShouldBindJSON(&nu); err != nil {
		h.abortBadRequest(c, err)
		return
	}
	sess, err := h.svc.Signup(c.Request.Context(), nu)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *Handler) Login(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAuthBody)
	var creds users.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		h.abortBadRequest(c, err)
		return
	}
	sess, err := h.svc.Login(c.Request.Context(), creds)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abortBadRequest(c, err)
		return
	}
	sess, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}
