package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ========================
// Signup
// ========================

type SignupInput struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Signup(c *gin.Context) {
	var input SignupInput
	if err := bindJSON(c, &input); err != nil {
		h.fail(c, err)
		return
	}

	session, err := h.auth.Signup(c.Request.Context(), input.Name, input.Email, input.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// ========================
// Login
// ========================

type LoginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var input LoginInput
	if err := bindJSON(c, &input); err != nil {
		h.fail(c, err)
		return
	}

	session, err := h.auth.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}
