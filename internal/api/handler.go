// Package api exposes the event, swap and auth services over HTTP with gin.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"slotswap-backend/internal/apperr"
	"slotswap-backend/internal/auth"
	"slotswap-backend/internal/events"
	"slotswap-backend/internal/swap"
)

// Handler holds the services the controllers call into.
type Handler struct {
	events *events.Service
	swaps  *swap.Engine
	auth   *auth.Service
	logger *slog.Logger
}

func NewHandler(ev *events.Service, sw *swap.Engine, au *auth.Service, logger *slog.Logger) *Handler {
	return &Handler{events: ev, swaps: sw, auth: au, logger: logger}
}

func init() {
	// report binding failures by their JSON names
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// -----------------------------
// Helper functions
// -----------------------------

func jsonError(c *gin.Context, code int, kind apperr.Kind, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"message": msg, "code": kind})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation,
		apperr.KindInvalidSlotState,
		apperr.KindInvalidRequestState,
		apperr.KindInconsistentState,
		apperr.KindOwnershipMismatch:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as an error body. Internal errors are logged and their
// details withheld from the client.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		_ = c.Error(err)
		h.logger.Error("request failed", "route", c.FullPath(), "error", err)
		jsonError(c, http.StatusInternalServerError, kind, "internal server error")
		return
	}
	jsonError(c, statusFor(kind), kind, err.Error())
}

// bindJSON decodes the body into dst and turns binding failures into
// validation errors.
func bindJSON(c *gin.Context, dst any) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return apperr.Validation("missing or invalid fields: " + strings.Join(fields, ", "))
	}
	return apperr.Validation("invalid request body")
}

// getUserIDFromContext expects auth.Middleware to have run.
// If not present -> unauthorized.
func getUserIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	id, ok := auth.UserIDFromContext(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, apperr.KindUnauthorized, "unauthorized")
	}
	return id, ok
}

func parseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, apperr.Validation("invalid " + what)
	}
	return id, nil
}
