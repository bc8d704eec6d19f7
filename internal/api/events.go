package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"slotswap-backend/internal/events"
	"slotswap-backend/internal/models"
)

// -----------------------------
// Events
// -----------------------------

type CreateEventRequest struct {
	Title     string             `json:"title" binding:"required"`
	StartTime time.Time          `json:"startTime" binding:"required"`
	EndTime   time.Time          `json:"endTime" binding:"required"`
	Status    models.EventStatus `json:"status"`
}

func (h *Handler) CreateEvent(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	var body CreateEventRequest
	if err := bindJSON(c, &body); err != nil {
		h.fail(c, err)
		return
	}

	ev, err := h.events.Create(c.Request.Context(), userID, events.CreateInput{
		Title:     body.Title,
		StartTime: body.StartTime,
		EndTime:   body.EndTime,
		Status:    body.Status,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, ev)
}

func (h *Handler) ListMyEvents(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	list, err := h.events.ListMine(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetEvent(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	id, err := parseID(c.Param("id"), "event id")
	if err != nil {
		h.fail(c, err)
		return
	}

	ev, err := h.events.Get(c.Request.Context(), userID, id)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, ev)
}

// UpdateEventRequest is a partial update; omitted fields keep their value.
type UpdateEventRequest struct {
	Title     *string             `json:"title"`
	StartTime *time.Time          `json:"startTime"`
	EndTime   *time.Time          `json:"endTime"`
	Status    *models.EventStatus `json:"status"`
}

func (h *Handler) UpdateEvent(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	id, err := parseID(c.Param("id"), "event id")
	if err != nil {
		h.fail(c, err)
		return
	}

	var body UpdateEventRequest
	if err := bindJSON(c, &body); err != nil {
		h.fail(c, err)
		return
	}

	ev, err := h.events.Update(c.Request.Context(), userID, id, events.UpdateInput{
		Title:     body.Title,
		StartTime: body.StartTime,
		EndTime:   body.EndTime,
		Status:    body.Status,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, ev)
}

func (h *Handler) DeleteEvent(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	id, err := parseID(c.Param("id"), "event id")
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := h.events.Delete(c.Request.Context(), userID, id); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// -----------------------------
// Calendar export
// -----------------------------

func (h *Handler) ExportCalendar(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	body, err := h.events.ExportICS(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="calendar.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}
