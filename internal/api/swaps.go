package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// -----------------------------
// Marketplace
// -----------------------------

func (h *Handler) ListSwappableSlots(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	slots, err := h.swaps.ListSwappableSlots(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, slots)
}

func (h *Handler) ListSwapRequests(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	reqs, err := h.swaps.ListSwapRequests(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, reqs)
}

// -----------------------------
// Swap requests
// -----------------------------

type SwapRequestBody struct {
	MySlotID    string `json:"mySlotId" binding:"required"`
	TheirSlotID string `json:"theirSlotId" binding:"required"`
}

func (h *Handler) ProposeSwap(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	var body SwapRequestBody
	if err := bindJSON(c, &body); err != nil {
		h.fail(c, err)
		return
	}
	mySlot, err := parseID(body.MySlotID, "mySlotId")
	if err != nil {
		h.fail(c, err)
		return
	}
	theirSlot, err := parseID(body.TheirSlotID, "theirSlotId")
	if err != nil {
		h.fail(c, err)
		return
	}

	req, err := h.swaps.ProposeSwap(c.Request.Context(), userID, mySlot, theirSlot)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, req)
}

// SwapResponseBody uses *bool so an explicit false is told apart from a
// missing field.
type SwapResponseBody struct {
	Accept *bool `json:"accept" binding:"required"`
}

func (h *Handler) RespondToSwap(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	requestID, err := parseID(c.Param("requestId"), "request id")
	if err != nil {
		h.fail(c, err)
		return
	}

	var body SwapResponseBody
	if err := bindJSON(c, &body); err != nil {
		h.fail(c, err)
		return
	}

	status, err := h.swaps.RespondToSwap(c.Request.Context(), userID, requestID, *body.Accept)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *Handler) CancelSwap(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	requestID, err := parseID(c.Param("requestId"), "request id")
	if err != nil {
		h.fail(c, err)
		return
	}

	status, err := h.swaps.CancelSwap(c.Request.Context(), userID, requestID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}
