package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CollectOrder handles POST /api/orders/:id/collect.
func (h *Handler) CollectOrder(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	order, err := h.inventory.CollectBattery(c.Request.Context(), orderID, user(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// OrderReady handles POST /api/orders/:id/ready.
func (h *Handler) OrderReady(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.inventory.NotifyReady(c.Request.Context(), orderID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "notification sent"})
}

type notificationRequest struct {
	UserID  int64  `json:"user_id" binding:"required,gt=0"`
	Title   string `json:"title" binding:"required"`
	Message string `json:"message" binding:"required"`
	Level   string `json:"level" binding:"omitempty,oneof=info success warning error"`
}

// SendNotification handles POST /api/notifications.
func (h *Handler) SendNotification(c *gin.Context) {
	var req notificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.inventory.Notify(c.Request.Context(), req.UserID, req.Title, req.Message, req.Level); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "notification sent"})
}
