package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"battery-swap-backend/internal/subscription"
)

// ListPlans handles GET /api/plans.
func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.enforcer.ListPlans(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

type subscribeRequest struct {
	PlanID         int64 `json:"plan_id" binding:"required,gt=0"`
	DurationMonths int   `json:"duration_months"`
}

// Subscribe handles POST /api/subscribe.
func (h *Handler) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Subscription creation failed",
			"errors":  gin.H{"plan_id": []string{"A valid plan_id is required."}},
		})
		return
	}
	if req.DurationMonths == 0 {
		req.DurationMonths = 1
	}

	sub, err := h.enforcer.Subscribe(c.Request.Context(), user(c).ID, req.PlanID, req.DurationMonths)
	if err != nil {
		if errors.Is(err, subscription.ErrPlanNotFound) || errors.Is(err, subscription.ErrPlanInactive) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "Subscription creation failed",
				"errors":  gin.H{"plan_id": []string{"Invalid plan or plan is not active"}},
			})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"message":      "Subscription created successfully",
		"subscription": sub,
	})
}

// MySubscription handles GET /api/my-subscription.
func (h *Handler) MySubscription(c *gin.Context) {
	sub, err := h.enforcer.MySubscription(c.Request.Context(), user(c).ID)
	if err != nil {
		if errors.Is(err, subscription.ErrNoSubscription) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "No active subscription found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "subscription": sub})
}

// SubscriptionStatus handles GET /api/subscription-status.
func (h *Handler) SubscriptionStatus(c *gin.Context) {
	status, err := h.enforcer.Status(c.Request.Context(), user(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
