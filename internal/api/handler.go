package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"battery-swap-backend/internal/inventory"
	"battery-swap-backend/internal/model"
	"battery-swap-backend/internal/mw"
	"battery-swap-backend/internal/store"
	"battery-swap-backend/internal/subscription"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	inventory *inventory.Service
	enforcer  *subscription.Enforcer
	webpush   *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, inv *inventory.Service, enforcer *subscription.Enforcer, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:     s,
		inventory: inv,
		enforcer:  enforcer,
		webpush:   webpushOptions,
	}
}

// user returns the caller attached by mw.Identity. Routes using it sit
// behind mw.RequireUser.
func user(c *gin.Context) model.User {
	u, _ := mw.CurrentUser(c)
	if u == nil {
		return model.User{}
	}
	return *u
}

// idParam parses a positive integer path parameter, writing a 400 on failure.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var denied *inventory.DeniedError
	switch {
	case errors.As(err, &denied):
		c.JSON(http.StatusForbidden, gin.H{"error": denied.Reason})
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, subscription.ErrNoSubscription):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, inventory.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrBatteryUnavailable),
		errors.Is(err, store.ErrBatteryStocked),
		errors.Is(err, store.ErrAlreadyCollected),
		errors.Is(err, store.ErrEndpointOwned):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, inventory.ErrInvalidInput),
		errors.Is(err, subscription.ErrPlanNotFound),
		errors.Is(err, subscription.ErrPlanInactive):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Str("request_id", mw.GetRequestID(c)).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
