package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"battery-swap-backend/internal/broadcast"
)

// ListStations handles GET /api/stations.
func (h *Handler) ListStations(c *gin.Context) {
	stations, err := h.inventory.Stations(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stations)
}

// NearbyStations handles GET /api/stations/nearby?latitude=&longitude=[&radius_km=&limit=].
func (h *Handler) NearbyStations(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("latitude"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("longitude"), 64)
	if errLat != nil || errLon != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitude and longitude are required"})
		return
	}
	radius, _ := strconv.ParseFloat(c.DefaultQuery("radius_km", "0"), 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	stations, err := h.inventory.NearbyStations(c.Request.Context(), lat, lon, radius, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stations)
}

// GetStation handles GET /api/stations/:id.
func (h *Handler) GetStation(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	st, err := h.inventory.Station(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type createStationRequest struct {
	Name      string   `json:"name" binding:"required"`
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

// CreateStation handles POST /api/stations.
func (h *Handler) CreateStation(c *gin.Context) {
	var req createStationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := h.inventory.CreateStation(c.Request.Context(), req.Name, *req.Latitude, *req.Longitude)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

type createBatteryRequest struct {
	VehicleID int64           `json:"vehicle_id" binding:"required,gt=0"`
	Price     decimal.Decimal `json:"price"`
}

// CreateBattery handles POST /api/batteries. The battery belongs to the
// producer's company.
func (h *Handler) CreateBattery(c *gin.Context) {
	var req createBatteryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	producer := user(c)
	if producer.CompanyID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "producer account has no company"})
		return
	}
	b, err := h.inventory.CreateBattery(c.Request.Context(), *producer.CompanyID, req.VehicleID, req.Price)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

type addBatteryRequest struct {
	BatteryID int64 `json:"battery_id" binding:"required,gt=0"`
}

// AddBattery handles POST /api/stations/:id/batteries.
func (h *Handler) AddBattery(c *gin.Context) {
	stationID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req addBatteryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := h.inventory.AddBattery(c.Request.Context(), stationID, req.BatteryID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// RemoveBattery handles DELETE /api/stations/:id/batteries/:battery_id.
func (h *Handler) RemoveBattery(c *gin.Context) {
	stationID, ok := idParam(c, "id")
	if !ok {
		return
	}
	batteryID, ok := idParam(c, "battery_id")
	if !ok {
		return
	}
	if err := h.inventory.RemoveBattery(c.Request.Context(), stationID, batteryID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearStation handles DELETE /api/stations/:id/batteries.
func (h *Handler) ClearStation(c *gin.Context) {
	stationID, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.inventory.ClearStation(c.Request.Context(), stationID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type bookRequest struct {
	BatteryID int64 `json:"battery_id" binding:"required,gt=0"`
}

// BookBattery handles POST /api/stations/:id/book.
func (h *Handler) BookBattery(c *gin.Context) {
	stationID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := h.inventory.BookBattery(c.Request.Context(), stationID, req.BatteryID, user(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

type statusRequest struct {
	Status  string  `json:"status" binding:"required"`
	Message *string `json:"message"`
}

// SetStationStatus handles PUT /api/stations/:id/status.
func (h *Handler) SetStationStatus(c *gin.Context) {
	stationID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.inventory.SetStatus(c.Request.Context(), stationID, req.Status, req.Message); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": req.Status})
}

type broadcastRequest struct {
	Action string `json:"action"`
}

// TestBroadcast handles POST /api/stations/:id/broadcast.
func (h *Handler) TestBroadcast(c *gin.Context) {
	stationID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req broadcastRequest
	// An empty body means the default "test" action.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if err := h.inventory.TestBroadcast(c.Request.Context(), stationID, broadcast.Action(req.Action)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "broadcast sent"})
}
