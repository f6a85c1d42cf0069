package tours

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/wanderplan/internal/app/models"
)

type Handlers struct {
	logger  *zap.Logger
	service Service
}

func NewHandlers(service Service, logger *zap.Logger) *Handlers {
	return &Handlers{logger: logger, service: service}
}

// RegisterRoutes mounts the planning endpoints on the API group.
func (h *Handlers) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/tours/generate", h.GenerateTour)
	rg.GET("/cities", h.ListCities)
}

// GenerateTour handles POST /api/v1/tours/generate. The reply is always a
// single envelope: a complete tour or one error, never a partial plan.
func (h *Handlers) GenerateTour(c *gin.Context) {
	var request models.TourRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.Warn("rejecting malformed tour request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid request body: " + err.Error(),
		})
		return
	}

	tour, info, err := h.service.GenerateTour(c.Request.Context(), request)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, models.ErrInvalidRequest):
			status = http.StatusBadRequest
		case errors.Is(err, models.ErrCatalogUnavailable):
			status = http.StatusBadGateway
		}
		h.logger.Error("tour generation failed",
			zap.Int("status", status),
			zap.String("user_id", request.UserID),
			zap.Int("destination_city_id", request.DestinationCityID),
			zap.Error(err))
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"data":                tour,
		"recommendation_info": info,
	})
}

// ListCities handles GET /api/v1/cities.
func (h *Handlers) ListCities(c *gin.Context) {
	cities, err := h.service.Cities(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrCatalogUnavailable) {
			status = http.StatusBadGateway
		}
		h.logger.Error("city list failed", zap.Error(err))
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": cities})
}
