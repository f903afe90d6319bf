package handlers

import (
	"net/http"
	"runtime"

	"github.com/eduexamportal/mailroom/internal/db"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Version is set via ldflags at build time
var Version = "dev"

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status     string `json:"status"`
	InstanceID string `json:"instance_id"`
	Version    string `json:"version"`
	GoVersion  string `json:"go_version"`
}

// HealthCheck godoc
// @Summary Health check
// @Description Reports that the server and its database are reachable
// @Tags system
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} ErrorResponse
// @Router /health [get]
func HealthCheck(database *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		instanceID, err := db.GetOrCreateInstanceID(database)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "database unavailable"})
			return
		}

		c.JSON(http.StatusOK, HealthResponse{
			Status:     "ok",
			InstanceID: instanceID,
			Version:    Version,
			GoVersion:  runtime.Version(),
		})
	}
}
