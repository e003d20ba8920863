package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/sellerbridge/backend/internal/interfaces/http/dto"
)

// DBPinger checks datastore liveness
type DBPinger interface {
	Ping() error
}

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	startTime time.Time
	db        DBPinger
	redis     *redis.Client
}

// NewSystemHandler creates a new SystemHandler. db and redis may be nil,
// in which case the corresponding health component is reported as skipped.
func NewSystemHandler(db DBPinger, redisClient *redis.Client) *SystemHandler {
	return &SystemHandler{
		startTime: time.Now(),
		db:        db,
		redis:     redisClient,
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// GetSystemInfo returns basic system information including version and uptime.
// GET /system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      "SellerBridge Backend API",
		Version:   "1.0.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(info))
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Ping is a simple liveness endpoint.
// GET /system/ping
func (h *SystemHandler) Ping(c *gin.Context) {
	response := PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(response))
}

// HealthResponse reports overall and per-component health
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// Healthz reports service health. The datastore is required: a failing ping
// means 503. A failing cache backend is reported but does not fail the check
// because reads degrade to the datastore.
// GET /healthz
func (h *SystemHandler) Healthz(c *gin.Context) {
	components := map[string]string{}
	status := "ok"
	httpStatus := http.StatusOK

	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			components["database"] = "down"
			status = "unavailable"
			httpStatus = http.StatusServiceUnavailable
		} else {
			components["database"] = "up"
		}
	} else {
		components["database"] = "skipped"
	}

	if h.redis != nil {
		if err := h.redis.Ping(c.Request.Context()).Err(); err != nil {
			components["redis"] = "down"
			if status == "ok" {
				status = "degraded"
			}
		} else {
			components["redis"] = "up"
		}
	} else {
		components["redis"] = "skipped"
	}

	c.JSON(httpStatus, HealthResponse{Status: status, Components: components})
}
