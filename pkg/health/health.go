package health

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/micromart/services/pkg/db"
	"github.com/micromart/services/pkg/peerclient"
)

type Handler struct {
	Service string
	DB      *gorm.DB
	// Peers are probed independently; a failing peer shows up under
	// dependencies but does not flip the top-level status. That mirrors the
	// original system's behavior, questionable as it is.
	Peers   map[string]*peerclient.Client
	started time.Time
}

func NewHandler(service string, database *gorm.DB, peers map[string]*peerclient.Client) *Handler {
	return &Handler{
		Service: service,
		DB:      database,
		Peers:   peers,
		started: time.Now(),
	}
}

type Response struct {
	Status       string            `json:"status"`
	Service      string            `json:"service"`
	Timestamp    time.Time         `json:"timestamp"`
	Uptime       float64           `json:"uptime"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

func (h *Handler) Check(c echo.Context) error {
	ctx := c.Request().Context()

	resp := Response{
		Status:    "healthy",
		Service:   h.Service,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.started).Seconds(),
	}

	status := http.StatusOK
	if err := db.Ping(ctx, h.DB); err != nil {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	if len(h.Peers) > 0 {
		resp.Dependencies = make(map[string]string, len(h.Peers))
		for name, peer := range h.Peers {
			if err := peer.Health(ctx); err != nil {
				resp.Dependencies[name] = "unhealthy"
			} else {
				resp.Dependencies[name] = "healthy"
			}
		}
	}

	return c.JSON(status, resp)
}
