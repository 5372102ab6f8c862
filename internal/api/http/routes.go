package httpapi

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/space-weather-aggregation/internal/spaceweather"
)

var validate = validator.New()

const (
	defaultKpLimit    = 8
	defaultMaxKpLimit = 24
)

// SnapshotProvider is what the page layer consumes: a read path and a manual refresh trigger.
type SnapshotProvider interface {
	GetSnapshotForDisplay(ctx context.Context) spaceweather.Snapshot
	ForceRefresh(ctx context.Context) spaceweather.Snapshot
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. maxKpLimit caps the
// Kp history limit query and should match the configured history length.
func RegisterRoutes(app *fiber.App, provider SnapshotProvider, maxKpLimit int) {
	if maxKpLimit <= 0 {
		maxKpLimit = defaultMaxKpLimit
	}

	v1 := app.Group("/api/v1/space-weather")

	v1.Get("/", func(c *fiber.Ctx) error {
		snapshot := provider.GetSnapshotForDisplay(c.UserContext())
		return c.JSON(snapshot)
	})

	v1.Post("/refresh", func(c *fiber.Ctx) error {
		snapshot := provider.ForceRefresh(c.UserContext())
		resp := newRefreshResponse(snapshot)
		if !resp.OK {
			return c.Status(fiber.StatusBadGateway).JSON(resp)
		}
		return c.JSON(resp)
	})

	v1.Get("/kp", func(c *fiber.Ctx) error {
		q, err := parseKpQuery(c, maxKpLimit)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		kp := provider.GetSnapshotForDisplay(c.UserContext()).Kp
		history := kp.History
		if len(history) > q.Limit {
			history = history[len(history)-q.Limit:]
		}

		return c.JSON(fiber.Map{
			"status":  kp.Status,
			"current": kp.Current,
			"history": history,
		})
	})
}

// refreshResponse is the compact summary returned by the manual refresh endpoint.
type refreshResponse struct {
	OK             bool     `json:"ok"`
	GeneratedAt    string   `json:"generatedAt"`
	Degraded       bool     `json:"degraded"`
	SolarWindSpeed *float64 `json:"solarWindSpeed"`
	Bz             *float64 `json:"bz"`
	Kp             *float64 `json:"kp"`
	GScale         string   `json:"gScale"`
	Error          string   `json:"error,omitempty"`
}

func newRefreshResponse(s spaceweather.Snapshot) refreshResponse {
	resp := refreshResponse{
		OK:             s.LiveFeeds() > 0,
		GeneratedAt:    s.GeneratedAt.Format(time.RFC3339),
		Degraded:       s.Degraded,
		SolarWindSpeed: s.SolarWind.Speed,
		Bz:             s.SolarWind.Bz,
		Kp:             s.Kp.Current,
		GScale:         s.Scales.G.Scale,
	}
	if !resp.OK {
		resp.Error = "all upstream feeds failed"
	}
	return resp
}

// kpQuery holds query parameters for the Kp history endpoint.
type kpQuery struct {
	Limit int
}

func parseKpQuery(c *fiber.Ctx, maxLimit int) (kpQuery, error) {
	q := kpQuery{Limit: min(defaultKpLimit, maxLimit)}

	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, fiber.NewError(fiber.StatusBadRequest, "limit must be an integer")
		}
		q.Limit = n
	}

	if err := validate.Var(q.Limit, fmt.Sprintf("min=1,max=%d", maxLimit)); err != nil {
		return q, fmt.Errorf("limit must be between 1 and %d", maxLimit)
	}
	return q, nil
}
