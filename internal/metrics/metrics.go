package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Redirect outcomes.
const (
	OutcomeRedirected = "redirected"
	OutcomeNotFound   = "not_found"
	OutcomeGone       = "gone"
)

var (
	Redirects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shorty_redirects_total",
			Help: "Short code resolutions by outcome",
		},
		[]string{"outcome"},
	)

	LinksCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shorty_links_created_total",
			Help: "Total number of links created",
		},
	)

	LinksDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shorty_links_deleted_total",
			Help: "Total number of links deleted",
		},
	)

	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shorty_users_registered_total",
			Help: "Total number of registered users",
		},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shorty_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route", "status"},
	)
)

// Middleware records the duration of every request under its route pattern.
// Errors are handed to the echo error handler here so the recorded status is
// the one written to the client.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			RequestDuration.
				WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(c.Response().Status)).
				Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
