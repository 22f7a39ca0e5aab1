package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var requests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feedsnap_http_requests_total",
	Help: "HTTP requests served by route and status",
}, []string{"route", "status"})

// MetricsServer exposes the Prometheus registry on /metrics. It runs on its
// own listener so the feed routes keep answering 404 for unknown paths.
func MetricsServer() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	return app
}
