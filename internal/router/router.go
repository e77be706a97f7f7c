package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/nilai-go-api/internal/config"
	"github.com/noah-isme/nilai-go-api/internal/handler"
	"github.com/noah-isme/nilai-go-api/internal/middleware"
	"github.com/noah-isme/nilai-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	BatchHandler      *handler.BatchHandler
	SubmissionHandler *handler.SubmissionHandler
	CriteriaHandler   *handler.CriteriaHandler
	AnalyticsHandler  *handler.AnalyticsHandler
	ActivityHandler   *handler.ActivityHandler
	ProgressHandler   *handler.ProgressHandler
	JWTMiddleware     fiber.Handler
	HealthProbes      map[string]handler.Probe
}

// Register wires the HTTP routes into the fiber application. Read endpoints
// are open; mutations require a JWT, and score overrides plus rubric changes
// additionally require the admin or instructor role.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	staffOnly := middleware.RequireRole("admin", "instructor")

	// Batches: open reads and the progress websocket first, then the
	// authenticated upload and grade-trigger routes on the same prefix.
	if deps.BatchHandler != nil {
		batches := api.Group("/batches")
		deps.BatchHandler.Register(batches)

		if deps.ProgressHandler != nil {
			deps.ProgressHandler.Register(batches)
		}

		protected := api.Group("/batches", jwtMiddleware, middleware.RateLimit("batch-upload", 10, time.Minute))
		deps.BatchHandler.RegisterProtected(protected)
	}

	// Submissions
	if deps.SubmissionHandler != nil {
		submissions := api.Group("/submissions")
		deps.SubmissionHandler.Register(submissions)

		authenticated := api.Group("/submissions", jwtMiddleware)
		deps.SubmissionHandler.RegisterProtected(authenticated)

		staff := api.Group("/submissions", jwtMiddleware, staffOnly)
		deps.SubmissionHandler.RegisterStaff(staff)
	}

	// Criteria
	if deps.CriteriaHandler != nil {
		criteria := api.Group("/criteria")
		deps.CriteriaHandler.Register(criteria)

		staff := api.Group("/criteria", jwtMiddleware, staffOnly)
		deps.CriteriaHandler.RegisterProtected(staff)
	}

	// Analytics
	if deps.AnalyticsHandler != nil {
		analytics := api.Group("/analytics")
		deps.AnalyticsHandler.Register(analytics)
	}

	// Activities and their live stream
	if deps.ActivityHandler != nil {
		activities := api.Group("/activities")
		deps.ActivityHandler.Register(activities)
	}
}
