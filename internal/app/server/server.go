package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mirefox/wallcast/internal/app/repository"
	"github.com/mirefox/wallcast/internal/app/service"
	inthttp "github.com/mirefox/wallcast/internal/http/handler"
	"github.com/mirefox/wallcast/internal/http/middleware"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies bundles infrastructure dependencies required by the HTTP server.
type Dependencies struct {
	Logger      *zap.Logger
	Postgres    *pgxpool.Pool
	Redis       *redis.Client
	NATS        *nats.Conn
	JetStream   nats.JetStreamContext
	Links       repository.LinkRepository
	History     repository.HistoryRepository
	LinkService service.LinkService
	Results     *service.ResultService
	Reactions   *service.ReactionService
	Broadcaster *service.Broadcaster
	Tracker     *service.Tracker
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	app := fiber.New()

	app.Use(middleware.RequestID())
	app.Use(middleware.Recovery(deps.Logger))
	app.Use(middleware.Logger(deps.Logger))
	app.Use(middleware.CORS())
	if deps.Redis != nil {
		app.Use(middleware.RateLimit(deps.Redis, middleware.DefaultRateLimitConfig(), deps.Logger))
	}

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", s.health)

	linkHandler := inthttp.NewLinkHandler(inthttp.LinkDeps{
		Logger:      s.deps.Logger,
		LinkService: s.deps.LinkService,
		History:     s.deps.History,
	})
	linkHandler.Register(s.app)

	searchHandler := inthttp.NewSearchHandler(inthttp.SearchDeps{
		Logger:  s.deps.Logger,
		Results: s.deps.Results,
		Links:   s.deps.Links,
	})
	searchHandler.Register(s.app)

	reactionHandler := inthttp.NewReactionHandler(inthttp.ReactionDeps{
		Logger:      s.deps.Logger,
		Links:       s.deps.Links,
		Reactions:   s.deps.Reactions,
		Broadcaster: s.deps.Broadcaster,
		Tracker:     s.deps.Tracker,
	})
	reactionHandler.Register(s.app)
}

func (s *Server) health(c *fiber.Ctx) error {
	status := "ok"
	code := fiber.StatusOK

	if s.deps.Postgres != nil {
		if err := s.deps.Postgres.Ping(c.Context()); err != nil {
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"service": "wallcast",
		"status":  status,
	})
}
