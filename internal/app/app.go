// Package app assembles the geoimport HTTP server from its configuration
package app

import (
	"context"
	"errors"
	"fmt"

	fiber "github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/celestiaorg/geoimport/internal/config"
	"github.com/celestiaorg/geoimport/internal/converter"
	"github.com/celestiaorg/geoimport/internal/db"
	"github.com/celestiaorg/geoimport/internal/db/repos"
	"github.com/celestiaorg/geoimport/internal/events"
	"github.com/celestiaorg/geoimport/internal/logger"
	"github.com/celestiaorg/geoimport/internal/services"
	"github.com/celestiaorg/geoimport/internal/types"
	"github.com/celestiaorg/geoimport/pkg/api/v1/handlers"
	"github.com/celestiaorg/geoimport/pkg/api/v1/middleware"
	"github.com/celestiaorg/geoimport/pkg/api/v1/routes"
)

// bodyLimitSlack leaves room for the multipart envelope around an upload
const bodyLimitSlack = 1 << 20

// Server is the running geoimport API with the import pipeline behind it
type Server struct {
	cfg     *config.Config
	db      *gorm.DB
	bus     *events.Bus
	imports *services.Import
	app     *fiber.App
	stopBus context.CancelFunc
}

// New connects the database and wires the pipeline and the HTTP routes
func New(cfg *config.Config) (*Server, error) {
	gdb, err := db.New(cfg.DBOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewWithDB(cfg, gdb), nil
}

// NewWithDB wires the server over an already opened database
func NewWithDB(cfg *config.Config, gdb *gorm.DB) *Server {
	bus := events.NewBus(0)
	imports := services.NewImport(
		repos.NewStore(gdb),
		converter.NewValidator(cfg.MaxUploadMB<<20),
		converter.New(),
		bus,
		cfg.ImportConfig(),
	)

	app := fiber.New(fiber.Config{
		AppName:      "geoimport",
		BodyLimit:    int(cfg.MaxUploadMB<<20) + bodyLimitSlack,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(middleware.Logger())

	// Register versioned routes
	api := handlers.NewAPIHandler(imports)
	routes.RegisterRoutes(app,
		handlers.NewImportHandler(api),
		handlers.NewJobHandler(api),
		handlers.NewFeatureHandler(api),
		handlers.NewEventHandler(bus),
	)

	return &Server{
		cfg:     cfg,
		db:      gdb,
		bus:     bus,
		imports: imports,
		app:     app,
	}
}

// App returns the fiber application
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the event bus and the background sweeps
func (s *Server) Start(ctx context.Context) {
	busCtx, cancel := context.WithCancel(ctx)
	s.stopBus = cancel
	s.bus.Start(busCtx)
	s.imports.Start()
}

// Listen serves HTTP until Shutdown is called
func (s *Server) Listen() error {
	addr := ":" + s.cfg.ServerPort
	logger.Infof("🚀 geoimport API listening on %s", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests, cancels outstanding jobs, waits for the
// workers and closes the database
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop http server: %w", err))
	}
	if err := s.imports.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to drain jobs: %w", err))
	}
	if s.stopBus != nil {
		s.stopBus()
	}
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	if dropped := s.bus.Dropped(); dropped > 0 {
		logger.Warnf("%d events were dropped because the event buffer was full", dropped)
	}
	return errors.Join(errs...)
}

// customErrorHandler answers errors no handler turned into a response,
// such as unknown routes or oversized bodies, with the usual envelope
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	switch {
	case code == fiber.StatusNotFound:
		return c.Status(code).JSON(types.ErrNotFoundResponse(err.Error()))
	case code < fiber.StatusInternalServerError:
		return c.Status(code).JSON(types.ErrInvalidInput(err.Error()))
	}

	logger.ErrorWithFields("unhandled request error", map[string]interface{}{
		"method": c.Method(),
		"path":   c.Path(),
		"error":  err.Error(),
	})
	return c.Status(code).JSON(types.ErrServer(handlers.ErrMsgInternal))
}
