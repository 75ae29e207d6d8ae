package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/dockpilot/management-api/internal/config"
	"github.com/dockpilot/management-api/internal/engine"
	"github.com/dockpilot/management-api/internal/logging"
	"github.com/dockpilot/management-api/internal/metrics"
	"github.com/dockpilot/management-api/internal/middleware"
	"github.com/dockpilot/management-api/internal/routes"
	"github.com/dockpilot/management-api/internal/store"
	"github.com/dockpilot/management-api/pkg/errors"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logging.New(cfg)

	// Initialize metrics
	if err := metrics.Init(); err != nil {
		logger.WithError(err).Fatal("Failed to initialize metrics")
	}

	// Initialize tracing
	tracingShutdown, err := middleware.InitTracing(&cfg.Observability, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to setup tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingShutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Failed to shutdown tracing")
		}
	}()

	// Set global text map propagator for distributed tracing
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Management API",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorHandler: errorHandler(logger),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Requested-With,Idempotency-Key,X-Trace-Id",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	app.Use(otelfiber.Middleware())

	// pprof for memory profiling (accessible at /debug/pprof/)
	app.Use(pprof.New())

	// Initialize middleware manager
	middlewareManager, err := middleware.NewManager(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize middleware manager")
	}
	defer middlewareManager.Close()

	// Initialize AWS SDK and DynamoDB-backed stores
	dynamoClient, err := initializeDynamoDB(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize DynamoDB client")
	}
	users := store.NewDynamoUsers(dynamoClient, cfg.DynamoDB.UsersTableName, logger)
	containers := store.NewDynamoContainers(dynamoClient, cfg.DynamoDB.ContainersTableName, logger)

	// Connect to the Docker daemon
	dockerEngine, err := engine.NewDockerEngine(&cfg.Docker, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize Docker engine")
	}

	// Setup routes
	routes.Setup(app, cfg, logger, middlewareManager, users, containers, dockerEngine)

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		logger.Info("Gracefully shutting down...")
		if err := app.Shutdown(); err != nil {
			logger.WithError(err).Error("Server shutdown failed")
		}
	}()

	// Start server
	logger.WithField("port", cfg.Server.Port).Info("Starting Management API server")
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}

// errorHandler turns errors that escape the handlers into the standard
// envelope. Typed application errors keep their code; everything else is an
// opaque 500.
func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		errorCode := errors.CodeInternalError
		message := "Internal server error"

		if appErr, ok := errors.AsAppError(err); ok {
			code = appErr.HTTPStatus()
			errorCode = appErr.Code
			message = appErr.Message
		} else if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			if code == fiber.StatusNotFound {
				errorCode = errors.CodeNotFound
				message = "The requested resource was not found"
			}
		}

		logging.WithTraceID(logger, c.Get("X-Request-ID")).WithError(err).WithFields(logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
			"status": code,
		}).Error("Request error")

		return c.Status(code).JSON(fiber.Map{
			"error": fiber.Map{
				"code":     errorCode,
				"message":  message,
				"trace_id": c.Get("X-Request-ID"),
			},
		})
	}
}

func initializeDynamoDB(cfg *config.Config, logger *logrus.Logger) (*dynamodb.Client, error) {
	ctx := context.Background()

	// Load AWS config
	var awsCfg aws.Config
	var err error

	if cfg.AWS.Profile != "" {
		// Use specific profile for local development
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.DynamoDB.Region),
			awsconfig.WithSharedConfigProfile(cfg.AWS.Profile),
		)
	} else {
		// IRSA or instance credentials; the SDK resolves these itself
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.DynamoDB.Region),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	creds, credErr := awsCfg.Credentials.Retrieve(ctx)
	if credErr != nil {
		logger.WithError(credErr).Warn("Failed to retrieve credentials (will retry on first API call)")
	} else {
		logger.WithFields(logrus.Fields{
			"provider":          creds.Source,
			"has_session_token": creds.SessionToken != "",
			"region":            cfg.DynamoDB.Region,
		}).Debug("AWS credentials retrieved")
	}

	dynamoClient := dynamodb.NewFromConfig(awsCfg)

	logger.WithFields(logrus.Fields{
		"region":           cfg.DynamoDB.Region,
		"users_table":      cfg.DynamoDB.UsersTableName,
		"containers_table": cfg.DynamoDB.ContainersTableName,
	}).Info("DynamoDB client initialized")

	return dynamoClient, nil
}
