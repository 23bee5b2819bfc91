package main // main starts the device console API server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/iot-device-console/internal/config"
	"github.com/iliyamo/iot-device-console/internal/database"
	"github.com/iliyamo/iot-device-console/internal/handler"
	"github.com/iliyamo/iot-device-console/internal/queue"
	"github.com/iliyamo/iot-device-console/internal/repository"
	"github.com/iliyamo/iot-device-console/internal/router"
	"github.com/iliyamo/iot-device-console/internal/service"
	"github.com/iliyamo/iot-device-console/internal/simulator"
	"github.com/iliyamo/iot-device-console/internal/utils"
)

func main() {
	// .env is a convenience for local runs; deployed environments set
	// real variables and the file is absent.
	_ = godotenv.Load()

	cfg := config.Load()

	if cfg.Env == "prod" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetLevel(logrus.DebugLevel)
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logrus.WithError(err).Fatal("database connection failed")
	}
	defer func() { _ = db.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.EnsureSchema(ctx, db); err != nil {
		logrus.WithError(err).Fatal("schema migration failed")
	}

	codec := &utils.Codec{
		UserAccessKey:  cfg.JWTAccessSecret,
		UserRefreshKey: cfg.JWTRefreshSecret,
		DeviceKey:      cfg.JWTDeviceSecret,
		UserAccessTTL:  time.Duration(cfg.AccessTTLMin) * time.Minute,
		UserRefreshTTL: time.Duration(cfg.RefreshTTLDays) * 24 * time.Hour,
		DeviceTTL:      time.Duration(cfg.DeviceTTLMin) * time.Minute,
	}

	userRepo := repository.NewUserRepo(db)
	deviceRepo := repository.NewDeviceRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	readingRepo := repository.NewReadingRepo(db)
	eventRepo := repository.NewEventRepo(db)

	secLog := service.NewSecurityLogger(eventRepo, queue.NewPublisher())

	readingSvc := service.NewReadingService(readingRepo, deviceRepo, secLog,
		cfg.PayloadLimitBytes, cfg.MinReadingInterval, cfg.MaxReadingsPage)
	authSvc := service.NewAuthService(userRepo, tokenRepo, codec, cfg.BcryptCost, secLog)
	deviceSvc := service.NewDeviceService(deviceRepo, readingSvc, codec, cfg.BcryptCost, secLog)
	userSvc := service.NewUserService(userRepo, cfg.BcryptCost, secLog)

	if err := authSvc.EnsureAdminExists(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logrus.WithError(err).Fatal("admin bootstrap failed")
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logrus.WithFields(logrus.Fields{
				"method": v.Method,
				"uri":    v.URI,
				"status": v.Status,
			}).Info("request")
			return nil
		},
	}))

	router.Register(e, router.Deps{
		Auth:       handler.NewAuthHandler(authSvc),
		Devices:    handler.NewDeviceHandler(deviceSvc, readingSvc),
		DeviceData: handler.NewDeviceDataHandler(deviceSvc, readingSvc),
		Admin:      handler.NewAdminHandler(userSvc, secLog),
		Health:     handler.NewHealthHandler(db),
		Codec:      codec,
		Users:      userRepo,
		DeviceSvc:  deviceSvc,
		RateLimit:  config.LoadRateLimitConfig(),
		Redis:      rdb,
	})

	// Background workers share the signal-bound context so they stop
	// with the server.
	go queue.StartSecurityEventConsumer(ctx)
	if cfg.SimulatorEnabled {
		go simulator.New(deviceRepo, readingSvc).Run(ctx)
	} else {
		logrus.Info("telemetry simulator disabled")
	}

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("graceful shutdown failed")
	}
}
