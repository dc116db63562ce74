package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/cleanbook/internal/application"
	"github.com/example/cleanbook/internal/config"
	httptransport "github.com/example/cleanbook/internal/http"
	"github.com/example/cleanbook/internal/logging"
	"github.com/example/cleanbook/internal/persistence/sqlite"
)

func main() {
	logger := logging.NewLogger(os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := sqlite.Migrate(context.Background(), pool); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	now := time.Now

	businessRepo := sqlite.NewBusinessRepository(pool)
	frequencyRepo := sqlite.NewFrequencyRepository(pool)
	seriesRepo := sqlite.NewSeriesRepository(pool)
	bookingRepo := sqlite.NewBookingRepository(pool)

	notifier := logNotifier{logger: logger}
	businessService := application.NewBusinessService(businessRepo, frequencyRepo, idGenerator, now, logger)
	bookingService := application.NewBookingServiceWithLogger(bookingRepo, seriesRepo, frequencyRepo, notifier, idGenerator, now, logger)

	if cfg.BootstrapConfigured() {
		if err := seedBootstrapTenant(context.Background(), businessService, cfg); err != nil {
			logger.Error("failed to seed bootstrap tenant", "error", err)
			os.Exit(1)
		}
	}

	bookingHandler := httptransport.NewBookingHandler(bookingService, logger)
	seriesHandler := httptransport.NewSeriesHandler(bookingService, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Bookings: bookingHandler,
		Series:   seriesHandler,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequireAPIKey(businessService, logger),
		},
	})
	handler := httptransport.RequestLogger(logger)(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("booking API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// seedBootstrapTenant ensures the configured first tenant exists with a
// default frequency catalog. An existing tenant is left untouched.
func seedBootstrapTenant(ctx context.Context, businesses *application.BusinessService, cfg config.Config) error {
	account, err := businesses.EnsureBusiness(ctx, application.CreateBusinessParams{
		ID:       cfg.BootstrapBusinessID,
		Name:     cfg.BootstrapBusinessName,
		Industry: "cleaning",
		APIKey:   cfg.BootstrapAPIKey,
	})
	if err != nil {
		return err
	}

	return businesses.SetFrequencies(ctx, account.ID, []application.FrequencyEntry{
		{Name: "Weekly", Repeats: "7 days"},
		{Name: "Every Other Week", Repeats: "14 days"},
		{Name: "Every 4 Weeks", Repeats: "28 days"},
		{Name: "Monthly", Repeats: "1 month"},
	})
}

// logNotifier records series creation events in the service log. A
// production deployment can swap in an email or chat integration.
type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) NotifyAdmin(ctx context.Context, businessID, message string) error {
	n.logger.InfoContext(ctx, "admin notification", "business_id", businessID, "message", message)
	return nil
}
