package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"starpath/internal/config"
	"starpath/internal/database"
	"starpath/internal/handlers"
	"starpath/internal/logging"
	"starpath/internal/repository"
	"starpath/internal/service"
)

func main() {
	// Load configuration
	cfg := config.Load()

	if err := logging.Init(cfg.LogLevel, cfg.LogPath); err != nil {
		panic(err)
	}
	defer logging.Logger.Sync()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		logging.Sugar.Fatalw("failed to initialize database", "error", err)
	}
	defer db.Close()

	logging.Sugar.Infow("database connection established", "type", cfg.DatabaseType)

	// Run migrations
	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		logging.Sugar.Fatalw("failed to run migrations", "error", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logging.Sugar.Fatalw("invalid timezone", "timezone", cfg.Timezone, "error", err)
	}

	// Initialize repositories
	childRepo := repository.NewChildRepository(db)
	contentRepo := repository.NewContentRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	courseRepo := repository.NewCourseRepository(db)

	// Initialize services
	notifier, err := service.NewEmailNotifier(cfg.SESRegion, cfg.SESFromEmail, cfg.SESFromName)
	if err != nil {
		logging.Sugar.Fatalw("failed to initialize email notifier", "error", err)
	}

	statsService := service.NewStatsService(statsRepo, badgeRepo, loc)
	unlockService := service.NewUnlockService(courseRepo, progressRepo, cfg.MaxInProgress)
	catalogService := service.NewCatalogService(childRepo, contentRepo, badgeRepo, courseRepo)
	reconcileService := service.NewReconcileService(ledgerRepo, statsRepo)
	rewardService := service.NewRewardService(
		childRepo, contentRepo, progressRepo, ledgerRepo,
		statsService, unlockService, notifier, cfg.DuplicateWindow,
	)

	// Initialize handlers
	childrenHandler := handlers.NewChildrenHandler(catalogService, unlockService)
	contentHandler := handlers.NewContentHandler(catalogService)
	progressHandler := handlers.NewProgressHandler(rewardService)
	statsHandler := handlers.NewStatsHandler(statsService, ledgerRepo, reconcileService)
	courseHandler := handlers.NewCourseHandler(unlockService, courseRepo)

	// Setup routes
	mux := http.NewServeMux()

	// Child registry
	mux.HandleFunc("POST /children", childrenHandler.CreateChild)
	mux.HandleFunc("GET /children", childrenHandler.ListChildren)
	mux.HandleFunc("GET /children/{id}", childrenHandler.GetChild)
	mux.HandleFunc("POST /children/{id}/deactivate", childrenHandler.DeactivateChild)

	// Content, badge and course registries
	mux.HandleFunc("POST /content", contentHandler.RegisterContent)
	mux.HandleFunc("GET /content/{id}", contentHandler.GetContent)
	mux.HandleFunc("PUT /content/{id}", contentHandler.UpdateContent)
	mux.HandleFunc("POST /badges", contentHandler.CreateBadge)
	mux.HandleFunc("GET /badges", contentHandler.ListBadges)
	mux.HandleFunc("POST /courses", contentHandler.CreateCourse)

	// Progress and rewards
	mux.HandleFunc("POST /children/{childID}/content/{contentID}/start", progressHandler.StartContent)
	mux.HandleFunc("POST /children/{childID}/content/{contentID}/interactions", progressHandler.RecordInteraction)
	mux.HandleFunc("GET /children/{childID}/content/{contentID}/progress", progressHandler.GetProgress)
	mux.HandleFunc("POST /admin/children/{childID}/content/{contentID}/reset", progressHandler.ResetProgress)

	// Stats and ledger
	mux.HandleFunc("GET /children/{childID}/stats", statsHandler.GetChildStats)
	mux.HandleFunc("GET /children/{childID}/ledger", statsHandler.GetLedger)
	mux.HandleFunc("GET /admin/reconcile", statsHandler.CheckDrift)
	mux.HandleFunc("POST /admin/reconcile", statsHandler.RepairDrift)

	// Course unlock state
	mux.HandleFunc("GET /children/{childID}/courses", courseHandler.ListCourseProgress)
	mux.HandleFunc("GET /children/{childID}/courses/{courseID}", courseHandler.GetCourseProgress)
	mux.HandleFunc("POST /children/{childID}/courses/assign", courseHandler.AssignCourses)

	handler := handlers.Recover(handlers.LogRequests(mux))

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine so shutdown signals can be handled
	go func() {
		logging.Sugar.Infow("server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Sugar.Fatalw("server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Sugar.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logging.Sugar.Fatalw("server forced to shutdown", "error", err)
	}

	logging.Sugar.Info("server exited")
}
