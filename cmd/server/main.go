package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"spinwheel/internal/config"
	"spinwheel/internal/database"
	"spinwheel/internal/handlers"
	"spinwheel/internal/logger"
	"spinwheel/internal/notify"
	"spinwheel/internal/services"
	"spinwheel/internal/web"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logOut, err := logger.New(cfg.LogDir, cfg.LogLevel, logger.RunningInTTY())
	if err != nil {
		log.Fatalf("Failed to start logger: %v", err)
	}
	defer logOut.Sync()

	// 2. Init DB
	db, err := database.Open(cfg, logOut)
	if err != nil {
		logOut.Fatalf("Failed to init DB: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logOut.Fatalf("Failed to get DB handle: %v", err)
	}
	defer sqlDB.Close()
	store := database.NewSpinStore(db)

	// 3. Coupon mail runs on its own workers, never on the request path
	mailer := notify.NewSMTPMailer(cfg)
	if !mailer.Configured() {
		logOut.Warnw("mail transport not configured, coupons will not be emailed",
			"smtp_user", cfg.SMTPUser != "", "smtp_password", cfg.SMTPPassword != "")
	}
	dispatcher := notify.NewDispatcher(mailer, logOut, cfg.NotifyWorkers, cfg.NotifyQueue, 2*cfg.SMTPTimeout)
	dispatcher.Start()

	svc := services.NewSpinService(cfg, store, dispatcher, logOut)

	// 4. API Server & HTML Renderer
	e := echo.New()
	e.HideBanner = true
	e.Use(web.RequestLogger(logOut))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("16K"))

	renderer, err := web.NewTemplateRenderer(cfg.TemplatesDir, "index.html")
	if err != nil {
		logOut.Warnw("wheel page disabled", "templates", cfg.TemplatesDir, "err", err)
	} else {
		e.Renderer = renderer
	}

	// Static files for Web UI
	e.Static("/static", cfg.StaticDir)

	api := e.Group("/api")
	handlers.RegisterRoutes(e, api, svc, store, cfg)

	srv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logOut.Infow("spinwheel starting",
			"addr", srv.Addr,
			"health", "/api/health",
			"spins", "/api/spins",
		)
		if err := e.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logOut.Infow("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logOut.Errorw("http shutdown", "err", err)
		}
		if err := dispatcher.Shutdown(shutdownCtx); err != nil {
			logOut.Errorw("notification drain", "err", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logOut.Errorw("server stopped", "err", err)
	}
}
