package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gatepass/gatepass/internal/auth"
	"github.com/gatepass/gatepass/internal/config"
	"github.com/gatepass/gatepass/internal/email"
	"github.com/gatepass/gatepass/internal/handler"
	"github.com/gatepass/gatepass/internal/logger"
	"github.com/gatepass/gatepass/internal/middleware"
	"github.com/gatepass/gatepass/internal/repository"
	"github.com/gatepass/gatepass/internal/router"
	"github.com/gatepass/gatepass/internal/service"
	"github.com/gatepass/gatepass/internal/store"
	"github.com/gatepass/gatepass/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	log.Info().Str("version", version.Version).Msg("starting Gatepass server")

	if err := hashBootPassword(cfg, log); err != nil {
		return err
	}

	st, err := store.New(context.Background(), cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to connect to store: %w", err)
	}
	defer st.Close()
	log.Info().Str("backend", cfg.Store.Backend).Msg("connected to durable store")

	// Redis doubles as the rate limit counter backend when selected
	rdb, _ := st.(*store.Redis)

	requestRepo := repository.NewRequestRepository(st)
	sessionRepo := repository.NewSessionRepository(st)
	deviceRepo := repository.NewDeviceRepository(st)
	auditRepo := repository.NewAuditRepository(st)
	counterRepo := repository.NewCounterRepository(st)

	tokenSvc, err := auth.NewTokenService(cfg.Admin)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	mailer, err := newMailer(cfg, deviceRepo, log)
	if err != nil {
		return err
	}

	auditSvc := service.NewAuditService(auditRepo, cfg, log)
	sessionSvc := service.NewSessionService(sessionRepo, auditSvc, cfg, log)
	requestSvc := service.NewRequestService(requestRepo, sessionSvc, auditSvc, mailer, cfg, log)
	deviceSvc := service.NewDeviceService(deviceRepo, counterRepo, auditSvc, cfg, log)
	notificationSvc := service.NewNotificationService(requestRepo, counterRepo, st, cfg, log)
	adminSvc := service.NewAdminService(tokenSvc, cfg, log)

	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	sweeper := service.NewSweeper(sessionSvc, deviceSvc, cfg, log)
	sweeper.Start(sweepCtx)

	h := handler.New(st, log, cfg, requestSvc, sessionSvc, deviceSvc, auditSvc, notificationSvc, adminSvc)
	stack := middleware.New(rdb, log, cfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.New(h, stack, log, tokenSvc, cfg.Server.CORSOrigins),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Bool("tls", cfg.Server.TLS.Enabled).Msg("HTTP server listening")
		if cfg.Server.TLS.Enabled {
			errc <- srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
			return
		}
		errc <- srv.ListenAndServe()
	}()

	signals, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	case <-signals.Done():
		log.Info().Msg("shutdown signal received")
	}

	// Stop the sweeps before the server so no new audit events arrive
	// while the final flush runs
	stopSweeps()
	sweeper.Wait()

	drain, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(drain); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Flush whatever the badge and audit queues still hold
	notificationSvc.Close()
	auditSvc.Close()

	log.Info().Msg("gatepass stopped")
	return nil
}

// hashBootPassword replaces a plaintext admin password handed in via
// configuration with its hash, so the plaintext never outlives boot.
func hashBootPassword(cfg *config.Config, log *logger.Logger) error {
	if cfg.Admin.Password == "" || cfg.Admin.PasswordHash != "" {
		return nil
	}

	if err := auth.ValidatePassword(cfg.Admin.Password, 0); err != nil {
		log.Warn().Err(err).Msg("admin password is weak")
	}

	hash, err := auth.HashPassword(cfg.Admin.Password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	cfg.Admin.PasswordHash = hash
	cfg.Admin.Password = ""
	return nil
}

// newMailer builds the notification mailer, or nil when email is off.
func newMailer(cfg *config.Config, devices *repository.DeviceRepository, log *logger.Logger) (*service.MailerService, error) {
	if !cfg.Email.Enabled {
		return nil, nil
	}

	sender, err := email.NewGmailSender(context.Background(), email.GmailConfig{
		CredentialsJSON: cfg.Email.Gmail.CredentialsJSON,
		ClientID:        cfg.Email.Gmail.ClientID,
		ClientSecret:    cfg.Email.Gmail.ClientSecret,
		RefreshToken:    cfg.Email.Gmail.RefreshToken,
		SenderAddress:   cfg.Email.Gmail.SenderAddress,
		SenderName:      cfg.Email.Gmail.SenderName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize email sender: %w", err)
	}

	log.Info().Str("sender", cfg.Email.Gmail.SenderAddress).Msg("notification emails enabled")
	return service.NewMailerService(sender, devices, cfg, log), nil
}
