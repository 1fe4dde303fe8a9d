package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cuidasalud/cuidasalud/internal/config"
	"github.com/cuidasalud/cuidasalud/internal/domain/directory"
	"github.com/cuidasalud/cuidasalud/internal/domain/notify"
	"github.com/cuidasalud/cuidasalud/internal/domain/vitals"
	"github.com/cuidasalud/cuidasalud/internal/platform/auth"
	"github.com/cuidasalud/cuidasalud/internal/platform/db"
	"github.com/cuidasalud/cuidasalud/internal/platform/mailer"
	"github.com/cuidasalud/cuidasalud/internal/platform/middleware"
)

// directoryAdapter bridges the directory domain to the recipient and link
// interfaces declared locally by vitals and notify, avoiding circular
// imports between the domain packages.
type directoryAdapter struct {
	svc *directory.Service
}

func (a *directoryAdapter) PatientIDsForCaregiver(ctx context.Context, caregiverID uuid.UUID) ([]uuid.UUID, error) {
	patients, err := a.svc.ListPatientsForCaregiver(ctx, caregiverID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(patients))
	for i, p := range patients {
		ids[i] = p.ID
	}
	return ids, nil
}

func (a *directoryAdapter) PatientContact(ctx context.Context, patientID uuid.UUID) (*notify.Contact, error) {
	p, err := a.svc.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return &notify.Contact{ID: p.ID, FullName: p.FullName(), Email: p.Email}, nil
}

func (a *directoryAdapter) ActiveCaregivers(ctx context.Context, patientID uuid.UUID) ([]*notify.Contact, error) {
	links, err := a.svc.ActiveLinksForPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	var contacts []*notify.Contact
	for _, l := range links {
		cg, err := a.svc.GetCaregiver(ctx, l.CaregiverID)
		if err != nil {
			return nil, err
		}
		if !cg.Active {
			continue
		}
		contacts = append(contacts, &notify.Contact{
			ID:       cg.ID,
			FullName: cg.FullName(),
			Email:    cg.Email,
		})
	}
	return contacts, nil
}

// alertNotifierAdapter lets the vitals intake raise fan-out without vitals
// importing notify.
type alertNotifierAdapter struct {
	svc *notify.Service
}

func (a *alertNotifierAdapter) AlertRaised(ctx context.Context, patientID uuid.UUID, severity vitals.Severity, title, message string) error {
	_, err := a.svc.Notify(ctx, patientID, notify.TypeAlerta, severity, title, message)
	return err
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "cuida-server",
		Short: "CuidaSalud patient monitoring API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Email leg: nil queue when SMTP is not configured; the fan-out then
	// records notifications without sending email.
	var dispatcher *mailer.Dispatcher
	var emailQueue notify.EmailQueue
	if cfg.EmailEnabled() {
		sender, err := mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid SMTP configuration")
		}
		dispatcher = mailer.NewDispatcher(sender, cfg.EmailWorkers, cfg.EmailQueueSize, logger)
		defer dispatcher.Close()
		emailQueue = dispatcher
		logger.Info().Str("host", cfg.SMTPHost).Msg("email delivery enabled")
	} else {
		logger.Warn().Msg("SMTP_HOST not set; email delivery is disabled")
	}

	// Repos and services
	dirRepo := directory.NewRepo(pool)
	dirSvc := directory.NewService(dirRepo)
	dirAdapter := &directoryAdapter{svc: dirSvc}

	notifyRepo := notify.NewRepo(pool)
	notifySvc := notify.NewService(notifyRepo, dirAdapter, emailQueue, mailer.NewTemplateEngine(), logger)

	vitalsRepo := vitals.NewRepo(pool)
	txRunner := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}
	vitalsSvc := vitals.NewService(vitalsRepo, txRunner, logger)
	vitalsSvc.SetNotifier(&alertNotifierAdapter{svc: notifySvc})
	vitalsSvc.SetCaregiverDirectory(dirAdapter)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{Secret: []byte(cfg.JWTSecret)}))
	}

	e.Use(middleware.Audit(logger))

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	e.GET("/health", db.HealthHandler(pool))

	directory.NewHandler(dirSvc).RegisterRoutes(apiV1)
	vitals.NewHandler(vitalsSvc).RegisterRoutes(apiV1)
	notify.NewHandler(notifySvc).RegisterRoutes(apiV1)

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	if dispatcher != nil {
		dispatcher.Close()
	}
	return nil
}
