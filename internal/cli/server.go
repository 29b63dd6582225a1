package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"momentum-quiz-service/internal/app"
	"momentum-quiz-service/internal/config"
	"momentum-quiz-service/internal/i18n"
	"momentum-quiz-service/internal/jobs"
	"momentum-quiz-service/internal/notify"
	transport "momentum-quiz-service/internal/transport/http"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the quiz HTTP and websocket server",
		RunE:  runStart,
	}
	cmd.Flags().Bool("migrate", true, "apply postgres migrations before serving")
	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfg, v, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := slog.Default()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.Postgres.URL != "" && v.GetBool("migrate") {
		if err := runMigrations(ctx, cfg.Postgres.URL); err != nil {
			return err
		}
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	records, err := b.recordStore(cfg)
	if err != nil {
		return err
	}
	catalog, err := i18n.New(cfg.Server.Language, logger)
	if err != nil {
		return err
	}

	notifyTimeout := config.Duration(cfg.Quiz.NotifyTimeout, 20*time.Second)
	var dispatcher app.Dispatcher
	var drain func()
	if cfg.Queue.Enabled && cfg.Redis.Addr != "" {
		client := jobs.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer client.Close()
		dispatcher = jobs.NewQueue(client, notifyTimeout, logger)
		drain = func() {}
		logger.Info("notifications queued for the worker")
	} else {
		notifier, err := newNotifier(cfg, logger)
		if err != nil {
			return err
		}
		async := notify.NewAsyncDispatcher(notifier, notifyTimeout, logger)
		dispatcher, drain = async, async.Wait
	}

	service := app.NewQuizService(b.sessionStore(ctx, cfg), b.quizRepository(cfg), records, app.Options{
		Dispatcher:    dispatcher,
		Flags:         b.flagStore(),
		Copy:          catalog,
		SubmitTimeout: config.Duration(cfg.Quiz.SubmitTimeout, 15*time.Second),
		Credit:        creditConfig(cfg),
		Logger:        logger,
	})

	routes := transport.RouterConfig{
		API:            transport.NewAPIHandler(service, catalog, logger),
		WS:             transport.NewWSHandler(service, transport.OriginChecker(cfg.Server.AllowedOrigins), logger),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	if cfg.Admin.PasswordHash != "" && cfg.Admin.JWTSecret != "" {
		routes.Admin = transport.NewAdminHandler(service, transport.AdminConfig{
			PasswordHash: cfg.Admin.PasswordHash,
			JWTSecret:    []byte(cfg.Admin.JWTSecret),
			TokenTTL:     config.Duration(cfg.Admin.TokenTTL, 12*time.Hour),
		}, logger)
	} else {
		logger.Warn("admin routes disabled, set admin.password_hash and admin.jwt_secret to enable")
	}

	port := cfg.Server.Port
	if port == "" {
		port = "8080"
	}
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      transport.NewRouter(routes),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting quiz service", "addr", server.Addr, "languages", catalog.Languages())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	err = server.Shutdown(shutdownCtx)
	drain()
	return err
}

func creditConfig(cfg config.Config) app.CreditConfig {
	c := app.DefaultCreditConfig()
	if cfg.Credit.HoursPerCredit > 0 {
		c.HoursPerCredit = cfg.Credit.HoursPerCredit
	}
	if cfg.Credit.WeeksPerYear > 0 {
		c.WeeksPerYear = cfg.Credit.WeeksPerYear
	}
	if cfg.Credit.BasePrice > 0 {
		c.BasePrice = cfg.Credit.BasePrice
	}
	if cfg.Credit.PerCreditLow > 0 {
		c.PerCreditLow = cfg.Credit.PerCreditLow
	}
	if cfg.Credit.PerCreditHigh > 0 {
		c.PerCreditHigh = cfg.Credit.PerCreditHigh
	}
	return c
}
