package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"momentum-quiz-service/internal/app"
	"momentum-quiz-service/internal/config"
	"momentum-quiz-service/internal/infra/files"
	"momentum-quiz-service/internal/infra/memory"
	"momentum-quiz-service/internal/infra/postgres"
	redisstore "momentum-quiz-service/internal/infra/redis"
	"momentum-quiz-service/internal/infra/sqlite"
	"momentum-quiz-service/internal/notify"
)

// backends holds the external connections a process opened. close releases them in reverse order.
type backends struct {
	redis   *redis.Client
	pool    *pgxpool.Pool
	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = b.redis.Close() })
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
		b.closers = append(b.closers, pool.Close)
	}
	return b, nil
}

// quizRepository prefers definitions stored in postgres, then YAML files, cached in redis or memory.
func (b *backends) quizRepository(cfg config.Config) app.QuizRepository {
	var loader memory.QuizLoader = files.NewQuizLoader(cfg.Quiz.DefinitionsDir)
	if b.pool != nil {
		loader = memory.FallbackQuizLoader{postgres.NewQuizLoader(b.pool), loader}
	}
	ttl := config.Duration(cfg.Quiz.TTL, 10*time.Minute)
	if b.redis != nil {
		return redisstore.NewQuizRepository(b.redis, loader, ttl)
	}
	return memory.NewQuizRepository(loader, ttl)
}

func (b *backends) sessionStore(ctx context.Context, cfg config.Config) app.SessionRepository {
	ttl := config.Duration(cfg.Redis.TTL, 30*time.Minute)
	if b.redis != nil {
		return redisstore.NewSessionStore(b.redis, ttl)
	}
	store := memory.NewSessionStore(ttl)
	go sweepSessions(ctx, store, ttl)
	return store
}

func sweepSessions(ctx context.Context, store *memory.SessionStore, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(); n > 0 {
				slog.Debug("expired quiz sessions removed", "count", n)
			}
		}
	}
}

// recordStore picks postgres, then a local sqlite file, then process memory.
func (b *backends) recordStore(cfg config.Config) (app.RecordStore, error) {
	if b.pool != nil {
		return postgres.NewRecordStore(b.pool), nil
	}
	if cfg.SQLite.Path != "" {
		store, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		b.closers = append(b.closers, func() { _ = store.Close() })
		return store, nil
	}
	slog.Warn("no record store configured, submissions are kept in memory only")
	return memory.NewRecordStore(), nil
}

func (b *backends) flagStore() app.FlagStore {
	if b.redis != nil {
		return redisstore.NewFlagStore(b.redis)
	}
	return memory.NewFlagStore()
}

// newNotifier builds the synchronous delivery path from whichever providers are configured.
func newNotifier(cfg config.Config, logger *slog.Logger) (*notify.Notifier, error) {
	renderer, err := notify.NewRenderer()
	if err != nil {
		return nil, err
	}

	var email notify.EmailSender
	switch {
	case cfg.Mailgun.APIKey != "" && cfg.Mailgun.Domain != "":
		email = notify.NewMailgunSender(cfg.Mailgun.Domain, cfg.Mailgun.APIKey, cfg.Mailgun.From, cfg.Mailgun.BaseURL)
		logger.Info("applicant email via mailgun", "domain", cfg.Mailgun.Domain)
	case cfg.SMTP.Host != "":
		email = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			FromName: cfg.SMTP.FromName,
		}, logger)
		logger.Info("applicant email via smtp", "host", cfg.SMTP.Host)
	default:
		email = notify.NewLogSender(logger)
	}

	var alerts notify.Alerter = notify.NewLogSender(logger)
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		tg, err := notify.NewTelegramSender(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		alerts = tg
		logger.Info("staff alerts via telegram")
	}
	return notify.NewNotifier(renderer, email, alerts), nil
}
