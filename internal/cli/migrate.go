package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"momentum-quiz-service/internal/infra/files"
	"momentum-quiz-service/internal/infra/postgres"
	pgmigrations "momentum-quiz-service/internal/infra/postgres/migrations"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, v, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			if err := runMigrations(cmd.Context(), cfg.Postgres.URL); err != nil {
				return err
			}
			if v.GetBool("seed") {
				return seedQuizzes(cmd.Context(), cfg.Postgres.URL, cfg.Quiz.DefinitionsDir)
			}
			return nil
		},
	}
	cmd.Flags().Bool("seed", false, "upsert the YAML quiz definitions into postgres after migrating")
	return cmd
}

func runMigrations(ctx context.Context, dsn string) error {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		slog.Info("database is up to date")
		return nil
	}
	slog.Info("migrations applied", "group", group.String())
	return nil
}

func seedQuizzes(ctx context.Context, dsn, dir string) error {
	quizzes, err := files.NewQuizLoader(dir).LoadAll()
	if err != nil {
		return err
	}
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := postgres.NewQuizLoader(pool)
	for _, q := range quizzes {
		if err := store.SaveQuiz(ctx, q); err != nil {
			return fmt.Errorf("seed %s: %w", q.ID, err)
		}
		slog.Info("quiz definition seeded", "quiz", q.ID, "steps", len(q.Steps))
	}
	return nil
}
