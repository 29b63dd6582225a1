package cli

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"momentum-quiz-service/internal/config"
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "momentum-quiz",
		Short:        "Step quiz engine for Momentum lead qualification",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// A local .env is optional; real environment variables win.
			_ = godotenv.Load()
			setupLogging(cmd)
		},
	}

	cmd.PersistentFlags().String("config", "config/config.yaml", "path to YAML config")
	cmd.PersistentFlags().String("port", "", "port to listen on (overrides config)")
	cmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	cmd.PersistentFlags().String("log-format", "text", "log format: text or json")

	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newWorkerCmd())
	cmd.AddCommand(newScoreCmd())
	cmd.AddCommand(newHashPasswordCmd())
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var level slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// viperForCmd binds a command's flags and MOMENTUM_* environment variables to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("MOMENTUM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig reads the YAML file and applies flag and environment overrides on top.
// Secrets are expected to arrive through the environment.
func loadConfig(cmd *cobra.Command) (config.Config, *viper.Viper, error) {
	v := viperForCmd(cmd)
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return cfg, v, err
	}

	override(&cfg.Server.Port, v, "port")
	override(&cfg.Redis.Addr, v, "redis-addr")
	override(&cfg.Redis.Password, v, "redis-password")
	override(&cfg.Postgres.URL, v, "postgres-url")
	override(&cfg.SQLite.Path, v, "sqlite-path")
	override(&cfg.Quiz.DefinitionsDir, v, "definitions-dir")
	override(&cfg.Mailgun.APIKey, v, "mailgun-api-key")
	override(&cfg.SMTP.Password, v, "smtp-password")
	override(&cfg.Telegram.Token, v, "telegram-token")
	override(&cfg.Admin.PasswordHash, v, "admin-password-hash")
	override(&cfg.Admin.JWTSecret, v, "jwt-secret")
	if v.IsSet("telegram-chat-id") {
		cfg.Telegram.ChatID = v.GetInt64("telegram-chat-id")
	}
	if v.IsSet("queue-enabled") {
		cfg.Queue.Enabled = v.GetBool("queue-enabled")
	}
	return cfg, v, nil
}

func override(dst *string, v *viper.Viper, key string) {
	if s := v.GetString(key); s != "" {
		*dst = s
	}
}
