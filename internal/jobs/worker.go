package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
)

// Worker runs the asynq server that processes notification tasks.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

func NewWorker(redisAddr, redisPassword string, redisDB int, d Deliverer, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr, Password: redisPassword, DB: redisDB}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			queueCritical: 6,
			queueDefault:  3,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Warn("job failed", "type", task.Type(), "error", err)
		}),
		Logger: newAsynqLogger(logger),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDeliverNotification, HandleDeliver(d, logger))

	return &Worker{server: server, mux: mux, log: logger}
}

// Run blocks until the server receives a termination signal.
func (w *Worker) Run() error {
	w.log.Info("starting notification worker")
	return w.server.Run(w.mux)
}

// NewClient opens an asynq client for the queue side.
func NewClient(redisAddr, redisPassword string, redisDB int) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr, Password: redisPassword, DB: redisDB})
}

// asynqLogger adapts slog to asynq.Logger. Fatal exits the process.
type asynqLogger struct {
	log  *slog.Logger
	exit func(code int)
}

func newAsynqLogger(logger *slog.Logger) *asynqLogger {
	return &asynqLogger{log: logger, exit: os.Exit}
}

func (l *asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...interface{}) {
	l.log.Error(fmt.Sprint(args...))
	l.exit(1)
}
