package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/jhoicas/agro-pos-api/pkg/logger"
)

// TaskHandler asocia un tipo de tarea con su handler.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// WorkerConfig reúne lo que necesita el worker.
type WorkerConfig struct {
	RedisOpt    asynq.RedisConnOpt
	Concurrency int
	Log         *logger.Logger
	Handlers    []TaskHandler
}

// Worker envuelve el servidor asynq.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

// NewWorker construye el servidor y registra los handlers.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.RedisOpt == nil {
		return nil, errors.New("jobs: redis connection is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("worker")

	srv := asynq.NewServer(cfg.RedisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{QueueDefault: 1},
		Logger:      asynqLogger{log: log},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, t *asynq.Task, err error) {
			log.Error().Err(err).Str("task", t.Type()).Msg("task failed")
		}),
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}
	return &Worker{server: srv, mux: mux, log: log}, nil
}

// Run procesa tareas hasta que se cancela ctx y luego drena las que están en curso.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	w.log.Info().Msg("worker started")
	<-ctx.Done()
	w.server.Shutdown()
	w.log.Info().Msg("worker stopped")
	return nil
}

// asynqLogger envía los logs propios de asynq por zerolog.
type asynqLogger struct {
	log *logger.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
