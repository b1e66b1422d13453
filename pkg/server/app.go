package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"LabPulse/internal/domain/repository"
	"LabPulse/internal/handler/api"
	"LabPulse/internal/service/stream"
	"LabPulse/internal/usecase"
	pkgch "LabPulse/pkg/clickhouse"
	"LabPulse/pkg/config"
	xhttp "LabPulse/pkg/http"
	pkgkafka "LabPulse/pkg/kafka"
	applogger "LabPulse/pkg/logger"
	"LabPulse/pkg/queue"
)

// Deps are the components the App starts and stops. Consumer, KafkaReader,
// IngestQueue, Hub, Redis and ClickHouse are nil when their backend is off.
type Deps struct {
	Handler     *api.BiomarkersHandler
	Hub         *stream.Hub
	Collector   *usecase.ReadingCollector
	Processor   *usecase.ReadingProcessor
	Consumer    *pkgkafka.Consumer
	KafkaReader pkgkafka.MessageHandler
	IngestQueue *queue.Consumer
	Storage     repository.Storage
	Redis       *redis.Client
	ClickHouse  *pkgch.Client
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	deps       Deps
	httpServer *xhttp.Server
	logShipper *queue.Producer
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, deps Deps) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, l: l, deps: deps}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.Shutdown()
}

// Start launches every background component and the HTTP server. Components
// exit when ctx is cancelled or Shutdown is called.
func (a *App) Start(ctx context.Context) error {
	a.startLogShipping()

	if a.deps.Hub != nil {
		go a.deps.Hub.Run(ctx)
		a.l.Info("live stream hub started")
	}

	if a.deps.Collector != nil {
		a.deps.Collector.Start(ctx)
	}

	if a.deps.Consumer != nil && a.deps.KafkaReader != nil {
		a.deps.Consumer.RegisterHandler(a.deps.KafkaReader)
		go func() {
			if err := a.deps.Consumer.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.l.Info("kafka consumer started", applogger.String("topic", a.deps.KafkaReader.Topic()))
	}

	if a.deps.IngestQueue != nil {
		if err := a.deps.IngestQueue.Start(); err != nil {
			return fmt.Errorf("ingest queue: %w", err)
		}
		a.l.Info("ingest queue consumer started", applogger.String("key", a.cfg.Ingest.QueueKey))
	}

	a.httpServer = a.buildHTTPServer()
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("labpulse started",
		applogger.String("backend", a.cfg.Backend.Type),
		applogger.Int("port", a.cfg.Server.Port),
	)
	return nil
}

func (a *App) buildHTTPServer() *xhttp.Server {
	var handlers []xhttp.Handler
	if a.deps.Handler != nil {
		handlers = append(handlers, a.deps.Handler)
	}

	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	}
	if len(a.cfg.Server.CORSOrigins) > 0 {
		opts = append(opts, xhttp.WithCORSOrigins(a.cfg.Server.CORSOrigins))
	}
	if a.cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(a.cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}

	s := xhttp.NewServer(a.l, handlers, opts...)
	if a.deps.Storage != nil {
		s.AddHealthCheck("storage", a.deps.Storage.Health)
	}
	if a.deps.Redis != nil {
		s.AddHealthCheck("redis", func(ctx context.Context) error { return a.deps.Redis.Ping(ctx).Err() })
	}
	return s
}

// startLogShipping mirrors warn and error entries to the redis queue so a
// central collector can aggregate them.
func (a *App) startLogShipping() {
	ship := a.cfg.Logging.Ship
	if !ship.Enabled || a.deps.Redis == nil {
		return
	}
	a.logShipper = queue.NewProducer(a.deps.Redis, ship.Topic)
	a.l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   ship.Interval,
		CountThreshold: ship.Threshold,
		Topic:          ship.Topic,
		Publisher:      a.logShipper,
		Levels:         []string{"warn", "error"},
	})
	a.l.Info("log shipping enabled", applogger.String("topic", ship.Topic))
}

// Shutdown gracefully stops all services in reverse dependency order.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	a.l.Info("shutting down...")

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.deps.IngestQueue != nil {
		if err := a.deps.IngestQueue.Stop(ctx); err != nil {
			a.l.Warn("ingest queue stop error", applogger.Error(err))
		}
	}

	if a.deps.Consumer != nil {
		if err := a.deps.Consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.deps.Collector != nil {
		a.deps.Collector.Shutdown()
	}

	// closes the publisher and storage
	if a.deps.Processor != nil {
		a.deps.Processor.Close()
	}

	if a.deps.ClickHouse != nil {
		if err := a.deps.ClickHouse.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	// flushes the last log batch through logShipper before redis closes
	a.l.RemoveCollector()
	if a.deps.Redis != nil {
		if err := a.deps.Redis.Close(); err != nil {
			a.l.Warn("redis close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
