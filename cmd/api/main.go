package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"giggen/internal/booking"
	"giggen/internal/httpapi"
	"giggen/internal/metrics"
	"giggen/internal/notify"
	"giggen/internal/profile"
	"giggen/internal/realtime"
	"giggen/internal/scheduler"
	"giggen/internal/storage/memory"
	"giggen/internal/storage/postgres"
	"giggen/pkg/config"
	"giggen/pkg/db"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("api stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	var (
		store         booking.Store
		directory     booking.Directory
		sink          notify.Sink = notify.Log{Logger: log.WithField("component", "notify")}
		notifications *notify.Repository
	)

	switch cfg.Storage {
	case "memory":
		log.Warn("using in-memory storage; data is lost on restart")
		store = memory.NewStore()
		directory = seedDevDirectory()
	default:
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("db open: %w", err)
		}
		defer conn.Close()

		if cfg.MigrationsPath != "" {
			version, err := db.Migrate(cfg.MigrationsPath, cfg)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.WithField("schema_version", version).Info("migrations applied")
		}

		store = postgres.NewStore(conn)
		directory = profile.NewRepository(conn)
		notifications = notify.NewRepository(conn)
		sink = notify.Multi{notifications, sink}
	}

	feed, err := newFeed(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := feed.Close(); err != nil {
			log.WithError(err).Warn("failed to close realtime feed")
		}
	}()

	notifier := notify.NewAsync(sink, 5*time.Second, log.WithField("component", "notify"))

	bookings := booking.NewManager(store, directory, notifier, feed,
		booking.WithLogger(log.WithField("component", "booking")),
		booking.WithObserver(metrics.Observer{}),
	)

	// Closed when Shutdown starts so open SSE streams return instead of
	// holding the server until the timeout.
	draining := make(chan struct{})

	router := httpapi.NewRouter(httpapi.Dependencies{
		Cfg:           cfg,
		Log:           log.WithField("component", "http"),
		Bookings:      bookings,
		Changes:       feed,
		Notifications: notifications,
		Draining:      draining,
	})

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(func() { close(draining) })

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}

	sweeper := scheduler.New(bookings, cfg.CompletionSweepInterval, log.WithField("component", "scheduler"))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sweeper.Start(ctx)
		return nil
	})

	g.Go(func() error {
		log.WithField("addr", ln.Addr().String()).Info("http listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if werr := notifier.Wait(shutdownCtx); werr != nil {
			log.WithError(werr).Warn("pending notifications dropped")
		}
		return err
	})

	return g.Wait()
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	if cfg.IsProd() {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func newFeed(cfg config.Config, log *logrus.Logger) (*realtime.Feed, error) {
	wlog := realtime.NewWatermillLogger(log.WithField("component", "realtime"))
	if cfg.RedisURL == "" {
		return realtime.NewInProcess(cfg.RealtimeTopic, wlog), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	feed, err := realtime.NewRedis(redis.NewClient(opts), cfg.RealtimeTopic, wlog)
	if err != nil {
		return nil, err
	}
	log.Info("realtime feed backed by redis streams")
	return feed, nil
}

// seedDevDirectory matches the defaults of cmd/dev/devflow.
func seedDevDirectory() *memory.Directory {
	d := memory.NewDirectory()
	d.AddProfile("dev-sender")
	d.AddProfile("dev-receiver")
	d.AddConcept(booking.Concept{ID: "dev-concept", OwnerID: "dev-sender", Title: "Dev concept"})
	return d
}
