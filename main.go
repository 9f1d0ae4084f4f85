package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/quickly-elect/cliparse"
	"github.com/danielhkuo/quickly-elect/db"
	"github.com/danielhkuo/quickly-elect/engine"
	"github.com/danielhkuo/quickly-elect/handlers"
	"github.com/danielhkuo/quickly-elect/memstore"
	"github.com/danielhkuo/quickly-elect/middleware"
	"github.com/danielhkuo/quickly-elect/models"
	"github.com/danielhkuo/quickly-elect/notify"
	"github.com/danielhkuo/quickly-elect/router"
	"github.com/danielhkuo/quickly-elect/scheduler"
)

func main() {
	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Debug)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("Server closed")
}

// newLogger writes text to a terminal and JSON everywhere else.
func newLogger(debug bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
	}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func run(ctx context.Context, cfg cliparse.Config, logger *slog.Logger) error {
	backend, closeBackend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	notifier, closeNotifier, err := openNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	svc := handlers.NewServices(backend, notifier, cfg, engine.SystemClock(), logger)
	mux := router.NewRouter(svc, cfg)

	server := &http.Server{
		Handler:           middleware.Recover(middleware.CORS(mux)),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}
	sched := &scheduler.Scheduler{
		Interval:  cfg.SweepInterval,
		Lifecycle: svc.Lifecycle,
		Declarer:  svc.Declarer,
		Logger:    logger.With("component", "scheduler"),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Listening", "port", cfg.Port, "database", cfg.DatabaseType)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sched.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openBackend(ctx context.Context, cfg cliparse.Config, logger *slog.Logger) (handlers.Backend, func(), error) {
	if cfg.DatabaseType == cliparse.DatabaseMemory {
		store := memstore.New()
		for _, v := range cfg.Voters {
			store.PutVoter(voterFromEntry(v))
		}
		slog.Warn("Using in-memory storage; elections are lost on restart")
		return store, func() {}, nil
	}

	conn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.CreateSchema(conn); err != nil {
		conn.Close()
		return nil, nil, err
	}
	slog.Info("Database schema ready")

	store := db.NewStore(conn, logger.With("component", "db"))
	for _, v := range cfg.Voters {
		if err := store.PutVoter(ctx, voterFromEntry(v)); err != nil {
			conn.Close()
			return nil, nil, err
		}
	}
	if len(cfg.Voters) > 0 {
		slog.Info("Voter roster loaded", "voters", len(cfg.Voters))
	}
	return store, func() { conn.Close() }, nil
}

func openNotifier(cfg cliparse.Config, logger *slog.Logger) (engine.Notifier, func(), error) {
	if cfg.NatsURL == "" {
		// Codes and secrets only reach the log in debug mode.
		ln := &notify.LogNotifier{Logger: logger.With("component", "notify"), Reveal: cfg.Debug}
		return ln, func() {}, nil
	}
	nc, err := notify.Connect(cfg.NatsURL, logger)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Publishing notifications to NATS", "url", nc.ConnectedUrl())
	n := &notify.NATSNotifier{Conn: nc, Prefix: cfg.NatsSubjectPrefix, Logger: logger.With("component", "notify")}
	return n, func() {
		if err := nc.Drain(); err != nil {
			slog.Warn("NATS drain failed", "error", err)
		}
	}, nil
}

func voterFromEntry(v cliparse.VoterEntry) models.Voter {
	return models.Voter{
		ID:           v.ID,
		Email:        v.Email,
		CardNumber:   v.CardNumber,
		Jurisdiction: v.Jurisdiction,
	}
}
