package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/auth"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/checkout"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/config"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/graph"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/logger"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/mailer"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/models"
	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/repository"
)

type application struct {
	logger   *logger.Logger
	config   config.Config
	sessions *auth.Sessions
	graph    *graph.Executor
	checkout *checkout.Service
	// ping reports whether the database answers.
	ping func(ctx context.Context) error
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		logger.New(logger.DefaultConfig()).Error("could not read .env file", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.New(logger.DefaultConfig()).Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	log := logger.New(logger.Config{
		Level:        logger.ParseLevel(cfg.LogLevel),
		Format:       cfg.LogFormat,
		Output:       "stdout",
		EnableCaller: true,
		Component:    "web",
	})
	defer log.Close()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := models.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(dctx)
	}()
	log.Info("connected to database", "database", cfg.MongoDatabase)

	db := models.NewMongoDB(client.Database(cfg.MongoDatabase), cfg.QueryTimeout)
	if err := db.EnsureIndexes(ctx); err != nil {
		return err
	}
	users := &repository.UserRepository{Collection: db.Users}

	var mail mailer.Mailer = mailer.LogMailer{Log: log.WithComponent("mailer")}
	if cfg.SESConfigured() {
		ses, err := mailer.NewSES(ctx, mailer.SESConfig{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Sender:          cfg.AWSSenderAddress,
		}, log)
		if err != nil {
			return err
		}
		mail = ses
	}

	svc := checkout.NewService(db, db, db, users, checkout.Config{
		StrictStock: cfg.StrictStock,
		DeliveryFee: cfg.DeliveryFee,
	}, log)

	sessions := auth.NewSessions(cfg.SessionLifetime)
	exec, err := graph.NewExecutor(&graph.Resolver{
		Catalog:      db,
		Orders:       db,
		Coupons:      db,
		Reviews:      db,
		Reports:      db,
		Users:        users,
		Sessions:     sessions,
		Checkout:     svc,
		Mailer:       mail,
		Log:          log.WithComponent("graph"),
		FrontendURL:  cfg.FrontendURL,
		AbandonAfter: cfg.AbandonAfter,
	})
	if err != nil {
		return err
	}

	app := &application{
		logger:   log,
		config:   cfg,
		sessions: sessions,
		graph:    exec,
		checkout: svc,
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
	}

	go app.sweeper(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		ErrorLog:          log.StdLogger(),
		Handler:           app.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", cfg.Addr, "strict_stock", cfg.StrictStock)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
