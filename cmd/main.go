package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dtroode/userdir/internal/api/http/router"
	"github.com/dtroode/userdir/internal/client"
	"github.com/dtroode/userdir/internal/config"
	"github.com/dtroode/userdir/internal/logger"
	"github.com/dtroode/userdir/internal/model"
	"github.com/dtroode/userdir/internal/photo"
	"github.com/dtroode/userdir/internal/requestid"
	"github.com/dtroode/userdir/internal/server"
	storage "github.com/dtroode/userdir/internal/storage/minio"
	"github.com/dtroode/userdir/internal/store"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel, cfg.LogFormat)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := client.NewMetrics(registry)
	if err != nil {
		logger.Fatal("failed to register metrics", "error", err)
	}

	ctxMgr := requestid.NewManager()
	usersClient, err := client.New(cfg.Backend.BaseURL, logger,
		client.WithMetrics(metrics),
		client.WithContextManager(ctxMgr),
	)
	if err != nil {
		logger.Fatal("failed to create backend client", "error", err)
	}

	var photoOpts []photo.Option
	if cfg.Storage.Enabled {
		cache, err := storage.Connect(ctx, storage.Options{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			logger.Fatal("failed to initialize photo cache", "error", err)
		}
		photoOpts = append(photoOpts, photo.WithCache(cache))
		logger.Info("photo cache enabled", "endpoint", cfg.Storage.Endpoint, "bucket", cfg.Storage.Bucket)
	}
	photos := photo.NewResolver(usersClient, logger, photoOpts...)

	users := store.New(usersClient, logger)
	cancelSub := users.Subscribe(func(st store.State) {
		logger.Debug("store transition", "users", len(st.Users), "list", string(st.Op(model.OpList).Status))
	})
	defer cancelSub()

	// Warm the cache; a failure only leaves the list empty until the next refresh.
	users.FetchUsers(ctx)

	handler := router.New(users, photos, registry, ctxMgr, logger).Register()
	httpServer := server.NewHTTPServer(handler, fmt.Sprintf(":%s", cfg.HTTP.Port))

	var sl model.SecurityLayer
	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("starting server", "address", s.Address(), "backend", cfg.Backend.BaseURL)
		if err := s.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
			stop()
		}
	}(httpServer)

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", httpServer.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
