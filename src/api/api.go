package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/stake-plus/hermes/src/ai/providers"
	"github.com/stake-plus/hermes/src/api/webserver"
	"github.com/stake-plus/hermes/src/cluster"
	"github.com/stake-plus/hermes/src/config"
	"github.com/stake-plus/hermes/src/data"
	"github.com/stake-plus/hermes/src/discord"
	"github.com/stake-plus/hermes/src/logging"
	"github.com/stake-plus/hermes/src/oracle"
	"github.com/stake-plus/hermes/src/similarity"
	"github.com/stake-plus/hermes/src/submission"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := data.NewConnManager(cfg.Database, log)
	if !conn.Configured() {
		log.Warn("No database configured, reports will not be stored")
	} else if _, err := conn.EnsureConnected(ctx); err != nil {
		log.Warn("Database unavailable at startup, will retry on demand", "error", err)
	}
	store := data.NewReportStore(conn)

	cache, err := data.NewCache(cfg.RedisURL)
	if err != nil {
		log.Fatal("redis", "error", err)
	}

	ai := oracle.New(cfg.AI, oracle.WithCache(cache), oracle.WithLogger(log))
	if !ai.Configured() {
		log.Warn("No AI provider configured, every submission gets the fallback verdict")
	} else {
		log.Info("AI providers ready", "providers", ai.Providers())
	}

	engine := similarity.New(ai, store, log)
	var clusterOpts []cluster.Option
	if cfg.DiscordWebhookURL != "" {
		notifier, err := discord.NewNotifier(cfg.DiscordWebhookURL, cfg.HTTP.PublicURL)
		if err != nil {
			log.Warn("Discord notifier disabled", "error", err)
		} else {
			clusterOpts = append(clusterOpts, cluster.WithNotifier(notifier))
		}
	}
	clusters := cluster.New(store, engine, log, clusterOpts...)

	svc := submission.New(submission.Deps{
		Oracle:   ai,
		Store:    store,
		Matcher:  engine,
		Assigner: clusters,
		Cache:    cache,
		Logger:   log,
	})

	router := webserver.New(webserver.Deps{
		Config:    cfg,
		Submitter: svc,
		Store:     store,
		Conn:      conn,
		Cache:     cache,
		Logger:    log,
		Version:   version,
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.HTTP.TLSEnabled() {
		reloader, err := webserver.NewTLSReloader(ctx, cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile, 0, log)
		if err != nil {
			log.Fatal("tls", "error", err)
		}
		httpSrv.TLSConfig = reloader.GetConfig()
	}

	go func() {
		var err error
		if httpSrv.TLSConfig != nil {
			err = httpSrv.ListenAndServeTLS("", "")
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http", "error", err)
		}
	}()
	log.Info("Hermes API listening", "port", cfg.Port, "tls", cfg.HTTP.TLSEnabled())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("Shutting down")
	cancel()

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	router.Close()
	if err := conn.Close(); err != nil {
		log.Warn("database close", "error", err)
	}
	if err := cache.Close(); err != nil {
		log.Warn("redis close", "error", err)
	}
}
