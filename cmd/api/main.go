package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"inkwell/api/internal/app"
	"inkwell/api/internal/config"
	"inkwell/api/internal/docstore"
	"inkwell/api/internal/posts"
	"inkwell/api/internal/search"
	"inkwell/api/internal/viewledger"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// The document gateway runs on Redis when REDIS_URL is set, otherwise
	// on PostgreSQL.
	var gateway docstore.Gateway
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis document gateway")
		redisGateway, err := docstore.NewRedisGateway(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisGateway.Close()
		gateway = redisGateway
	} else {
		log.Printf("Using PostgreSQL document gateway")
		db, err := docstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()
		if err := docstore.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		gateway = docstore.NewPostgresGateway(db)
	}

	views, err := viewledger.Open(cfg.ViewLedgerPath)
	if err != nil {
		log.Fatalf("view ledger failed: %v", err)
	}

	repo := posts.NewRepo(gateway)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewScan(repo))
	searchService.ReindexAll(ctx)

	service := app.New(cfg, gateway, searchService, views)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Inkwell API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
