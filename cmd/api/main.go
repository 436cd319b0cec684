package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/muni-health/muni/backend/internal/analysis/triage"
	"github.com/muni-health/muni/backend/internal/config"
	"github.com/muni-health/muni/backend/internal/handler"
	"github.com/muni-health/muni/backend/internal/model/community"
	"github.com/muni-health/muni/backend/internal/service/ai"
	chartservice "github.com/muni-health/muni/backend/internal/service/chart"
	"github.com/muni-health/muni/backend/internal/service/chat"
	"github.com/muni-health/muni/backend/internal/service/checkin"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	rules, err := triage.LoadRules(cfg.Triage.RulesPath)
	if err != nil {
		log.Fatalf("failed to load triage rules: %v", err)
	}
	if cfg.Triage.RulesPath != "" {
		log.Printf("triage rules loaded from %s", cfg.Triage.RulesPath)
	}

	chatService := chat.NewService()
	experiences := community.NewMemoryStore(community.Seed())
	chartClient := chartservice.NewClient(cfg.Chart)
	if cfg.Chart.AppID == "" {
		log.Println("CHART_APP_ID not set, chart relay requests will be rejected upstream")
	}

	var checkinService *checkin.Service
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without check-in replies, check the Ark model environment variables")
		} else {
			checkinService = checkin.NewService(aiService, chatService, rules)
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("Ark credentials not configured, check-in replies disabled")
	}

	router := handler.NewRouter(chatService, checkinService, experiences, chartClient)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("muni backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
