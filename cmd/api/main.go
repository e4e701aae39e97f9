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

	"github.com/auxillium/backend/internal/auth"
	"github.com/auxillium/backend/internal/config"
	"github.com/auxillium/backend/internal/handler"
	"github.com/auxillium/backend/internal/handler/accounts"
	"github.com/auxillium/backend/internal/handler/chats"
	"github.com/auxillium/backend/internal/handler/intake"
	"github.com/auxillium/backend/internal/handler/stream"
	"github.com/auxillium/backend/internal/handler/worklist"
	"github.com/auxillium/backend/internal/realtime"
	"github.com/auxillium/backend/internal/service/assistant"
	"github.com/auxillium/backend/internal/service/lifecycle"
	"github.com/auxillium/backend/internal/service/queue"
	"github.com/auxillium/backend/internal/store"
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

	broker := realtime.NewBroker()

	var st store.Store
	if cfg.Database.DSN != "" {
		mysqlStore, err := store.NewMySQL(cfg.Database.DSN, broker)
		if err != nil {
			log.Fatalf("failed to open store: %v", err)
		}
		st = mysqlStore
		log.Println("MySQL store initialized")
	} else {
		st = store.NewMemory(broker)
		log.Println("MYSQL_DSN not set, using in-memory store")
	}

	var responder assistant.Responder
	if cfg.AI.Enabled() {
		svc, err := assistant.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize assistant: %v", err)
			log.Println("continuing without assistant replies")
		} else {
			responder = svc
			log.Println("assistant service initialized")
		}
	} else {
		log.Println("assistant credentials not configured, patients will wait without replies")
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authSvc := auth.NewService(st, tokens)
	controller := lifecycle.NewController(st, responder, cfg.AI.Timeout)
	queueSvc := queue.NewService(st)

	router := handler.NewRouter(handler.Dependencies{
		Auth:     accounts.New(authSvc),
		Chats:    chats.New(controller),
		Worklist: worklist.New(queueSvc),
		Intake:   intake.New(),
		Stream:   stream.New(broker, controller, queueSvc),
		Sessions: authSvc,
	})

	startServer(ctx, cfg.Server, router)
	controller.Wait()
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Auxillium backend listening on %s", serverCfg.Addr)
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
