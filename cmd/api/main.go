package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/api"
	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/api/handlers"
	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/api/middleware"
	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/config"
	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/database"
	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/database/sqlite"
	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/services/puyo"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("サーバーが異常終了しました: %v", err)
	}
}

// openRepository は DATABASE_URL があれば PostgreSQL を、なければ SQLite を開きます。
func openRepository(ctx context.Context, cfg config.Config) (database.ResultRepository, io.Closer, error) {
	if cfg.DatabaseURL == "" {
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("[Main] Using SQLite store at %s", cfg.SQLitePath)
		return store, store, nil
	}

	dbService, err := database.NewDatabaseService(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := dbService.EnsureSchema(ctx); err != nil {
		dbService.Close()
		return nil, nil, err
	}
	log.Println("[Main] Using PostgreSQL")
	return dbService.Results(), dbService, nil
}

func run(ctx context.Context, cfg config.Config) error {
	repo, closer, err := openRepository(ctx, cfg)
	if err != nil {
		return fmt.Errorf("データベースの初期化に失敗しました: %w", err)
	}
	defer closer.Close()

	if cfg.BypassAuth {
		log.Println("[Main] WARNING: BYPASS_AUTH is enabled; any player may control any session")
	}

	sessionManager := puyo.NewSessionManager(puyo.ManagerOptions{
		Settings: cfg.Game.Settings(),
		Stores: func(userID string) puyo.BestScoreStore {
			return database.NewUserBestScoreStore(repo, userID)
		},
		Results:        repo,
		AllowAnyPlayer: cfg.BypassAuth,
	})
	defer sessionManager.Shutdown()

	auth := middleware.NewAuthenticator(cfg.JWTSecret, cfg.BypassAuth)
	router := api.NewRouter(api.Handlers{
		Game:           handlers.NewGameHandler(sessionManager, auth, cfg.AllowedOrigins),
		Results:        handlers.NewResultHandler(repo),
		Public:         handlers.NewPublicHandler(sessionManager),
		Auth:           auth,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("[Main] Server starting on :%s", cfg.Port)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("[Main] Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
