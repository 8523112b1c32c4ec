// Command terminal は PUYORIS を端末でローカルに遊ぶためのクライアントです。
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/gdamore/tcell/v2"

	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/audio"
	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/config"
	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/database"
	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/database/sqlite"
	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/services/puyo"
	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/terminal"
)

// localUserID はローカルプレイのハイスコアを保存するユーザーIDです。
const localUserID = "local"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "設定の読み込みに失敗しました: %v\n", err)
		os.Exit(1)
	}

	// 画面を描いている間は標準エラーにログを出せない
	logFile, err := os.OpenFile("puyoris.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(logFile)
		defer logFile.Close()
	}

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ハイスコアの保存先を開けませんでした: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	var cues puyo.CueSink
	if cfg.AudioEnabled {
		sounds := audio.NewSoundManager()
		if err := sounds.Initialize(); err != nil {
			log.Printf("[Main] Audio initialization failed: %v (continuing without audio)", err)
		} else {
			cues = sounds
			defer sounds.Cleanup()
		}
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create screen: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize terminal: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		// パニック時も端末を元に戻す
		if r := recover(); r != nil {
			screen.Fini()
			fmt.Fprintf(os.Stderr, "\nPUYORIS CRASHED: %v\nStack Trace:\n%s\n", r, debug.Stack())
			os.Exit(1)
		}
		screen.Fini()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := puyo.NewSession(cfg.Game.Settings(), database.NewUserBestScoreStore(store, localUserID), cues)
	renderer := terminal.NewRenderer(screen)
	driver := puyo.NewDriver(session, renderer)

	driverDone := make(chan struct{})
	go func() {
		defer close(driverDone)
		driver.Run(ctx)
	}()

	terminal.NewApp(screen, renderer, terminal.DefaultKeyMap(), driver).Run(ctx)
	stop()
	<-driverDone
}
