// Package config は環境変数からサーバーとゲームの設定を読み込みます。
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/models/puyo"
	puyoservice "github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/services/puyo"
)

// Config はアプリケーション全体の設定です。
type Config struct {
	AppEnv         string   `env:"APP_ENV" envDefault:"development"`
	Port           string   `env:"PORT" envDefault:"8080"`
	DatabaseURL    string   `env:"DATABASE_URL"`                        // 空ならSQLiteを使う
	SQLitePath     string   `env:"SQLITE_PATH" envDefault:"puyoris.db"` // ハイスコアの保存先
	JWTSecret      string   `env:"SUPABASE_JWT_SECRET"`
	BypassAuth     bool     `env:"BYPASS_AUTH" envDefault:"false"` // テスト用: 認証を省略する
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	AudioEnabled   bool     `env:"AUDIO_ENABLED" envDefault:"true"`

	Game GameConfig
}

// GameConfig はセッションごとのゲーム設定です。
type GameConfig struct {
	Rows             int           `env:"GRID_ROWS" envDefault:"12"`
	Cols             int           `env:"GRID_COLS" envDefault:"6"`
	ColorCount       int           `env:"COLOR_COUNT" envDefault:"4"`
	Lookahead        int           `env:"QUEUE_LOOKAHEAD" envDefault:"2"`
	BaseFallInterval time.Duration `env:"BASE_FALL_INTERVAL" envDefault:"1s"`
	MinFallInterval  time.Duration `env:"MIN_FALL_INTERVAL" envDefault:"50ms"`
	SpeedUpPeriod    time.Duration `env:"SPEED_UP_PERIOD" envDefault:"10s"`
	SpeedUpFactor    float64       `env:"SPEED_UP_FACTOR" envDefault:"1.1"`
	ClearDelay       time.Duration `env:"CLEAR_DELAY" envDefault:"250ms"`
	ChainCooldown    time.Duration `env:"CHAIN_COOLDOWN" envDefault:"3s"`
}

// ErrInvalidConfig は設定値が範囲外の場合のエラーです。
var ErrInvalidConfig = errors.New("invalid config")

// ParseEnv は環境変数を target の構造体に読み込みます。
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load は本番環境以外では .env を読み込んでから、環境変数を Config に変換します。
//
// Returns:
//   Config: 読み込んだ設定
//   error : パースや検証に失敗した場合
func Load() (Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil {
			log.Printf("warning: Error loading .env file (this is fine in production): %v", err)
		}
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction は本番環境かどうかを返します。
func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Validate は本番環境で認証が省略されていないことと、ゲーム設定が遊べる範囲にあることを確認します。
func (c Config) Validate() error {
	if c.IsProduction() && c.BypassAuth {
		return fmt.Errorf("%w: BYPASS_AUTH must not be enabled when APP_ENV=production", ErrInvalidConfig)
	}

	g := c.Game
	switch {
	case g.Rows < puyo.GameOverRow+2:
		return fmt.Errorf("%w: GRID_ROWS must be at least %d, got %d", ErrInvalidConfig, puyo.GameOverRow+2, g.Rows)
	case g.Cols < 2:
		return fmt.Errorf("%w: GRID_COLS must be at least 2, got %d", ErrInvalidConfig, g.Cols)
	case g.ColorCount < puyo.MinColors || g.ColorCount > puyo.MaxColors:
		return fmt.Errorf("%w: COLOR_COUNT must be between %d and %d, got %d", ErrInvalidConfig, puyo.MinColors, puyo.MaxColors, g.ColorCount)
	case g.Lookahead < 1:
		return fmt.Errorf("%w: QUEUE_LOOKAHEAD must be positive, got %d", ErrInvalidConfig, g.Lookahead)
	case g.SpeedUpFactor <= 1:
		return fmt.Errorf("%w: SPEED_UP_FACTOR must be greater than 1, got %g", ErrInvalidConfig, g.SpeedUpFactor)
	case g.MinFallInterval <= 0 || g.BaseFallInterval < g.MinFallInterval:
		return fmt.Errorf("%w: BASE_FALL_INTERVAL (%s) must be at least MIN_FALL_INTERVAL (%s)", ErrInvalidConfig, g.BaseFallInterval, g.MinFallInterval)
	}
	return nil
}

// Settings はゲーム設定をセッションの設定値に変換します。
func (g GameConfig) Settings() puyoservice.Settings {
	return puyoservice.Settings{
		Rows:             g.Rows,
		Cols:             g.Cols,
		ColorCount:       g.ColorCount,
		Lookahead:        g.Lookahead,
		BaseFallInterval: g.BaseFallInterval,
		MinFallInterval:  g.MinFallInterval,
		SpeedUpPeriod:    g.SpeedUpPeriod,
		SpeedUpFactor:    g.SpeedUpFactor,
		ClearDelay:       g.ClearDelay,
		ChainCooldown:    g.ChainCooldown,
	}
}
