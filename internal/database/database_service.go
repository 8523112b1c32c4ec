package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq" // PostgreSQLドライバー
)

// postgresSchema はサーバー起動時に作成するテーブルです。
const postgresSchema = `
CREATE TABLE IF NOT EXISTS results (
	id         BIGSERIAL PRIMARY KEY,
	user_id    TEXT        NOT NULL,
	score      INTEGER     NOT NULL,
	max_chain  INTEGER     NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS results_score_idx ON results (score DESC, created_at ASC);
CREATE INDEX IF NOT EXISTS results_user_idx ON results (user_id);

CREATE TABLE IF NOT EXISTS best_scores (
	user_id    TEXT PRIMARY KEY,
	score      INTEGER     NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// DatabaseService はデータベースへのアクセスをまとめたサービスです。
type DatabaseService struct {
	DB *sql.DB
}

// NewDatabaseService は DatabaseService を作成し、データベースに接続します。
func NewDatabaseService(databaseURL string) (*DatabaseService, error) {
	log.Printf("データベース接続を試行中: URLの最初の50文字: %s...", databaseURL[:min(len(databaseURL), 50)]) // URLの冒頭をログ出力
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Printf("DatabaseService Error: sql.Openに失敗しました: %v", err)
		return nil, fmt.Errorf("データベースへの接続オブジェクト作成に失敗しました: %w", err)
	}

	// データベース接続の確認 (Ping)
	if err := db.Ping(); err != nil {
		log.Printf("DatabaseService Error: db.Pingに失敗しました: %v", err)
		_ = db.Close()
		return nil, fmt.Errorf("データベースのPingに失敗しました。接続情報やネットワークを確認してください: %w", err)
	}

	log.Println("データベースに正常に接続しました。")
	return &DatabaseService{DB: db}, nil
}

// EnsureSchema は results と best_scores テーブルがなければ作成します。
func (s *DatabaseService) EnsureSchema(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("スキーマの作成に失敗しました: %w", err)
	}
	return nil
}

// Results はこの接続を使う ResultRepository を返します。
func (s *DatabaseService) Results() ResultRepository {
	return NewResultRepository(s.DB)
}

// Close はデータベース接続を閉じます。
func (s *DatabaseService) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
