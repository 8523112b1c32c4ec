// Package sqlite はゲーム結果とハイスコアを SQLite に保存するストアです。
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/database"
	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/models"
)

//go:embed schema.sql
var schema string

// Store はゲーム結果とハイスコアを SQLite に保存します。
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ database.ResultRepository = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open は SQLite ファイルを開き、テーブルがなければ作成します。
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close は SQLite の接続を閉じます。nil でも安全に呼べます。
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// CreateResult は終了したゲーム1回分の結果を保存します。
func (s *Store) CreateResult(ctx context.Context, userID string, score, maxChain int) (*models.Result, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	createdAt := s.now().UTC().Truncate(time.Millisecond)

	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO results (user_id, score, max_chain, created_at) VALUES (?, ?, ?, ?)`,
		userID, score, maxChain, toMillis(createdAt),
	)
	if err != nil {
		return nil, fmt.Errorf("create result: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read result id: %w", err)
	}
	return &models.Result{
		ID:        id,
		UserID:    userID,
		Score:     score,
		MaxChain:  maxChain,
		CreatedAt: createdAt,
	}, nil
}

// GetTopResults はスコアの高い順に結果を返します。同点なら先に記録したほうが上位です。
func (s *Store) GetTopResults(ctx context.Context, limit int) ([]models.ResultResponse, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > database.MaxResultsLimit {
		return nil, database.ErrInvalidLimit
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, user_id, score, max_chain, created_at,
		        ROW_NUMBER() OVER (ORDER BY score DESC, created_at ASC, id ASC) AS rank
		   FROM results
		  ORDER BY score DESC, created_at ASC, id ASC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list top results: %w", err)
	}
	defer rows.Close()

	results := []models.ResultResponse{}
	for rows.Next() {
		var (
			result    models.ResultResponse
			createdAt int64
		)
		if err := rows.Scan(&result.ID, &result.UserID, &result.Score, &result.MaxChain, &createdAt, &result.Rank); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		result.CreatedAt = fromMillis(createdAt)
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// GetUserBestResult はユーザーの最高記録を返します。記録がなければ nil です。
func (s *Store) GetUserBestResult(ctx context.Context, userID string) (*models.Result, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var (
		result    models.Result
		createdAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, user_id, score, max_chain, created_at
		   FROM results
		  WHERE user_id = ?
		  ORDER BY score DESC, created_at ASC, id ASC
		  LIMIT 1`,
		userID,
	).Scan(&result.ID, &result.UserID, &result.Score, &result.MaxChain, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user best result: %w", err)
	}
	result.CreatedAt = fromMillis(createdAt)
	return &result, nil
}

// GetUserRanking はユーザーの最高記録とその順位を返します。記録がなければ nil です。
func (s *Store) GetUserRanking(ctx context.Context, userID string) (*models.ResultResponse, error) {
	best, err := s.GetUserBestResult(ctx, userID)
	if err != nil || best == nil {
		return nil, err
	}

	created := toMillis(best.CreatedAt)
	var rank int
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) + 1
		   FROM results
		  WHERE score > ?
		     OR (score = ? AND created_at < ?)
		     OR (score = ? AND created_at = ? AND id < ?)`,
		best.Score, best.Score, created, best.Score, created, best.ID,
	).Scan(&rank)
	if err != nil {
		return nil, fmt.Errorf("count user rank: %w", err)
	}

	return &models.ResultResponse{
		ID:        best.ID,
		UserID:    best.UserID,
		Score:     best.Score,
		MaxChain:  best.MaxChain,
		CreatedAt: best.CreatedAt,
		Rank:      rank,
	}, nil
}

// LoadBestScore はユーザーのハイスコアを返します。未保存なら0です。
func (s *Store) LoadBestScore(ctx context.Context, userID string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var score int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT score FROM best_scores WHERE user_id = ?`, userID).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load best score: %w", err)
	}
	return score, nil
}

// SaveBestScore は保存済みのハイスコアより高い場合だけ score を保存します。
func (s *Store) SaveBestScore(ctx context.Context, userID string, score int) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO best_scores (user_id, score, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE
		 SET score = MAX(best_scores.score, excluded.score),
		     updated_at = excluded.updated_at`,
		userID, score, toMillis(s.now()),
	)
	if err != nil {
		return fmt.Errorf("save best score: %w", err)
	}
	return nil
}
