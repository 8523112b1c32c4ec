package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/models"
)

// ResultRepository はゲーム結果とハイスコア関連のデータベース操作を定義するインターフェースです。
// PostgreSQL 版（このパッケージ）と SQLite 版（database/sqlite）があります。
type ResultRepository interface {
	// CreateResult は終了したゲームの結果レコードを作成します
	CreateResult(ctx context.Context, userID string, score, maxChain int) (*models.Result, error)

	// GetTopResults は上位N件の結果を取得します（ランキング用）
	GetTopResults(ctx context.Context, limit int) ([]models.ResultResponse, error)

	// GetUserBestResult は指定したユーザーの最高スコアの結果を取得します。記録がなければ nil を返します
	GetUserBestResult(ctx context.Context, userID string) (*models.Result, error)

	// GetUserRanking は指定したユーザーの現在のランキング順位を取得します。記録がなければ nil を返します
	GetUserRanking(ctx context.Context, userID string) (*models.ResultResponse, error)

	// LoadBestScore はユーザーのハイスコアを取得します。記録がなければ 0 を返します
	LoadBestScore(ctx context.Context, userID string) (int, error)

	// SaveBestScore はユーザーのハイスコアを更新します。既存の記録より低い値では更新しません
	SaveBestScore(ctx context.Context, userID string, score int) error
}

// ErrInvalidLimit はランキング取得件数が不正な場合のエラーです。
var ErrInvalidLimit = errors.New("limit must be between 1 and 100")

// MaxResultsLimit はランキングで一度に取得できる最大件数です。
const MaxResultsLimit = 100

// resultRepositoryImpl はResultRepositoryインターフェースのPostgreSQL実装です。
type resultRepositoryImpl struct {
	db *sql.DB
}

// NewResultRepository はResultRepositoryの新しいインスタンスを作成します。
func NewResultRepository(db *sql.DB) ResultRepository {
	return &resultRepositoryImpl{db: db}
}

// CreateResult は新しいゲーム結果レコードを作成します。
func (r *resultRepositoryImpl) CreateResult(ctx context.Context, userID string, score, maxChain int) (*models.Result, error) {
	now := time.Now()
	var id int64

	err := r.db.QueryRowContext(ctx,
		"INSERT INTO results (user_id, score, max_chain, created_at) VALUES ($1, $2, $3, $4) RETURNING id",
		userID, score, maxChain, now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("ゲーム結果レコードの作成に失敗しました: %w", err)
	}

	return &models.Result{
		ID:        id,
		UserID:    userID,
		Score:     score,
		MaxChain:  maxChain,
		CreatedAt: now,
	}, nil
}

// GetTopResults は上位N件の結果を取得します（ランキング用）。
func (r *resultRepositoryImpl) GetTopResults(ctx context.Context, limit int) ([]models.ResultResponse, error) {
	if limit <= 0 || limit > MaxResultsLimit {
		return nil, ErrInvalidLimit
	}

	query := `
		SELECT
			id, user_id, score, max_chain, created_at,
			ROW_NUMBER() OVER (ORDER BY score DESC, created_at ASC) as rank
		FROM results
		ORDER BY score DESC, created_at ASC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ゲーム結果取得に失敗しました: %w", err)
	}
	defer rows.Close()

	results := []models.ResultResponse{}
	for rows.Next() {
		var result models.ResultResponse
		err := rows.Scan(&result.ID, &result.UserID, &result.Score, &result.MaxChain, &result.CreatedAt, &result.Rank)
		if err != nil {
			return nil, fmt.Errorf("ゲーム結果データのスキャンに失敗しました: %w", err)
		}
		results = append(results, result)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ゲーム結果取得中にエラーが発生しました: %w", err)
	}

	return results, nil
}

// GetUserBestResult は指定したユーザーの最高スコアの結果を取得します。
func (r *resultRepositoryImpl) GetUserBestResult(ctx context.Context, userID string) (*models.Result, error) {
	query := `
		SELECT id, user_id, score, max_chain, created_at
		FROM results
		WHERE user_id = $1
		ORDER BY score DESC, created_at ASC
		LIMIT 1
	`

	var result models.Result
	err := r.db.QueryRowContext(ctx, query, userID).
		Scan(&result.ID, &result.UserID, &result.Score, &result.MaxChain, &result.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // ユーザーのスコアが存在しない場合はnilを返す
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの最高スコア取得に失敗しました: %w", err)
	}

	return &result, nil
}

// GetUserRanking は指定したユーザーの現在のランキング順位を取得します。
func (r *resultRepositoryImpl) GetUserRanking(ctx context.Context, userID string) (*models.ResultResponse, error) {
	// ユーザーの最高スコアを先に取得
	best, err := r.GetUserBestResult(ctx, userID)
	if err != nil {
		return nil, err
	}
	if best == nil {
		return nil, nil // ユーザーのスコアが存在しない
	}

	// そのスコアでの順位を計算
	query := `
		SELECT COUNT(*) + 1 as rank
		FROM results
		WHERE score > $1 OR (score = $1 AND created_at < $2)
	`

	var rank int
	err = r.db.QueryRowContext(ctx, query, best.Score, best.CreatedAt).Scan(&rank)
	if err != nil {
		return nil, fmt.Errorf("ユーザーランキング順位の計算に失敗しました: %w", err)
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

// LoadBestScore はユーザーのハイスコアを取得します。
func (r *resultRepositoryImpl) LoadBestScore(ctx context.Context, userID string) (int, error) {
	var score int
	err := r.db.QueryRowContext(ctx, "SELECT score FROM best_scores WHERE user_id = $1", userID).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ハイスコアの取得に失敗しました: %w", err)
	}
	return score, nil
}

// SaveBestScore はユーザーのハイスコアを更新します。
func (r *resultRepositoryImpl) SaveBestScore(ctx context.Context, userID string, score int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO best_scores (user_id, score, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET score = GREATEST(best_scores.score, EXCLUDED.score), updated_at = EXCLUDED.updated_at
	`, userID, score, time.Now())
	if err != nil {
		return fmt.Errorf("ハイスコアの保存に失敗しました: %w", err)
	}
	return nil
}
