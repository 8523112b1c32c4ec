package models

import (
	"time"
)

// Result はresultsテーブルのレコードに対応する構造体です。ゲームオーバー時に1件記録されます。
type Result struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"` // UUID
	Score     int       `json:"score"`
	MaxChain  int       `json:"max_chain"` // そのゲームでの最大連鎖数
	CreatedAt time.Time `json:"created_at"`
}

// ResultResponse はAPI レスポンス用の構造体です。
type ResultResponse struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Score     int       `json:"score"`
	MaxChain  int       `json:"max_chain"`
	CreatedAt time.Time `json:"created_at"`
	Rank      int       `json:"rank"` // ランキング順位
}

// BestScore はbest_scoresテーブルのレコードです。ユーザーごとに1件で、プレイ中に更新されます。
type BestScore struct {
	UserID    string    `json:"user_id"`
	Score     int       `json:"score"`
	UpdatedAt time.Time `json:"updated_at"`
}
