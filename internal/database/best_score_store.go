package database

import (
	"context"
)

// UserBestScoreStore は1人のユーザーのハイスコアを読み書きするストアです。
// ゲームセッションのハイスコア保存先として使われます。
type UserBestScoreStore struct {
	repo   ResultRepository
	userID string
}

// NewUserBestScoreStore はユーザーに紐づいたハイスコアストアを作成します。
func NewUserBestScoreStore(repo ResultRepository, userID string) *UserBestScoreStore {
	return &UserBestScoreStore{repo: repo, userID: userID}
}

// LoadBest はユーザーのハイスコアを返します。
func (s *UserBestScoreStore) LoadBest(ctx context.Context) (int, error) {
	return s.repo.LoadBestScore(ctx, s.userID)
}

// SaveBest はユーザーのハイスコアを保存します。
func (s *UserBestScoreStore) SaveBest(ctx context.Context, score int) error {
	return s.repo.SaveBestScore(ctx, s.userID, score)
}
