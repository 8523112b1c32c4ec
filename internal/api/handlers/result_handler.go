package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/database"
)

const defaultResultsLimit = 50

// ResultHandler はゲーム結果関連のハンドラーを管理する構造体です。
type ResultHandler struct {
	resultRepo database.ResultRepository
}

// NewResultHandler は新しいResultHandlerインスタンスを作成します。
func NewResultHandler(resultRepo database.ResultRepository) *ResultHandler {
	return &ResultHandler{
		resultRepo: resultRepo,
	}
}

// GetTopResults は上位ランキングを取得するハンドラーです。
// GET /api/results?limit=50
func (h *ResultHandler) GetTopResults(w http.ResponseWriter, r *http.Request) {
	limit := defaultResultsLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, "limitは整数で指定してください")
			return
		}
		limit = parsed
	}

	results, err := h.resultRepo.GetTopResults(r.Context(), limit)
	if errors.Is(err, database.ErrInvalidLimit) {
		WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Printf("[ResultHandler] ゲーム結果取得エラー: %v", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "ゲーム結果取得に失敗しました")
		return
	}

	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"results": results,
	})
}

// GetUserRanking は指定ユーザーの自己ベストと順位を返すハンドラーです。
// GET /api/results/user/{userID}
func (h *ResultHandler) GetUserRanking(w http.ResponseWriter, r *http.Request) {
	h.writeUserRanking(w, r, mux.Vars(r)["userID"])
}

// GetMyRanking は認証済みユーザー自身の順位を返すハンドラーです。
// GET /api/protected/results/me
func (h *ResultHandler) GetMyRanking(w http.ResponseWriter, r *http.Request) {
	userID, err := ExtractUserIDFromContext(r)
	if err != nil {
		WriteErrorResponse(w, http.StatusUnauthorized, err.Error())
		return
	}
	h.writeUserRanking(w, r, userID)
}

func (h *ResultHandler) writeUserRanking(w http.ResponseWriter, r *http.Request, userID string) {
	if userID == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "ユーザーIDが指定されていません")
		return
	}

	ranking, err := h.resultRepo.GetUserRanking(r.Context(), userID)
	if err != nil {
		log.Printf("[ResultHandler] ランキング取得エラー (user %s): %v", userID, err)
		WriteErrorResponse(w, http.StatusInternalServerError, "ランキング取得に失敗しました")
		return
	}
	if ranking == nil {
		WriteErrorResponse(w, http.StatusNotFound, "このユーザーの記録はまだありません")
		return
	}

	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"result":  ranking,
	})
}
