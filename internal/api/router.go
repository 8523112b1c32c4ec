// Package api は HTTP と WebSocket のエンドポイントを組み立てます。
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/api/handlers"
	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/api/middleware"
)

// Handlers はルーターに登録するハンドラーの一式です。
type Handlers struct {
	Game           *handlers.GameHandler
	Results        *handlers.ResultHandler
	Public         *handlers.PublicHandler
	Auth           *middleware.Authenticator
	AllowedOrigins []string
}

// NewRouter は全エンドポイントを登録し、CORSを適用したハンドラーを返します。
func NewRouter(h Handlers) http.Handler {
	r := mux.NewRouter()

	// 認証不要な公開エンドポイント
	r.HandleFunc("/api/public", h.Public.Status).Methods(http.MethodGet)
	r.HandleFunc("/api/results", h.Results.GetTopResults).Methods(http.MethodGet)
	r.HandleFunc("/api/results/user/{userID}", h.Results.GetUserRanking).Methods(http.MethodGet)

	// WebSocketは最初のメッセージで認証する
	r.HandleFunc("/ws/sessions/{roomID}", h.Game.HandleWebSocketConnection)

	// /api/protected/ で始まる全てのパスにAuthMiddlewareを適用
	protected := r.PathPrefix("/api/protected").Subrouter()
	protected.Use(h.Auth.Middleware)
	protected.HandleFunc("/sessions", h.Game.CreateSession).Methods(http.MethodPost)
	protected.HandleFunc("/sessions/{roomID}", h.Game.GetSession).Methods(http.MethodGet)
	protected.HandleFunc("/sessions/{roomID}", h.Game.EndSession).Methods(http.MethodDelete)
	protected.HandleFunc("/results/me", h.Results.GetMyRanking).Methods(http.MethodGet)

	return middleware.CORSHandler(h.AllowedOrigins)(r)
}
