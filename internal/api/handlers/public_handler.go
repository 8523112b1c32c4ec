package handlers

import (
	"log"
	"net/http"
)

// SessionCounter は稼働中のセッション数を返します。
type SessionCounter interface {
	SessionCount() int
}

// PublicHandler は認証不要のエンドポイントを処理します。
type PublicHandler struct {
	sessions SessionCounter
}

// NewPublicHandler は PublicHandler を作成します。
func NewPublicHandler(sessions SessionCounter) *PublicHandler {
	return &PublicHandler{sessions: sessions}
}

// Status はサーバーの稼働状況を返します。
// GET /api/public
func (h *PublicHandler) Status(w http.ResponseWriter, r *http.Request) {
	log.Println("[PublicHandler] Request to public endpoint: /api/public")
	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"message":         "PUYORIS backend is running",
		"active_sessions": h.sessions.SessionCount(),
	})
}
