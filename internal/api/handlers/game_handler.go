package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/api/middleware"
	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/services/puyo"
)

// authTimeout はWebSocket接続後に認証メッセージを待つ時間です。
const authTimeout = 10 * time.Second

// authMessage はWebSocket接続直後にクライアントが送る認証メッセージです。
type authMessage struct {
	Type  string `json:"type"` // 常に "auth"
	Token string `json:"token"`
}

// GameHandler はゲーム関連のHTTPリクエスト（セッション作成、取得、終了、WebSocket接続）を処理します。
type GameHandler struct {
	sessionManager *puyo.SessionManager
	auth           *middleware.Authenticator
	upgrader       websocket.Upgrader
}

// NewGameHandler は新しい GameHandler インスタンスを作成します。
//
// Parameters:
//   sm             : セッションマネージャーへのポインタ
//   auth           : WebSocketの認証メッセージを検証する Authenticator
//   allowedOrigins : WebSocket接続を許可するOrigin（空ならすべて許可）
// Returns:
//   *GameHandler: 新しく作成された GameHandler のポインタ
func NewGameHandler(sm *puyo.SessionManager, auth *middleware.Authenticator, allowedOrigins []string) *GameHandler {
	return &GameHandler{
		sessionManager: sm,
		auth:           auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// ブラウザ以外のクライアントはOriginを送らない
				return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// CreateSession は新しいゲームセッションを作成するためのHTTPハンドラーです。
// POST /api/protected/sessions
func (h *GameHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, err := ExtractUserIDFromContext(r)
	if err != nil {
		WriteErrorResponse(w, http.StatusUnauthorized, err.Error())
		return
	}

	hosted, err := h.sessionManager.CreateSession(userID)
	if err != nil {
		log.Printf("[GameHandler] Failed to create session for user %s: %v", userID, err)
		WriteErrorResponse(w, http.StatusServiceUnavailable, "セッションの作成に失敗しました")
		return
	}

	WriteJSONResponse(w, http.StatusCreated, hosted.Summary())
}

// GetSession は特定のセッションの現在の状態を返すハンドラーです。
// GET /api/protected/sessions/{roomID}
func (h *GameHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	hosted, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	WriteJSONResponse(w, http.StatusOK, hosted.Summary())
}

// EndSession はセッションを終了し、接続中のクライアントを切断します。
// DELETE /api/protected/sessions/{roomID}
func (h *GameHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	hosted, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	h.sessionManager.EndGameSession(hosted.ID)
	w.WriteHeader(http.StatusNoContent)
}

// ownedSession はURLのセッションを取得し、リクエストしたユーザーが所有者かを確認します。
// 失敗した場合はエラーレスポンスを書き込んで false を返します。
func (h *GameHandler) ownedSession(w http.ResponseWriter, r *http.Request) (*puyo.HostedSession, bool) {
	userID, err := ExtractUserIDFromContext(r)
	if err != nil {
		WriteErrorResponse(w, http.StatusUnauthorized, err.Error())
		return nil, false
	}

	roomID := mux.Vars(r)["roomID"]
	hosted, ok := h.sessionManager.GetGameSession(roomID)
	if !ok {
		WriteErrorResponse(w, http.StatusNotFound, "指定されたセッションは見つかりませんでした")
		return nil, false
	}
	if !h.auth.Bypass() && hosted.OwnerID != userID {
		WriteErrorResponse(w, http.StatusForbidden, "このセッションの所有者ではありません")
		return nil, false
	}
	return hosted, true
}

// HandleWebSocketConnection はHTTP接続をWebSocketプロトコルにアップグレードし、
// 最初のメッセージで認証したあと、接続をセッションマネージャーに引き渡します。
// GET /ws/sessions/{roomID}
func (h *GameHandler) HandleWebSocketConnection(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomID"]
	hosted, ok := h.sessionManager.GetGameSession(roomID)
	if !ok {
		WriteErrorResponse(w, http.StatusNotFound, "指定されたセッションは見つかりませんでした")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[GameHandler] Failed to upgrade to websocket for room %s: %v", roomID, err)
		return // Upgrade がエラーレスポンスを書き込み済み
	}
	log.Printf("[GameHandler] WebSocket upgraded for room %s.", roomID)

	userID, err := h.authenticate(conn)
	if err != nil {
		log.Printf("[GameHandler] WebSocket auth failed for room %s: %v", roomID, err)
		conn.WriteJSON(map[string]string{"error": err.Error()})
		conn.Close()
		return
	}
	if !h.auth.Bypass() && hosted.OwnerID != userID {
		log.Printf("[GameHandler] User %s is not the owner of room %s", userID, roomID)
		conn.WriteJSON(map[string]string{"error": "not the session owner"})
		conn.Close()
		return
	}
	conn.WriteJSON(map[string]string{"type": "auth_success", "message": "Authentication successful"})

	// readPump と writePump は RegisterClient 内で開始される
	if err := h.sessionManager.RegisterClient(roomID, userID, conn); err != nil {
		log.Printf("[GameHandler] Failed to register client %s to room %s: %v", userID, roomID, err)
		conn.Close()
	}
}

// authenticate は認証メッセージを1つ読み、トークンのユーザーIDを返します。
func (h *GameHandler) authenticate(conn *websocket.Conn) (string, error) {
	conn.SetReadDeadline(time.Now().Add(authTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, message, err := conn.ReadMessage()
	if err != nil {
		return "", err
	}

	var msg authMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return "", errors.New("invalid auth message")
	}
	if msg.Type != "auth" {
		return "", errors.New("expected auth message")
	}

	userID, err := h.auth.VerifyToken(msg.Token)
	if errors.Is(err, middleware.ErrMissingSecret) {
		return "", errors.New("server configuration error: JWT secret missing")
	}
	if err != nil {
		return "", middleware.ErrInvalidToken
	}
	return userID, nil
}
