package puyo

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket" // WebSocketライブラリのインポート

	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/models"
)

// SessionManager が返すエラーです。
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotSessionOwner = errors.New("session belongs to another user")
	ErrManagerClosed   = errors.New("session manager is shut down")
)

const (
	sessionIdleTimeout = 5 * time.Minute  // 誰も接続していないセッションを破棄するまでの時間
	resultSaveTimeout  = 5 * time.Second  // ゲーム結果の保存に許す時間
	sweepInterval      = 30 * time.Second // 放置セッションの掃除間隔
)

// Client はWebSocket接続を持つ単一のクライアントを表します。
type Client struct {
	UserID string          // このクライアントに紐づくユーザーのID
	Conn   *websocket.Conn // クライアントとの実際のWebSocketコネクション
	Send   chan []byte     // クライアントへメッセージを送信するためのバッファ付きチャネル
	RoomID string          // このクライアントが見ているセッションのID
	closed bool            // チャネルが閉じられたかどうかのフラグ
	mu     sync.Mutex      // closedフラグ保護用
}

// SafeSend は安全にチャネルにメッセージを送信します（closedチェック付き）
func (c *Client) SafeSend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false // 既に閉じられている
	}

	select {
	case c.Send <- message:
		return true // 送信成功
	default:
		return false // チャネルがフル
	}
}

// SafeClose は安全にチャネルを閉じます
func (c *Client) SafeClose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.Send)
		c.closed = true
	}
}

// ResultRecorder はゲームオーバー時の結果の保存先です。
type ResultRecorder interface {
	CreateResult(ctx context.Context, userID string, score, maxChain int) (*models.Result, error)
}

// StoreFactory はユーザーごとのハイスコア保存先を作ります。
type StoreFactory func(userID string) BestScoreStore

// PlayerInputEvent はクライアントからの操作入力を表す構造体です。
// WebSocketを通じてサーバーに送信されます。
type PlayerInputEvent struct {
	UserID string `json:"user_id"` // 操作を行ったプレイヤーのID（サーバー側で上書き）
	RoomID string `json:"-"`
	Action string `json:"action"` // "move_left", "rotate_right", "hold", "start" など
}

// StateMessage はクライアントに送るゲーム状態のメッセージです。
type StateMessage struct {
	Type   string   `json:"type"` // 常に "state"
	RoomID string   `json:"room_id"`
	State  Snapshot `json:"state"`
}

// stateEvent はブロードキャスト待ちの状態更新です。
type stateEvent struct {
	roomID string
	snap   Snapshot
}

// HostedSession はサーバー上で動く1人用のゲームセッションです。
type HostedSession struct {
	ID        string
	OwnerID   string
	CreatedAt time.Time

	driver *Driver
	cancel context.CancelFunc
	done   chan struct{}

	// 以下は Driver のゴルーチンからのみ触る
	lastPhase Phase
	maxChain  int
}

// Snapshot はセッションの最新状態を返します。
func (h *HostedSession) Snapshot() Snapshot {
	return h.driver.Snapshot()
}

// SessionSummary はセッション情報のAPIレスポンスです。
type SessionSummary struct {
	RoomID    string    `json:"room_id"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	State     Snapshot  `json:"state"`
}

// Summary はAPIレスポンス用のセッション情報を返します。
func (h *HostedSession) Summary() SessionSummary {
	return SessionSummary{RoomID: h.ID, OwnerID: h.OwnerID, CreatedAt: h.CreatedAt, State: h.Snapshot()}
}

// SessionManager はゲームセッションとWebSocketクライアント接続の全体を管理します。
// これはアプリケーション内でシングルトンとして動作することが想定されます。
type SessionManager struct {
	sessions       map[string]*HostedSession // roomID -> HostedSession
	clients        map[*Client]struct{}      // 現在接続中の全WebSocketクライアント
	register       chan *Client              // 新しいクライアント接続の登録リクエスト用チャネル
	unregister     chan *Client              // クライアント切断の登録解除リクエスト用チャネル
	broadcast      chan stateEvent           // ゲーム状態の更新をブロードキャストするためのチャネル
	inputEvents    chan PlayerInputEvent     // クライアントからのプレイヤー操作入力を受け取るチャネル
	quit           chan struct{}             // シャットダウン用チャネル
	mu             sync.RWMutex              // sessions と clients マップへのアクセスを保護するためのRWMutex
	settings       Settings
	stores         StoreFactory
	results        ResultRecorder
	allowAnyPlayer bool // テスト用: 所有者以外の操作も受け付ける
	closed         bool
}

// ManagerOptions は SessionManager の依存関係です。nil の項目は使われません。
type ManagerOptions struct {
	Settings       Settings
	Stores         StoreFactory
	Results        ResultRecorder
	AllowAnyPlayer bool
}

// NewSessionManager は新しい SessionManager インスタンスを作成し、そのメインイベントループをバックグラウンドで開始します。
//
// Parameters:
//   opts : ゲーム設定と保存先
// Returns:
//   *SessionManager: 初期化されたセッションマネージャーのポインタ
func NewSessionManager(opts ManagerOptions) *SessionManager {
	sm := &SessionManager{
		sessions:       make(map[string]*HostedSession),
		clients:        make(map[*Client]struct{}),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan stateEvent, 512),       // 連鎖演出中は更新が続くので大きめのバッファ
		inputEvents:    make(chan PlayerInputEvent, 512), // プレイヤー操作のキューイング用
		quit:           make(chan struct{}),
		settings:       opts.Settings.withDefaults(),
		stores:         opts.Stores,
		results:        opts.Results,
		allowAnyPlayer: opts.AllowAnyPlayer,
	}
	go sm.Run() // SessionManager のメインイベントループをゴルーチンで開始
	return sm
}

// Run は SessionManager のメインイベントループです。
// クライアントの登録/解除、プレイヤー入力の振り分け、状態のブロードキャスト、
// 放置されたセッションの掃除を処理します。ゲームの進行自体は各セッションの Driver が行います。
func (sm *SessionManager) Run() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-sm.register:
			sm.mu.Lock()
			session, ok := sm.sessions[client.RoomID]
			if ok {
				sm.clients[client] = struct{}{}
			}
			sm.mu.Unlock()

			if !ok {
				// 登録待ちの間にセッションが終了した
				log.Printf("[SessionManager] Room %s is gone, rejecting client %s", client.RoomID, client.UserID)
				client.SafeClose()
				continue
			}
			log.Printf("[SessionManager] Client registered: %s (Room: %s)", client.UserID, client.RoomID)

			// 接続直後に最新の状態を送る
			sm.sendState(client, session.ID, session.Snapshot())

		case client := <-sm.unregister:
			sm.mu.Lock()
			if _, ok := sm.clients[client]; ok {
				client.SafeClose()
				delete(sm.clients, client)
				log.Printf("[SessionManager] Client unregistered: %s (Room: %s)", client.UserID, client.RoomID)
			}
			remaining := sm.roomClientCountLocked(client.RoomID)
			sm.mu.Unlock()

			// 最後のクライアントが抜けたらセッションを終了する
			if remaining == 0 {
				log.Printf("[SessionManager] No clients left in room %s. Ending session.", client.RoomID)
				sm.EndGameSession(client.RoomID)
			}

		case event := <-sm.inputEvents:
			if err := sm.HandleInput(event.RoomID, event.UserID, event.Action); err != nil {
				log.Printf("[SessionManager] Rejected input %q from user %s in room %s: %v", event.Action, event.UserID, event.RoomID, err)
			}

		case event := <-sm.broadcast:
			message, err := json.Marshal(StateMessage{Type: "state", RoomID: event.roomID, State: event.snap})
			if err != nil {
				log.Printf("[SessionManager] Error marshaling game state for room %s: %v", event.roomID, err)
				continue
			}

			sm.mu.RLock()
			for client := range sm.clients {
				if client.RoomID == event.roomID {
					if !client.SafeSend(message) {
						log.Printf("[SessionManager] Failed to send to client %s (channel closed or full)", client.UserID)
					}
				}
			}
			sm.mu.RUnlock()

		case <-ticker.C:
			sm.sweepIdleSessions(time.Now())

		case <-sm.quit:
			// シャットダウンシグナルを受信したらメインループを終了
			log.Printf("[SessionManager] シャットダウンシグナルを受信、メインループを終了します")
			return
		}
	}
}

// CreateSession は新しいゲームセッションを作成し、その Driver を起動します。
// セッションはタイトル状態で作られ、クライアントの "start" で開始します。
//
// Parameters:
//   ownerID : セッションを操作するユーザーのID
// Returns:
//   *HostedSession: 作成されたセッション
//   error         : マネージャーが停止済みの場合
func (sm *SessionManager) CreateSession(ownerID string) (*HostedSession, error) {
	var store BestScoreStore
	if sm.stores != nil {
		store = sm.stores(ownerID)
	}

	hosted := &HostedSession{
		ID:        uuid.New().String(), // 新しいルームIDを生成
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
	}
	session := NewSession(sm.settings, store, nil)
	hosted.lastPhase = session.Phase
	hosted.driver = NewDriver(session, RendererFunc(func(snap Snapshot) {
		sm.onStateChange(hosted, snap)
	}))

	sm.mu.Lock()
	if sm.closed {
		sm.mu.Unlock()
		return nil, ErrManagerClosed
	}
	ctx, cancel := context.WithCancel(context.Background())
	hosted.cancel = cancel
	sm.sessions[hosted.ID] = hosted
	sm.mu.Unlock()

	go func() {
		defer close(hosted.done)
		hosted.driver.Run(ctx)
	}()

	log.Printf("[SessionManager] Created new game session: %s for player %s", hosted.ID, ownerID)
	return hosted, nil
}

// onStateChange は Driver のゴルーチンから状態遷移ごとに呼ばれます。
// ブロードキャストを予約し、ゲームオーバーへの遷移で結果を保存します。
func (sm *SessionManager) onStateChange(hosted *HostedSession, snap Snapshot) {
	if snap.Chain > hosted.maxChain {
		hosted.maxChain = snap.Chain
	}
	if snap.Phase == PhaseActive && hosted.lastPhase != PhaseActive && hosted.lastPhase != PhasePaused {
		hosted.maxChain = 0 // 新しいゲーム
	}
	if snap.Phase == PhaseOver && hosted.lastPhase != PhaseOver {
		log.Printf("[SessionManager] Game over in room %s: score=%d maxChain=%d", hosted.ID, snap.Score, hosted.maxChain)
		sm.recordResult(hosted.OwnerID, snap.Score, hosted.maxChain)
	}
	hosted.lastPhase = snap.Phase

	// チャネルがフルの場合は更新を捨てる（次の更新で追いつく）
	select {
	case sm.broadcast <- stateEvent{roomID: hosted.ID, snap: snap}:
	default:
		log.Printf("[SessionManager] Broadcast channel full, skipping update for room: %s", hosted.ID)
	}
}

// recordResult はゲーム結果を非同期で保存します。
func (sm *SessionManager) recordResult(userID string, score, maxChain int) {
	if sm.results == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), resultSaveTimeout)
		defer cancel()
		if _, err := sm.results.CreateResult(ctx, userID, score, maxChain); err != nil {
			log.Printf("[SessionManager] Failed to save result for user %s: %v", userID, err)
		}
	}()
}

// GetGameSession は指定されたルームIDのゲームセッションを取得します。
// 主にハンドラーからセッション情報を取得するために使用されます。
func (sm *SessionManager) GetGameSession(roomID string) (*HostedSession, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, ok := sm.sessions[roomID]
	return session, ok
}

// HandleInput はプレイヤーの操作をセッションの Driver に渡します。
//
// Parameters:
//   roomID : 対象のルームID
//   userID : 操作したユーザーのID
//   action : 操作名（"move_left" など）
// Returns:
//   error: セッションがない、所有者でない、未知の操作の場合
func (sm *SessionManager) HandleInput(roomID, userID, action string) error {
	session, ok := sm.GetGameSession(roomID)
	if !ok {
		return ErrSessionNotFound
	}
	if !sm.allowAnyPlayer && session.OwnerID != userID {
		return ErrNotSessionOwner
	}
	cmd, ok := ParseCommand(action)
	if !ok {
		return &UnknownActionError{Action: action}
	}
	session.driver.Send(cmd)
	return nil
}

// UnknownActionError は解釈できない操作名を受け取ったことを表します。
type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string {
	return "unknown action: " + e.Action
}

// RegisterClient は新しいWebSocketクライアントをSessionManagerに登録します。
//
// Parameters:
//   roomID : クライアントが参加するルームのID
//   userID : クライアントのユーザーID
//   conn   : WebSocketコネクション
// Returns:
//   error: セッションが存在しない場合
func (sm *SessionManager) RegisterClient(roomID, userID string, conn *websocket.Conn) error {
	if _, ok := sm.GetGameSession(roomID); !ok {
		return ErrSessionNotFound
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		RoomID: roomID,
	}

	// 登録解除が登録より先に届かないよう、登録後にポンプを開始する
	select {
	case sm.register <- client:
	case <-sm.quit:
		return ErrManagerClosed
	}

	go sm.readPump(client)
	go client.writePump()
	return nil
}

// readPump はクライアントからのWebSocketメッセージを読み込み、 inputEvents チャネルに送信します。
func (sm *SessionManager) readPump(client *Client) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[SessionManager] Panic in readPump for user %s: %v", client.UserID, r)
		}

		log.Printf("[SessionManager] Client %s disconnecting from room %s", client.UserID, client.RoomID)
		select {
		case sm.unregister <- client: // クライアントが切断されたら登録解除を通知
		case <-sm.quit:
		}

		if err := client.Conn.Close(); err != nil {
			log.Printf("[SessionManager] Error closing WebSocket connection for user %s: %v", client.UserID, err)
		}
	}()

	client.Conn.SetReadLimit(1024)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("[SessionManager] WebSocket unexpected close error for user %s: %v", client.UserID, err)
			}
			return
		}
		if len(message) == 0 {
			continue
		}

		var inputEvent PlayerInputEvent
		if err := json.Unmarshal(message, &inputEvent); err != nil {
			log.Printf("[SessionManager] Failed to unmarshal input message from %s: %v", client.UserID, err)
			continue // パース失敗時はこのメッセージをスキップ
		}
		inputEvent.UserID = client.UserID // 受信したメッセージのUserIDを上書き（セキュリティのため）
		inputEvent.RoomID = client.RoomID

		select {
		case sm.inputEvents <- inputEvent:
		default:
			log.Printf("[SessionManager] Input events channel is full, dropping message from user %s", client.UserID)
		}
	}
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// writePump は Client の Send チャネルからのメッセージをWebSocketコネクションに書き込みます。
// クライアントごとにこのゴルーチンが動作します。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// マネージャーがチャネルを閉じた場合 (クライアントの登録解除時など)
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[Client] Error writing message for user %s: %v", c.UserID, err)
				return
			}

		case <-ticker.C:
			// ピングメッセージを定期的に送信してコネクションの生存確認
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendState は1つのクライアントに状態を送ります。
func (sm *SessionManager) sendState(client *Client, roomID string, snap Snapshot) {
	message, err := json.Marshal(StateMessage{Type: "state", RoomID: roomID, State: snap})
	if err != nil {
		log.Printf("[SessionManager] Error marshaling game state for room %s: %v", roomID, err)
		return
	}
	if !client.SafeSend(message) {
		log.Printf("[SessionManager] Failed to send to specific client %s (channel closed or full)", client.UserID)
	}
}

// roomClientCountLocked はルームに接続中のクライアント数を返します。sm.mu を保持して呼ぶこと。
func (sm *SessionManager) roomClientCountLocked(roomID string) int {
	n := 0
	for client := range sm.clients {
		if client.RoomID == roomID {
			n++
		}
	}
	return n
}

// sweepIdleSessions は作成から一定時間たっても誰も接続していないセッションを終了します。
func (sm *SessionManager) sweepIdleSessions(now time.Time) {
	sm.mu.RLock()
	var idle []string
	for id, session := range sm.sessions {
		if now.Sub(session.CreatedAt) > sessionIdleTimeout && sm.roomClientCountLocked(id) == 0 {
			idle = append(idle, id)
		}
	}
	sm.mu.RUnlock()

	for _, id := range idle {
		log.Printf("[SessionManager] Session %s has been idle, removing", id)
		sm.EndGameSession(id)
	}
}

// EndGameSession はゲームセッションの Driver を止め、接続中のクライアントを切断してセッションを削除します。
//
// Parameters:
//   roomID : 終了するルームのID
func (sm *SessionManager) EndGameSession(roomID string) {
	sm.mu.Lock()
	session, ok := sm.sessions[roomID]
	if !ok {
		sm.mu.Unlock()
		return // ルームが存在しない
	}
	delete(sm.sessions, roomID)
	for client := range sm.clients {
		if client.RoomID == roomID {
			client.SafeClose()
			delete(sm.clients, client)
		}
	}
	sm.mu.Unlock()

	session.cancel()
	<-session.done
	log.Printf("[SessionManager] Game session %s ended.", roomID)
}

// SessionCount は現在のセッション数を返します。
func (sm *SessionManager) SessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// Shutdown はSessionManagerを安全にシャットダウンします
func (sm *SessionManager) Shutdown() {
	log.Printf("[SessionManager] シャットダウン開始...")

	sm.mu.Lock()
	if sm.closed {
		sm.mu.Unlock()
		return
	}
	sm.closed = true
	close(sm.quit)

	for client := range sm.clients {
		if client.Conn != nil {
			client.Conn.Close()
		}
		client.SafeClose()
	}
	sm.clients = make(map[*Client]struct{})
	sessions := sm.sessions
	sm.sessions = make(map[string]*HostedSession)
	sm.mu.Unlock()

	for _, session := range sessions {
		session.cancel()
		<-session.done
	}
	log.Printf("[SessionManager] シャットダウン完了")
}
