package internal

import "encoding/json"

// 訊息協議：所有進出站訊息共用同一種 JSON 信封。
//
// 信封格式：{"type": "...", "data": ...}
//
// 棋步、聊天與信令的 data 一律保持 json.RawMessage：
// 核心不解析、不驗證負載內容（規則引擎與 UI 是被排除的外部協作者），
// 轉發層因此對遊戲規則、聊天語義、信令格式完全不可知。

// 入站訊息類型（客戶端 -> 服務器）
const (
	MsgSetProfile   = "setProfile"
	MsgCreateRoom   = "createRoom"
	MsgJoinRoom     = "joinRoom"
	MsgMove         = "move"
	MsgMessage      = "message"
	MsgCloseRoom    = "closeRoom"
	MsgOffer        = "offer"
	MsgAnswer       = "answer"
	MsgICECandidate = "ice-candidate"
)

// 出站訊息類型（服務器 -> 客戶端）
const (
	MsgRoomCreated        = "roomCreated"
	MsgRoomJoined         = "roomJoined"
	MsgOpponentJoined     = "opponentJoined"
	MsgGameStarted        = "gameStarted"
	MsgPlayerDisconnected = "playerDisconnected"
	MsgError              = "error"
)

// Envelope 訊息信封
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// setProfilePayload 設定個人資料
type setProfilePayload struct {
	Username     string         `json:"username"`
	Orientation  SidePreference `json:"orientation"`
	GameDuration int            `json:"gameDuration"`
}

// joinRoomPayload 加入房間請求
type joinRoomPayload struct {
	RoomID string `json:"roomId"`
}

// roomCreatedPayload 創建房間回應
type roomCreatedPayload struct {
	RoomID string `json:"roomId"`
}

// relayPayload 轉發類訊息的最小結構
//
// 只取出房間 ID 做路由，Payload 原樣透傳。
type relayPayload struct {
	RoomID string          `json:"roomId"`
	Move   json.RawMessage `json:"move,omitempty"`
}

// errorPayload 結構化錯誤回應
//
// error 旗標 + 人類可讀的 message。
type errorPayload struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// closeRoomPayload 關閉房間通知
type closeRoomPayload struct {
	RoomID string `json:"roomId"`
}

// mustMarshal 序列化已知不會失敗的內部結構
func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// 內部結構序列化失敗屬於程式錯誤
		panic(err)
	}
	return data
}

// newEvent 構造出站信封
func newEvent(msgType string, payload any) Envelope {
	return Envelope{Type: msgType, Data: mustMarshal(payload)}
}

// newRawEvent 構造負載透傳的出站信封
func newRawEvent(msgType string, payload json.RawMessage) Envelope {
	return Envelope{Type: msgType, Data: payload}
}

// newErrorEvent 構造結構化錯誤信封
func newErrorEvent(err error) Envelope {
	return newEvent(MsgError, errorPayload{Error: true, Message: err.Error()})
}
