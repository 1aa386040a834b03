package internal

import (
	"crypto/rand"
	"encoding/json"
	"log/slog"
	mrand "math/rand/v2"
)

// 系統設計問題：
//   底層傳輸是異步的 WebSocket，如何讓配對流程保持
//   「一個請求、一個帶型別的回應」的同步契約？
//
// 設計方案：
//   ✅ Coordinator 集中配對、轉發與生命週期三條路徑
//   ✅ 每個請求由連接自己的處理 goroutine 同步執行，回應寫回同一連接
//   ✅ 通知（opponentJoined、playerDisconnected 等）與回應分離，
//     經 Sender 介面送往其他參與者，邏輯不依賴回調順序

// Sender 出站訊息投遞介面（由 WebSocket Hub 實現）
//
// Send 盡力而為：目標連接已消失或緩衝已滿時允許丟棄，
// 呼叫方不得依賴投遞成功。
type Sender interface {
	// Send 向指定連接發送一個事件
	Send(connID string, event Envelope)
	// Detach 解除指定連接的房間綁定（顯式關閉房間時的行政拆除）
	Detach(connID string)
}

// Coordinator 配對協調器
//
// 串起三個部分：
//   - 配對協議：createRoom / joinRoom 的握手與顏色解析
//   - 事件轉發：房間內事件對除發送者外的成員扇出
//   - 生命週期：顯式關閉與斷線兩條終止路徑
type Coordinator struct {
	registry *Registry
	sender   Sender
	logger   *slog.Logger
}

// NewCoordinator 創建配對協調器
func NewCoordinator(registry *Registry, sender Sender, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		registry: registry,
		sender:   sender,
		logger:   logger,
	}
}

// SetProfile 設定個人資料（只動會話，對房間無副作用）
func (c *Coordinator) SetProfile(sess *Session, raw json.RawMessage) {
	var p setProfilePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.sender.Send(sess.ID, newErrorEvent(ErrInvalidProfile))
		return
	}
	if p.Orientation == "" {
		p.Orientation = PreferRandom
	}
	if p.GameDuration == 0 {
		p.GameDuration = defaultTimeControlMinutes
	}
	if err := sess.SetProfile(p.Username, p.Orientation, p.GameDuration); err != nil {
		c.logger.Warn("個人資料驗證失敗", "conn_id", sess.ID, "error", err)
		c.sender.Send(sess.ID, newErrorEvent(ErrInvalidProfile))
		return
	}
}

// CreateRoom 創建房間
//
// 流程：解析偏好為具體顏色（random 時均勻二選一）->
// Registry 創建房間 -> 將房間 ID 回應給創建者。
// 創建者此刻是唯一參與者，無限期等待對手（除非顯式關閉）。
func (c *Coordinator) CreateRoom(sess *Session) {
	if sess.DisplayName() == "" {
		c.sender.Send(sess.ID, newEvent(MsgRoomCreated, errorPayload{
			Error:   true,
			Message: ErrInvalidProfile.Error(),
		}))
		return
	}

	color := resolveColor(sess.SidePreference())
	roomID := c.registry.CreateRoom(sess, color)
	sess.BindRoom(roomID)

	c.sender.Send(sess.ID, newEvent(MsgRoomCreated, roomCreatedPayload{RoomID: roomID}))
}

// JoinRoom 加入房間
//
// 加入者的顏色強制為現有參與者的補色，加入者自己的偏好被忽略。
// 這是既定行為而非 bug：先到者鎖定顏色，後到者只能補位。
// 失敗時加入者收到結構化錯誤且不綁定任何房間，可換個 ID 重試。
// 成功時完整房間狀態回應給加入者，並向另一位參與者轉發
// opponentJoined 與 gameStarted 通知。
func (c *Coordinator) JoinRoom(sess *Session, raw json.RawMessage) {
	var p joinRoomPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.sender.Send(sess.ID, newEvent(MsgRoomJoined, errorPayload{
			Error:   true,
			Message: ErrRoomNotFound.Error(),
		}))
		return
	}

	state, err := c.registry.JoinRoom(p.RoomID, sess)
	if err != nil {
		c.sender.Send(sess.ID, newEvent(MsgRoomJoined, errorPayload{
			Error:   true,
			Message: err.Error(),
		}))
		return
	}
	sess.BindRoom(p.RoomID)

	c.sender.Send(sess.ID, newEvent(MsgRoomJoined, state))

	// 通知另一位參與者：對手已加入、對局開始
	for _, other := range state.Players {
		if other.ConnID == sess.ID {
			continue
		}
		c.sender.Send(other.ConnID, newEvent(MsgOpponentJoined, state))
		c.sender.Send(other.ConnID, newEvent(MsgGameStarted, state))
	}
}

// Relay 轉發房間內事件
//
// 將事件原樣送給同房除發送者外的所有參與者。負載完全不透明：
// 不解析、不驗證、不保序（發送者-房間對內維持提交順序）。
// 房間不存在時靜默丟棄：與拆除競態下，預期接收者本來就已離開。
func (c *Coordinator) Relay(roomID, senderID, eventType string, payload json.RawMessage) {
	participants, exists := c.registry.Participants(roomID)
	if !exists {
		c.logger.Debug("轉發目標房間已消失，事件丟棄",
			"room_id", roomID,
			"event", eventType)
		return
	}

	event := newRawEvent(eventType, payload)
	for _, p := range participants {
		if p.ConnID == senderID {
			continue
		}
		c.sender.Send(p.ConnID, event)
	}
}

// CloseRoom 顯式關閉房間
//
// 「退出對局」類流程：不論房間內有幾個人，一律
//  1. 向除發起者外的所有參與者廣播關閉通知（讓客戶端重置到對局前狀態）
//  2. 行政拆除所有相關連接與房間的綁定
//  3. 從 Registry 刪除房間
//
// 冪等：關閉不存在的房間是 no-op。
func (c *Coordinator) CloseRoom(sess *Session, raw json.RawMessage) {
	var p closeRoomPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}

	participants := c.registry.CloseRoom(p.RoomID)

	notice := newEvent(MsgCloseRoom, closeRoomPayload{RoomID: p.RoomID})
	for _, member := range participants {
		if member.ConnID != sess.ID {
			c.sender.Send(member.ConnID, notice)
		}
		c.sender.Detach(member.ConnID)
	}
	// 只解除發起者對「這個房間」的綁定：關錯房間不得波及
	// 發起者自己所在的房間
	if sess.RoomID() == p.RoomID {
		sess.UnbindRoom()
	}
}

// HandleDisconnect 斷線處理
//
// 傳輸層連接丟失時由 Hub 無條件呼叫。三種結果：
//   - 不在任何房間：no-op
//   - 房間只剩此人：房間已刪，無人可通知
//   - 房間還有另一人：向剩餘者轉發 playerDisconnected（含離開者名稱）
//
// 異常安全：Registry 的移除先於通知完成，即使剩餘參與者
// 自己也剛斷線導致通知失敗，移除也已經生效。
func (c *Coordinator) HandleDisconnect(sess *Session) {
	removal := c.registry.RemoveParticipant(sess.ID)
	sess.UnbindRoom()

	switch removal.Kind {
	case RemovalNotInRoom, RemovalRoomClosed:
		// 無人可通知
	case RemovalParticipantLeft:
		event := newEvent(MsgPlayerDisconnected, removal.Departed)
		for _, p := range removal.Remaining {
			c.sender.Send(p.ConnID, event)
		}
	}
}

// resolveColor 將偏好解析為具體顏色
func resolveColor(pref SidePreference) Color {
	switch pref {
	case PreferWhite:
		return ColorWhite
	case PreferBlack:
		return ColorBlack
	default:
		if randBool() {
			return ColorWhite
		}
		return ColorBlack
	}
}

// randBool 均勻隨機布林值
//
// 優先使用 crypto/rand，讀取失敗時退回 math/rand/v2。
func randBool() bool {
	b := make([]byte, 1)
	if _, err := rand.Read(b); err != nil {
		return mrand.IntN(2) == 0
	}
	return b[0]%2 == 0
}
