package internal

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// 系統設計問題：
//   如何在並發的創建/加入/斷線操作下，維護房間成員關係的不變量？
//
// 核心挑戰：
//   1. 容量競態：兩個連接同時加入同一房間，只能有一個成功
//   2. 斷線查找：斷線時要找出該連接所在的房間（不能掃描所有房間）
//   3. 唯一性：房間 ID 全域唯一；一個連接同時最多出現在一個房間
//
// 設計方案：
//   ✅ 單一全域 RWMutex：每房最多兩個利益方，競爭極低，分片鎖是過度設計
//   ✅ connID → roomID 反向索引：斷線處理 O(1)
//   ✅ 所有成員變更集中在 Registry：不變量只在一處檢查
//   ✅ UUID v4 房間 ID（128 位隨機）：碰撞機率天文數字級，仍保留重試

// 配對錯誤分類
//
// 錯誤字串即協議層回傳給客戶端的 message 欄位。
var (
	ErrRoomNotFound  = errors.New("room does not exist") // 房間不存在
	ErrRoomFull      = errors.New("room is full")        // 房間已滿
	ErrAlreadyInRoom = errors.New("already in a room")   // 連接已綁定其他房間
)

// RemovalKind 移除參與者的結果分類
type RemovalKind int

const (
	// RemovalNotInRoom 連接不在任何房間內（良性 no-op，不是錯誤）
	RemovalNotInRoom RemovalKind = iota
	// RemovalRoomClosed 房間只剩這一人，房間已刪除
	RemovalRoomClosed
	// RemovalParticipantLeft 房間尚有另一人，房間保留
	RemovalParticipantLeft
)

// Removal 移除參與者的結果
type Removal struct {
	Kind   RemovalKind
	RoomID string
	// Departed 被移除者的快照（通知剩餘參與者用）
	Departed Participant
	// Remaining 剩餘參與者（僅 RemovalParticipantLeft 時有值）
	Remaining []Participant
}

// Registry 房間註冊表
//
// 房間成員關係的唯一權威。所有變更操作（CreateRoom、JoinRoom、
// RemoveParticipant、CloseRoom）對任一房間互相序列化：
// 同房併發加入時，第二個必然觀察到 ErrRoomFull。
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*Room  // roomID -> Room
	connRoom map[string]string // connID -> roomID（反向索引）
	logger   *slog.Logger
}

// NewRegistry 創建房間註冊表
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		connRoom: make(map[string]string),
		logger:   logger,
	}
}

// CreateRoom 創建房間
//
// 從創建者會話捕捉此刻的快照（名稱、已解析的顏色、時間控制），
// 正常操作下不會失敗。若連接已在別的房間內，屬於呼叫方協議違規，
// 返回已存在的房間 ID 以保持冪等。
func (reg *Registry) CreateRoom(sess *Session, color Color) string {
	creator := Participant{
		ConnID:      sess.ID,
		DisplayName: sess.DisplayName(),
		Color:       color,
	}
	timeControl := sess.TimeControlMinutes()

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if existing, ok := reg.connRoom[sess.ID]; ok {
		return existing
	}

	// UUID v4 碰撞機率可忽略，但真撞上時重新生成即可
	roomID := uuid.NewString()
	for {
		if _, exists := reg.rooms[roomID]; !exists {
			break
		}
		roomID = uuid.NewString()
	}

	reg.rooms[roomID] = NewRoom(roomID, timeControl, creator)
	reg.connRoom[sess.ID] = roomID

	reg.logger.Info("房間已創建",
		"room_id", roomID,
		"conn_id", sess.ID,
		"color", color,
		"time_control_minutes", timeControl)

	return roomID
}

// JoinRoom 加入房間
//
// 加入者的顏色強制取現有參與者的補色，忽略加入者自己的偏好
// （只剩一個位置，沒有選擇空間）。即使加入者偏好與
// 創建者相同，也不報錯而是直接覆蓋。
// 成功時返回更新後的房間快照。
func (reg *Registry) JoinRoom(roomID string, sess *Session) (RoomState, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, exists := reg.rooms[roomID]
	if !exists {
		return RoomState{}, ErrRoomNotFound
	}
	if room.IsFull() {
		return RoomState{}, ErrRoomFull
	}
	if _, inRoom := reg.connRoom[sess.ID]; inRoom {
		// 一個連接同時最多出現在一個房間（含重複加入自己創建的房間）
		return RoomState{}, ErrAlreadyInRoom
	}

	joiner := Participant{
		ConnID:      sess.ID,
		DisplayName: sess.DisplayName(),
		Color:       room.Participants[0].Color.Opposite(),
	}
	room.Participants = append(room.Participants, joiner)
	reg.connRoom[sess.ID] = roomID

	reg.logger.Info("玩家加入房間",
		"room_id", roomID,
		"conn_id", sess.ID,
		"color", joiner.Color)

	return room.State(), nil
}

// GetRoom 獲取房間狀態快照
func (reg *Registry) GetRoom(roomID string) (RoomState, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	room, exists := reg.rooms[roomID]
	if !exists {
		return RoomState{}, false
	}
	return room.State(), true
}

// RoomOf 獲取連接所在的房間 ID（反向索引查詢）
func (reg *Registry) RoomOf(connID string) (string, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	roomID, exists := reg.connRoom[connID]
	return roomID, exists
}

// RemoveParticipant 移除參與者（斷線路徑）
//
// 結果分三類：
//   - 不在任何房間：no-op
//   - 房間只剩此人：房間刪除
//   - 房間還有另一人：房間保留，返回剩餘者供通知
func (reg *Registry) RemoveParticipant(connID string) Removal {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	roomID, exists := reg.connRoom[connID]
	if !exists {
		return Removal{Kind: RemovalNotInRoom}
	}
	delete(reg.connRoom, connID)

	room := reg.rooms[roomID]
	if room == nil {
		// 索引殘留但房間已刪（不應發生），當作 no-op
		return Removal{Kind: RemovalNotInRoom}
	}

	var departed Participant
	kept := room.Participants[:0]
	for _, p := range room.Participants {
		if p.ConnID == connID {
			departed = p
			continue
		}
		kept = append(kept, p)
	}
	room.Participants = kept

	if len(room.Participants) == 0 {
		// 空房間不允許存在，立即刪除
		delete(reg.rooms, roomID)
		reg.logger.Info("房間已清空刪除", "room_id", roomID, "conn_id", connID)
		return Removal{Kind: RemovalRoomClosed, RoomID: roomID, Departed: departed}
	}

	remaining := make([]Participant, len(room.Participants))
	copy(remaining, room.Participants)

	reg.logger.Info("玩家離開房間",
		"room_id", roomID,
		"conn_id", connID,
		"remaining", len(remaining))

	return Removal{
		Kind:      RemovalParticipantLeft,
		RoomID:    roomID,
		Departed:  departed,
		Remaining: remaining,
	}
}

// CloseRoom 無條件刪除房間
//
// 冪等：關閉不存在的房間是 no-op。返回被刪房間當時的參與者
// （呼叫方據此解除會話綁定並發送通知）。
func (reg *Registry) CloseRoom(roomID string) []Participant {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, exists := reg.rooms[roomID]
	if !exists {
		return nil
	}

	participants := make([]Participant, len(room.Participants))
	copy(participants, room.Participants)

	for _, p := range room.Participants {
		delete(reg.connRoom, p.ConnID)
	}
	delete(reg.rooms, roomID)

	reg.logger.Info("房間已關閉", "room_id", roomID, "participants", len(participants))

	return participants
}

// Participants 獲取房間目前的參與者快照（轉發時查詢用）
func (reg *Registry) Participants(roomID string) ([]Participant, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	room, exists := reg.rooms[roomID]
	if !exists {
		return nil, false
	}
	result := make([]Participant, len(room.Participants))
	copy(result, room.Participants)
	return result, true
}

// Stats 獲取統計資訊
func (reg *Registry) Stats() map[string]any {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	waiting, full := 0, 0
	for _, room := range reg.rooms {
		if room.IsFull() {
			full++
		} else {
			waiting++
		}
	}

	return map[string]any{
		"total_rooms":        len(reg.rooms),
		"waiting_rooms":      waiting,
		"full_rooms":         full,
		"total_participants": len(reg.connRoom),
	}
}
