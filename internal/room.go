package internal

import "time"

// 系統設計問題：
//   如何表示「恰好兩人」的對局房間，並讓兩位參與者的顏色永遠互補？
//
// 核心挑戰：
//   1. 容量不是「最多 N 人」而是「恰好 2 人」——第三個加入必須被拒絕
//   2. 顏色分配依賴進房順序：先到者的顏色錨定後到者（取補色）
//   3. 參與者是快照不是引用：進房後會話資料再變動，房間不跟著變
//
// 設計方案：
//   ✅ 有序 slice 而非 map——插入順序就是語義（先到者錨定顏色）
//   ✅ Participant 值拷貝——與 Session 解耦
//   ✅ Room 本身不帶鎖——所有變更集中在 Registry，鎖也集中在那裡

// Color 執棋顏色
type Color string

const (
	ColorWhite Color = "white" // 白方
	ColorBlack Color = "black" // 黑方
)

// Opposite 取補色
func (c Color) Opposite() Color {
	if c == ColorWhite {
		return ColorBlack
	}
	return ColorWhite
}

// Participant 房間內的參與者快照
//
// 綁定進房間那一刻從 Session 拷貝而來，之後兩者互不影響。
type Participant struct {
	ConnID      string `json:"id"`
	DisplayName string `json:"username"`
	Color       Color  `json:"orientation"`
}

// Room 對局房間
//
// 生命週期：創建（單一參與者等待對手）→ 滿員對局 →
// 顯式關閉或最後一人斷線後刪除。容量恰好 2，
// 不變量由 Registry 維護：
//   - 0 <= len(Participants) <= 2
//   - 滿員時兩位參與者顏色互補
//   - 空房間不存在（會被立即刪除而非留空）
type Room struct {
	// ID 全域唯一，創建後不可變
	ID string
	// TimeControlMinutes 創建時從創建者會話固定下來
	TimeControlMinutes int
	// Participants 有序：索引 0 是創建者，其顏色錨定加入者的顏色
	Participants []Participant
	// CreatedAt 創建時間（僅供統計與日誌）
	CreatedAt time.Time
}

// NewRoom 創建房間，創建者為唯一參與者
func NewRoom(id string, timeControlMinutes int, creator Participant) *Room {
	return &Room{
		ID:                 id,
		TimeControlMinutes: timeControlMinutes,
		Participants:       []Participant{creator},
		CreatedAt:          time.Now(),
	}
}

// IsFull 房間是否已滿
func (r *Room) IsFull() bool {
	return len(r.Participants) >= 2
}

// RoomState 房間的可序列化視圖（回應 joinRoom 與 opponentJoined 通知用）
type RoomState struct {
	RoomID             string        `json:"roomId"`
	TimeControlMinutes int           `json:"gameDuration"`
	Players            []Participant `json:"players"`
}

// State 獲取房間狀態快照
func (r *Room) State() RoomState {
	players := make([]Participant, len(r.Participants))
	copy(players, r.Participants)
	return RoomState{
		RoomID:             r.ID,
		TimeControlMinutes: r.TimeControlMinutes,
		Players:            players,
	}
}
