package internal

import (
	"errors"
	"fmt"
	"sync"
)

// SidePreference 玩家的執棋偏好
type SidePreference string

const (
	PreferWhite  SidePreference = "white"  // 偏好白方
	PreferBlack  SidePreference = "black"  // 偏好黑方
	PreferRandom SidePreference = "random" // 隨機分配
)

// 預設時間控制（分鐘）
const defaultTimeControlMinutes = 10

// 顯示名稱長度限制
const maxDisplayNameLen = 15

// ErrInvalidProfile 個人資料不合法
//
// 正常情況下客戶端在送達此層之前已完成驗證，
// 這裡是防禦性檢查：核心不信任外層輸入。
var ErrInvalidProfile = errors.New("invalid profile")

// Session 連接會話
//
// 每個活躍的 WebSocket 連接對應一個 Session，保存進房前收集的
// 可變狀態（顯示名稱、執棋偏好、時間控制）。
//
// 所有權模型：
//   - Session 由其連接獨佔擁有，連接關閉即銷毀
//   - RoomID 只是反向查詢用的引用，不代表擁有房間
//   - 進房時取的是快照（Participant），之後 Session 欄位
//     繼續變動不影響房間內的快照
type Session struct {
	// ID 連接唯一標識，連接存活期間不變
	ID string

	mu                 sync.Mutex
	displayName        string
	sidePreference     SidePreference
	timeControlMinutes int
	roomID             string
}

// NewSession 創建連接會話
//
// 偏好預設為隨機、時間控制預設 10 分鐘，
// 因此未呼叫 SetProfile 也能直接創建房間（但名稱必須先設定）。
func NewSession(id string) *Session {
	return &Session{
		ID:                 id,
		sidePreference:     PreferRandom,
		timeControlMinutes: defaultTimeControlMinutes,
	}
}

// SetProfile 設定個人資料
//
// 只影響本連接的會話，對房間沒有任何副作用。
func (s *Session) SetProfile(displayName string, pref SidePreference, timeControlMinutes int) error {
	if displayName == "" || len([]rune(displayName)) > maxDisplayNameLen {
		return fmt.Errorf("%w: 顯示名稱必須為 1-%d 個字元", ErrInvalidProfile, maxDisplayNameLen)
	}
	switch pref {
	case PreferWhite, PreferBlack, PreferRandom:
	default:
		return fmt.Errorf("%w: 未知的執棋偏好 %q", ErrInvalidProfile, pref)
	}
	if timeControlMinutes <= 0 {
		return fmt.Errorf("%w: 時間控制必須為正整數", ErrInvalidProfile)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayName = displayName
	s.sidePreference = pref
	s.timeControlMinutes = timeControlMinutes
	return nil
}

// DisplayName 獲取顯示名稱
func (s *Session) DisplayName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayName
}

// SidePreference 獲取執棋偏好
func (s *Session) SidePreference() SidePreference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sidePreference
}

// TimeControlMinutes 獲取時間控制
func (s *Session) TimeControlMinutes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeControlMinutes
}

// RoomID 獲取目前綁定的房間 ID（未綁定時為空字串）
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// BindRoom 綁定房間
func (s *Session) BindRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomID = roomID
}

// UnbindRoom 解除房間綁定
func (s *Session) UnbindRoom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomID = ""
}
