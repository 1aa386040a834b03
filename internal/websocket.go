package internal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// 系統設計問題：
//   如何把「每連接一個處理任務」的調度模型落在 WebSocket 上，
//   並保證斷線路徑一定執行？
//
// 核心挑戰：
//   1. 連接先於房間存在：連接建立時還沒有房間，配對後才綁定
//   2. 心跳機制：檢測死連接（網絡異常、瀏覽器崩潰）
//   3. 斷線即中斷：讀取循環退出時必須無條件跑完生命週期處理，
//      再釋放連接資源
//   4. 慢消費者：單個客戶端寫入堵塞不能拖累同房另一人
//
// 設計方案：
//   ✅ Hub 模式：集中管理所有連接，connID -> Conn 單層映射
//   ✅ Ping/Pong 心跳：54s 發送 / 60s 讀取超時（錯開常見代理的 60s 閾值）
//   ✅ 緩衝 channel 異步發送：緩衝滿時丟幀而非阻塞
//   ✅ defer 斷線處理：readPump 退出的唯一出口就是斷線路徑

const (
	// 讀取超時，收到任何訊息（含 Pong）即重置
	pongWait = 60 * time.Second
	// Ping 間隔，留 6 秒餘量給網絡傳輸
	pingPeriod = 54 * time.Second
	// 單次寫入超時
	writeWait = 10 * time.Second
	// 出站緩衝大小
	sendBufferSize = 256
)

// Hub WebSocket 連接中心
//
// 連接以 connID 為鍵單層存放（不按房間分組）：連接在配對前就存在，
// 房間歸屬屬於 Registry 的職責，轉發時按參與者快照逐一定址。
type Hub struct {
	coordinator *Coordinator
	logger      *slog.Logger
	upgrader    websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*Conn // connID -> Conn
}

// Conn 一條活躍的 WebSocket 連接
type Conn struct {
	ID      string
	Session *Session
	ws      *websocket.Conn
	send    chan []byte
	hub     *Hub

	closeOnce sync.Once // 確保 send channel 只關閉一次
}

// NewHub 創建 WebSocket Hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 允許任意來源（生產環境應檢查）
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[string]*Conn),
	}
}

// Attach 綁定協調器
//
// Hub 與 Coordinator 互相引用（Hub 分發入站訊息給 Coordinator，
// Coordinator 經 Hub 投遞出站訊息），因此分兩步組裝。
func (hub *Hub) Attach(coordinator *Coordinator) {
	hub.coordinator = coordinator
}

// ServeWS 處理 WebSocket 連接
//
// 每個連接分配一個新的 uuid 與空白會話，隨即啟動讀寫 goroutine。
func (hub *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	connID := uuid.NewString()
	conn := &Conn{
		ID:      connID,
		Session: NewSession(connID),
		ws:      ws,
		send:    make(chan []byte, sendBufferSize),
		hub:     hub,
	}

	hub.register(conn)

	go conn.writePump()
	go conn.readPump()

	hub.logger.Info("連接建立", "conn_id", connID, "remote", r.RemoteAddr)
}

// register 註冊連接
func (hub *Hub) register(conn *Conn) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.conns[conn.ID] = conn
}

// unregister 取消註冊連接
func (hub *Hub) unregister(conn *Conn) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if actual, exists := hub.conns[conn.ID]; exists && actual == conn {
		delete(hub.conns, conn.ID)
		conn.closeOnce.Do(func() {
			close(conn.send)
		})
	}
}

// Send 向指定連接發送事件（實現 Sender 介面）
//
// 盡力而為：連接已消失直接丟棄；緩衝滿也丟棄（慢客戶端不
// 拖累同房另一人），只記告警。
//
// 讀鎖必須持有到發送完成：unregister 在寫鎖內關閉 send channel，
// 鎖若在查找後提前釋放，關閉可能插在查找與發送之間，
// 造成向已關閉 channel 發送而 panic。
func (hub *Hub) Send(connID string, event Envelope) {
	data, err := json.Marshal(event)
	if err != nil {
		hub.logger.Error("序列化事件失敗", "error", err, "type", event.Type)
		return
	}

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	conn, exists := hub.conns[connID]
	if !exists {
		return
	}

	select {
	case conn.send <- data:
	default:
		hub.logger.Warn("連接緩衝區滿，事件丟棄",
			"conn_id", connID,
			"type", event.Type)
	}
}

// Detach 解除指定連接的房間綁定（實現 Sender 介面）
func (hub *Hub) Detach(connID string) {
	hub.mu.RLock()
	conn, exists := hub.conns[connID]
	hub.mu.RUnlock()
	if exists {
		conn.Session.UnbindRoom()
	}
}

// ConnectionCount 獲取目前連接數
func (hub *Hub) ConnectionCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.conns)
}

// Stop 停止 Hub，關閉所有連接
//
// send channel 一律在寫鎖內關閉（與 unregister 相同），
// 與持有讀鎖的 Send 互斥。
func (hub *Hub) Stop() {
	hub.mu.Lock()
	conns := make([]*Conn, 0, len(hub.conns))
	for _, conn := range hub.conns {
		conns = append(conns, conn)
		conn.closeOnce.Do(func() {
			close(conn.send)
		})
	}
	hub.conns = make(map[string]*Conn)
	hub.mu.Unlock()

	for _, conn := range conns {
		conn.ws.Close()
	}

	hub.logger.Info("WebSocket Hub 已停止")
}

// readPump 讀取客戶端訊息
//
// 心跳機制（讀取端）：60 秒內沒有任何訊息（含 Pong）即判定死連接。
// 配合 writePump 的 54 秒 Ping，留 6 秒餘量。
//
// 退出時的 defer 是斷線路徑的唯一入口：不論正常關閉、讀取錯誤
// 還是超時，生命週期處理一定先於資源釋放執行。
func (c *Conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.hub.coordinator.HandleDisconnect(c.Session)
		c.ws.Close()
		c.hub.logger.Info("連接關閉", "conn_id", c.ID)
	}()

	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.hub.logger.Error("設置讀取期限失敗", "error", err)
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket 讀取錯誤",
					"error", err,
					"conn_id", c.ID)
			}
			break
		}

		if messageType == websocket.TextMessage {
			c.dispatch(message)
		}
	}
}

// writePump 寫入訊息到客戶端
//
// 心跳機制（發送端）：54 秒 Ping 間隔，錯開常見代理的 60 秒閾值。
// send channel 關閉即發送關閉幀並退出。
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				// Hub 關閉了通道，優雅關閉連接
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// 批量發送隊列中的訊息
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.ws.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch 分發入站訊息
//
// 轉發類訊息只解出 roomId 做路由，負載不檢查、不驗證。
func (c *Conn) dispatch(message []byte) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.hub.logger.Warn("解析客戶端訊息失敗",
			"error", err,
			"conn_id", c.ID)
		return
	}

	switch env.Type {
	case MsgSetProfile:
		c.hub.coordinator.SetProfile(c.Session, env.Data)
	case MsgCreateRoom:
		c.hub.coordinator.CreateRoom(c.Session)
	case MsgJoinRoom:
		c.hub.coordinator.JoinRoom(c.Session, env.Data)
	case MsgMove:
		var p relayPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		// move 事件只轉發內層棋步負載
		c.hub.coordinator.Relay(p.RoomID, c.ID, MsgMove, p.Move)
	case MsgMessage, MsgOffer, MsgAnswer, MsgICECandidate:
		var p relayPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		c.hub.coordinator.Relay(p.RoomID, c.ID, env.Type, env.Data)
	case MsgCloseRoom:
		c.hub.coordinator.CloseRoom(c.Session, env.Data)
	default:
		c.hub.logger.Debug("收到未知訊息類型",
			"type", env.Type,
			"conn_id", c.ID)
	}
}
