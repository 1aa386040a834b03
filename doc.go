// Package sessionrelay 提供了一個雙人即時對局協調服務器。
//
// 實現了一個「一房兩人」的配對與事件轉發系統，包含以下核心功能：
//
// 房間生命週期管理
//
// 提供完整的房間生命週期：
//   - 創建房間（創建者為唯一參與者，等待對手）
//   - 加入房間（嚴格兩人上限，第二位加入者顏色自動取補色）
//   - 顯式關閉（通知所有成員並解除綁定）
//   - 斷線清理（空房間立即刪除，不留殘骸）
//
// # 事件轉發（Relay）
//
// 房間內事件對「除發送者外」的所有成員轉發：
//   - 棋步（move）：負載不解析、不驗證，規則引擎在客戶端
//   - 聊天訊息（message）
//   - WebRTC 信令（offer / answer / ice-candidate）：媒體流走瀏覽器
//     原生 PeerConnection，服務器只負責信令中轉
//
// 房間已消失時事件靜默丟棄——這是拆除競態下的預期行為，不是錯誤。
//
// 併發安全設計
//
// 每個連接一個處理 goroutine，Room Registry 作為共享可變狀態：
//   - 全域讀寫鎖序列化成員變更（同房併發加入只有一個能成功）
//   - connID → roomID 反向索引，斷線處理 O(1)
//   - Channel 緩衝異步發送，慢客戶端不拖累整個房間
//
// # WebSocket 通訊
//
// 實現了即時雙向通訊機制：
//   - 支援心跳檢測（Ping/Pong，54s/60s）
//   - JSON 信封協議（{"type": "...", "data": ...}）
//   - 連接關閉無條件觸發斷線處理路徑
//
// 架構設計
//
// 系統採用分層架構設計：
//   - Hub 層：WebSocket 連接管理與訊息分發
//   - Coordinator 層：配對協議、事件轉發、生命週期
//   - Registry 層：房間成員關係的唯一權威
//   - Handler 層：HTTP 健康檢查、統計與靜態資源
//
// 每層都有明確的職責邊界，透過介面進行交互，便於測試與擴展。
//
// 配置選項
//
// 支援多種運行時配置：
//   - -port：服務監聽端口（預設 5000）
//   - -log-level：日誌級別（debug/info/warn/error）
//   - -log-format：日誌格式（text/json）
//   - -static-dir：客戶端靜態資源目錄
package sessionrelay
