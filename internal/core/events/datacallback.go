package events

import "sync"

// ============================================================================
// DataCallbackManager 实现
// ============================================================================

// DataCallbackManager "有新数据"回调管理器
//
// Manager 的单一隐式种类特化：每个实体一个，实例数据入队时触发。
// 与事件回调相同的补投契约；注册前累积的触发在 SetCallback 内
// 同步逐次重放。
type DataCallbackManager struct {
	mu     sync.Mutex
	cb     Callback
	unread uint64
}

// SetCallback 注册或替换回调
//
// 累积的未读触发在本调用内同步重放（每次累积对应一次调用），
// 随后归零。传入 nil 注销回调。
func (m *DataCallbackManager) SetCallback(cb Callback) {
	var replay uint64

	m.mu.Lock()
	m.cb = cb
	if cb != nil && m.unread > 0 {
		replay = m.unread
		m.unread = 0
	}
	m.mu.Unlock()

	for i := uint64(0); i < replay; i++ {
		cb()
	}
}

// Trigger 通知一次新数据到达
//
// 已注册回调时在锁外调用之；未注册时累积未读计数。
func (m *DataCallbackManager) Trigger() {
	m.mu.Lock()
	cb := m.cb
	if cb == nil {
		m.unread++
	}
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
}
