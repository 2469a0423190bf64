package events

import (
	"sync"

	"github.com/robomesh/go-robomesh/internal/core/waitset"
	"github.com/robomesh/go-robomesh/pkg/types"
)

// Callback 事件回调
//
// 以闭包携带上下文；在 Manager 锁之外调用，可重入 Manager。
type Callback func()

// ============================================================================
// Manager 实现
// ============================================================================

// eventSlot 单种事件的全部状态
type eventSlot struct {
	status   types.EventStatus
	callback Callback
	unread   uint64
	cond     *waitset.Condition
}

// Manager 实体状态事件管理器
//
// 由实体在创建时零值初始化、随实体一同销毁，没有独立生命周期。
// 所有方法并发安全；见包文档的锁说明。
type Manager struct {
	mu    sync.Mutex
	slots [kindCount]eventSlot
}

// NewManager 创建事件管理器
func NewManager() *Manager {
	return &Manager{}
}

// TakeStatus 读取并复位指定种类的状态
//
// 返回复位前的快照；复位将两个 *Change 字段归零并清除 Changed，
// TotalCount、CurrentCount 与 Data 保持不变。总是成功。
func (m *Manager) TakeStatus(kind Kind) types.EventStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &m.slots[kind]
	ret := s.status
	s.status.TotalCountChange = 0
	s.status.CurrentCountChange = 0
	s.status.Changed = false
	return ret
}

// UpdateStatus 记录一次事件发生
//
// delta 为当前水平值的有符号增量（如匹配数 ±1）。
func (m *Manager) UpdateStatus(kind Kind, delta int64) {
	m.UpdateStatusWithData(kind, delta, nil)
}

// UpdateStatusWithData 记录一次事件发生并携带附加负载
//
// 由传输 I/O 协程调用。在锁内完成计数更新、回调裁决与挂接条件的
// 触发-清除（一次性挂接：触发后需重新挂接才能参与下个等待周期），
// 用户回调在释放锁后调用。data 为 nil 时保留已有负载。
func (m *Manager) UpdateStatusWithData(kind Kind, delta int64, data []byte) {
	var cb Callback

	m.mu.Lock()
	s := &m.slots[kind]
	s.status.TotalCount++
	s.status.TotalCountChange++
	s.status.CurrentCount = uint64(int64(s.status.CurrentCount) + delta)
	s.status.CurrentCountChange += delta
	if data != nil {
		s.status.Data = data
	}
	s.status.Changed = true

	if s.callback != nil {
		cb = s.callback
	} else {
		s.unread++
	}

	if s.cond != nil {
		s.cond.Trigger()
		s.cond = nil
	}
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// SetCallback 注册或替换指定种类的事件回调
//
// 注册前累积的触发按次数逐一重放后归零；传入 nil 注销回调，
// 之后的触发重新开始累积。重复注册同一回调只是替换，幂等。
func (m *Manager) SetCallback(kind Kind, cb Callback) {
	var replay uint64

	m.mu.Lock()
	s := &m.slots[kind]
	s.callback = cb
	if cb != nil && s.unread > 0 {
		replay = s.unread
		s.unread = 0
	}
	m.mu.Unlock()

	for i := uint64(0); i < replay; i++ {
		cb()
	}
}

// AttachConditionIfNotChanged 无未消费状态时挂接等待条件
//
// 返回 true 表示 Changed 已为真（有未消费状态），未进行挂接；
// 返回 false 表示已挂接。检查与挂接相对 UpdateStatus 原子，
// 由此封死"先检查后挂接"窗口内的丢失唤醒。
// 每个 (实体, 种类) 同时至多一个挂接。
func (m *Manager) AttachConditionIfNotChanged(kind Kind, c *waitset.Condition) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &m.slots[kind]
	if s.status.Changed {
		return true
	}
	s.cond = c
	return false
}

// DetachConditionAndCheckChanged 解除挂接并报告是否有未消费状态
//
// 消费者唤醒后（或决定不阻塞后）调用；未挂接时调用同样安全。
// 返回 Changed 当前值，真表示该实体对本次唤醒有贡献。
func (m *Manager) DetachConditionAndCheckChanged(kind Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &m.slots[kind]
	s.cond = nil
	return s.status.Changed
}
