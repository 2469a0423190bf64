package waitset

import "sync"

// ============================================================================
// GuardCondition 实现
// ============================================================================

// GuardCondition 守护条件
//
// 可由应用或内部组件（如图谱变更通知）主动触发的唤醒源，
// 与实体事件共用同一套"检查-挂接-触发-解除"协议。
// hasTriggered 在解除挂接检查时被消费，保证一次触发只计一次就绪。
type GuardCondition struct {
	mu           sync.Mutex
	hasTriggered bool
	cond         *Condition
}

// NewGuardCondition 创建守护条件
func NewGuardCondition() *GuardCondition {
	return &GuardCondition{}
}

// Trigger 触发守护条件
//
// 若当前有挂接的等待条件则同时唤醒它。
func (g *GuardCondition) Trigger() {
	g.mu.Lock()
	g.hasTriggered = true
	if g.cond != nil {
		g.cond.Trigger()
	}
	g.mu.Unlock()
}

// AttachConditionIfNotTriggered 无未消费触发时挂接等待条件
//
// 返回 true 表示已有未消费的触发，未进行挂接；
// 检查与挂接相对 Trigger 原子。
func (g *GuardCondition) AttachConditionIfNotTriggered(c *Condition) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.hasTriggered {
		return true
	}
	g.cond = c
	return false
}

// DetachConditionAndCheckTriggered 解除挂接并消费触发标记
//
// 返回解除时是否存在未消费的触发；未挂接时调用同样安全。
func (g *GuardCondition) DetachConditionAndCheckTriggered() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cond = nil
	triggered := g.hasTriggered
	g.hasTriggered = false
	return triggered
}
