package robomesh

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robomesh/go-robomesh/internal/core/waitset"
)

// WaitForever 传给 WaitSet.Wait 表示无限等待
const WaitForever = waitset.WaitForever

// ════════════════════════════════════════════════════════════════════════════
//                              GuardCondition
// ════════════════════════════════════════════════════════════════════════════

// GuardCondition 守护条件句柄
//
// 不绑定实体的唤醒源。应用在任意协程调用 Trigger，等待中的
// WaitSet 将其报告为就绪。一次触发只计一次就绪。
type GuardCondition struct {
	guard *waitset.GuardCondition
}

// Trigger 触发守护条件
func (g *GuardCondition) Trigger() { g.guard.Trigger() }

// ════════════════════════════════════════════════════════════════════════════
//                              Waitables
// ════════════════════════════════════════════════════════════════════════════

// Waitables 一次等待涉及的实体集合
//
// 各切片的条目必须非空指针。同一实体不得同时出现在两个正在
// 等待的 WaitSet 中。
type Waitables struct {
	Subscriptions   []*Subscription
	GuardConditions []*GuardCondition
	Services        []*Service
	Clients         []*Client
	Events          []*Event
}

// empty 返回集合是否不含任何实体
func (w *Waitables) empty() bool {
	return len(w.Subscriptions) == 0 &&
		len(w.GuardConditions) == 0 &&
		len(w.Services) == 0 &&
		len(w.Clients) == 0 &&
		len(w.Events) == 0
}

// ════════════════════════════════════════════════════════════════════════════
//                              WaitSet
// ════════════════════════════════════════════════════════════════════════════

// WaitSet 多实体就绪等待
//
// 同一 WaitSet 同时只允许一个 Wait 在途；实体集合按次传入，
// 两次 Wait 之间可以不同。
type WaitSet struct {
	cond  *waitset.Condition
	inUse atomic.Bool
}

// Wait 阻塞直到集合中任一实体就绪、超时或上下文取消
//
// timeout 语义与底层条件一致：WaitForever 无限等待，0 只做
// 一次就绪轮询，正值至多等待该时长。
//
// 返回就绪子集：队列非空的订阅者/服务端/客户端、有未消费
// 触发的守护条件、有未读增量的事件。超时且无任何就绪时返回
// ErrWaitTimeout；上下文取消时返回 ctx.Err()，就绪子集仍然
// 有效。并发调用返回 ErrWaitSetInUse。
func (ws *WaitSet) Wait(ctx context.Context, timeout time.Duration, w Waitables) (Waitables, error) {
	if !ws.inUse.CompareAndSwap(false, true) {
		return Waitables{}, ErrWaitSetInUse
	}
	defer ws.inUse.Store(false)

	// 上个周期跳过阻塞时可能残留未消费的触发，先行丢弃；
	// 就绪状态在下面的挂接阶段重新从实体读出
	ws.cond.Reset()

	// 挂接阶段：任一实体已就绪则跳过阻塞
	ready := false
	for _, s := range w.Subscriptions {
		if s.data.AttachConditionIfEmpty(ws.cond) {
			ready = true
		}
	}
	for _, g := range w.GuardConditions {
		if g.guard.AttachConditionIfNotTriggered(ws.cond) {
			ready = true
		}
	}
	for _, s := range w.Services {
		if s.data.AttachConditionIfEmpty(ws.cond) {
			ready = true
		}
	}
	for _, c := range w.Clients {
		if c.data.AttachConditionIfEmpty(ws.cond) {
			ready = true
		}
	}
	for _, e := range w.Events {
		if e.source.AttachConditionIfNotChanged(e.kind, ws.cond) {
			ready = true
		}
	}

	var waitErr error
	if !ready {
		_, waitErr = ws.cond.Wait(ctx, timeout)
	}

	// 解除阶段：对全部实体解除挂接并收集就绪子集。未挂接的
	// 实体解除同样安全，就绪以实体当前状态为准
	var out Waitables
	for _, s := range w.Subscriptions {
		if s.data.DetachConditionAndCheckData() {
			out.Subscriptions = append(out.Subscriptions, s)
		}
	}
	for _, g := range w.GuardConditions {
		if g.guard.DetachConditionAndCheckTriggered() {
			out.GuardConditions = append(out.GuardConditions, g)
		}
	}
	for _, s := range w.Services {
		if s.data.DetachConditionAndCheckData() {
			out.Services = append(out.Services, s)
		}
	}
	for _, c := range w.Clients {
		if c.data.DetachConditionAndCheckData() {
			out.Clients = append(out.Clients, c)
		}
	}
	for _, e := range w.Events {
		if e.source.DetachConditionAndCheckChanged(e.kind) {
			out.Events = append(out.Events, e)
		}
	}

	if waitErr != nil {
		return out, waitErr
	}
	if out.empty() {
		return out, ErrWaitTimeout
	}
	return out, nil
}
