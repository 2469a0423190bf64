package robomesh

import (
	"fmt"

	"github.com/robomesh/go-robomesh/internal/core/entity"
	"github.com/robomesh/go-robomesh/internal/core/events"
	"github.com/robomesh/go-robomesh/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              事件种类校验
// ════════════════════════════════════════════════════════════════════════════

// publisherEventKind 将公开事件种类解析为发布侧内部种类
//
// 非发布侧种类与传输层不产生的种类（存活、截止期类）一律
// 返回 ErrEventUnsupported。
func publisherEventKind(kind types.EventKind) (events.Kind, error) {
	k := events.FromEventKind(kind)
	if !k.Valid() || !kind.IsPublisherEvent() {
		return events.KindInvalid, fmt.Errorf("%w: %s", ErrEventUnsupported, kind)
	}
	return k, nil
}

// subscriptionEventKind 将公开事件种类解析为订阅侧内部种类
func subscriptionEventKind(kind types.EventKind) (events.Kind, error) {
	k := events.FromEventKind(kind)
	if !k.Valid() || !kind.IsSubscriptionEvent() {
		return events.KindInvalid, fmt.Errorf("%w: %s", ErrEventUnsupported, kind)
	}
	return k, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              Event
// ════════════════════════════════════════════════════════════════════════════

// Event 端点上单一事件种类的等待句柄
//
// 由 Publisher.Event 或 Subscription.Event 创建，挂入 WaitSet
// 后在事件出现未读增量时唤醒等待者。同一端点同一种类可创建
// 多个句柄，它们共享底层状态。
type Event struct {
	source entity.StatusSource
	kind   events.Kind
	public types.EventKind
}

// Kind 返回句柄对应的事件种类
func (e *Event) Kind() types.EventKind { return e.public }

// TakeStatus 读取并清零事件的增量状态
func (e *Event) TakeStatus() types.EventStatus {
	return e.source.TakeStatus(e.kind)
}

// SetCallback 注册事件触发回调
//
// cb 为 nil 时撤销。与端点上 SetEventCallback 作用于同一
// 底层回调槽。
func (e *Event) SetCallback(cb func()) {
	e.source.SetCallback(e.kind, cb)
}
