package robomesh

import (
	"github.com/robomesh/go-robomesh/internal/core/entity"
	"github.com/robomesh/go-robomesh/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              Subscription
// ════════════════════════════════════════════════════════════════════════════

// Subscription 订阅者句柄
//
// 收到的消息进入有界队列，TakeMessage 按到达顺序取出。队列
// 满时丢弃最旧一条并计入 MessageLost 事件。
type Subscription struct {
	node *Node
	data *entity.SubscriptionData
}

// TopicName 返回订阅的主题名
func (s *Subscription) TopicName() string { return s.data.TopicName() }

// QoS 返回解析后的 QoS 配置
func (s *Subscription) QoS() types.QoSProfile { return s.data.QoS() }

// GID 返回订阅者的全局唯一标识
func (s *Subscription) GID() types.GID { return s.data.Entity().GID() }

// TakeMessage 取出队列中最早一条消息
//
// 队列为空时返回 (nil, false)。消息信息含源时间戳、接收
// 时间戳、序列号与发布者 GID。
func (s *Subscription) TakeMessage() (*types.Message, bool) {
	return s.data.TakeMessage()
}

// QueueSize 返回队列中待取消息数
func (s *Subscription) QueueSize() int { return s.data.QueueSize() }

// MatchedPublishers 返回图谱中与本主题匹配的发布者数量
func (s *Subscription) MatchedPublishers() int {
	return s.node.ctx.CountPublishers(s.data.TopicName())
}

// SetOnNewMessage 注册新消息回调
//
// 每入队一条消息触发一次。cb 为 nil 时撤销；注册时队列
// 非空则按待取条数补发。
func (s *Subscription) SetOnNewMessage(cb func()) {
	s.data.SetDataCallback(cb)
}

// ════════════════════════════════════════════════════════════════════════════
//                              状态事件
// ════════════════════════════════════════════════════════════════════════════

// TakeEventStatus 读取并清零指定事件的增量状态
//
// 订阅者支持 SubscriptionMatched、RequestedQoSIncompatible、
// MessageLost、SubscriptionIncompatibleType；其余种类返回
// ErrEventUnsupported。
func (s *Subscription) TakeEventStatus(kind types.EventKind) (types.EventStatus, error) {
	k, err := subscriptionEventKind(kind)
	if err != nil {
		return types.EventStatus{}, err
	}
	return s.data.TakeStatus(k), nil
}

// SetEventCallback 注册指定事件的触发回调
func (s *Subscription) SetEventCallback(kind types.EventKind, cb func()) error {
	k, err := subscriptionEventKind(kind)
	if err != nil {
		return err
	}
	s.data.SetCallback(k, cb)
	return nil
}

// Event 返回指定事件的等待句柄
func (s *Subscription) Event(kind types.EventKind) (*Event, error) {
	k, err := subscriptionEventKind(kind)
	if err != nil {
		return nil, err
	}
	return &Event{source: s.data, kind: k, public: kind}, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Shutdown 关闭订阅者，幂等
func (s *Subscription) Shutdown() error {
	s.node.removeSubscription(s)
	return s.data.Shutdown()
}
