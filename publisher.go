package robomesh

import (
	"github.com/robomesh/go-robomesh/internal/core/entity"
	"github.com/robomesh/go-robomesh/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              Publisher
// ════════════════════════════════════════════════════════════════════════════

// Publisher 发布者句柄
//
// 并发安全：Publish 可在多协程调用，同一发布者的序列号次序
// 与投递次序一致。
type Publisher struct {
	node *Node
	data *entity.PublisherData
}

// TopicName 返回发布的主题名
func (p *Publisher) TopicName() string { return p.data.TopicName() }

// QoS 返回解析后的 QoS 配置
func (p *Publisher) QoS() types.QoSProfile { return p.data.QoS() }

// GID 返回发布者的全局唯一标识
func (p *Publisher) GID() types.GID { return p.data.Entity().GID() }

// Publish 发布一条消息
//
// 载荷随附序列号、源时间戳与发布者 GID，订阅方据此填充
// 消息信息并检测丢失。
func (p *Publisher) Publish(payload []byte) error {
	return p.data.Publish(payload)
}

// SequenceNumber 返回最近一次发布使用的序列号
func (p *Publisher) SequenceNumber() int64 { return p.data.SequenceNumber() }

// MatchedSubscriptions 返回图谱中与本主题匹配的订阅者数量
func (p *Publisher) MatchedSubscriptions() int {
	return p.node.ctx.CountSubscriptions(p.data.TopicName())
}

// ════════════════════════════════════════════════════════════════════════════
//                              状态事件
// ════════════════════════════════════════════════════════════════════════════

// TakeEventStatus 读取并清零指定事件的增量状态
//
// 发布者支持 PublicationMatched、OfferedQoSIncompatible、
// PublisherIncompatibleType；其余种类返回 ErrEventUnsupported。
func (p *Publisher) TakeEventStatus(kind types.EventKind) (types.EventStatus, error) {
	k, err := publisherEventKind(kind)
	if err != nil {
		return types.EventStatus{}, err
	}
	return p.data.TakeStatus(k), nil
}

// SetEventCallback 注册指定事件的触发回调
//
// cb 为 nil 时撤销已注册回调。注册时若有未读增量，回调
// 立刻补发一次。
func (p *Publisher) SetEventCallback(kind types.EventKind, cb func()) error {
	k, err := publisherEventKind(kind)
	if err != nil {
		return err
	}
	p.data.SetCallback(k, cb)
	return nil
}

// Event 返回指定事件的等待句柄
//
// 句柄可挂入 WaitSet，事件状态变化时唤醒等待者。
func (p *Publisher) Event(kind types.EventKind) (*Event, error) {
	k, err := publisherEventKind(kind)
	if err != nil {
		return nil, err
	}
	return &Event{source: p.data, kind: k, public: kind}, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Shutdown 关闭发布者，幂等
func (p *Publisher) Shutdown() error {
	p.node.removePublisher(p)
	return p.data.Shutdown()
}
