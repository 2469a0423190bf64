package entity

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/robomesh/go-robomesh/internal/core/attachment"
	"github.com/robomesh/go-robomesh/internal/core/events"
	"github.com/robomesh/go-robomesh/internal/core/graph"
	"github.com/robomesh/go-robomesh/internal/core/liveliness"
	"github.com/robomesh/go-robomesh/internal/core/metrics"
	ifaces "github.com/robomesh/go-robomesh/pkg/interfaces"
	"github.com/robomesh/go-robomesh/pkg/types"
)

// ============================================================================
// PublisherData
// ============================================================================

// PublisherData 发布端点
//
// 每条样本带单调递增序列号与源时间戳，订阅方据此检测丢失。
type PublisherData struct {
	// Manager 承载匹配与 QoS 状态事件
	*events.Manager

	entity  *liveliness.Entity
	graph   *graph.Cache
	metrics *metrics.Metrics
	topic   liveliness.TopicInfo

	mu       sync.Mutex
	pub      ifaces.Publisher
	token    ifaces.LivelinessToken
	seq      int64
	shutdown bool
}

// NewPublisher 创建发布端点
func NewPublisher(deps Deps, ent *liveliness.Entity) (*PublisherData, error) {
	topic, ok := ent.Topic()
	if !ok || ent.Kind() != types.EntityPublisher {
		return nil, fmt.Errorf("entity %s is not a publisher", ent)
	}

	p := &PublisherData{
		Manager: events.NewManager(),
		entity:  ent,
		graph:   deps.Graph,
		metrics: deps.Metrics,
		topic:   topic,
	}

	deps.Graph.RegisterLocalEndpoint(ent, p.Manager)

	pub, err := deps.Session.DeclarePublisher(liveliness.TopicKeyexpr(ent.Node().DomainID, topic))
	if err != nil {
		deps.Graph.UnregisterLocalEndpoint(ent.GID())
		return nil, fmt.Errorf("declare publisher for %s: %w", topic.Name, err)
	}
	p.pub = pub

	token, err := deps.Session.DeclareLivelinessToken(ent.Keyexpr())
	if err != nil {
		_ = pub.Undeclare()
		deps.Graph.UnregisterLocalEndpoint(ent.GID())
		return nil, fmt.Errorf("declare liveliness token for %s: %w", topic.Name, err)
	}
	p.token = token

	logger.Debug("发布端点就绪", "topic", topic.Name, "qos", topic.QoS.String())
	return p, nil
}

// Entity 返回端点的图谱描述符
func (p *PublisherData) Entity() *liveliness.Entity { return p.entity }

// TopicName 返回发布的主题名
func (p *PublisherData) TopicName() string { return p.topic.Name }

// QoS 返回解析后的 QoS 配置
func (p *PublisherData) QoS() types.QoSProfile { return p.topic.QoS }

// Publish 发布一条样本
//
// 持锁跨越传输写入，同一发布者的序列号次序与投递次序一致。
// 写入失败时序列号不回退，订阅方将其视作一次丢失。
func (p *PublisherData) Publish(payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutdown {
		return ErrShutdown
	}

	p.seq++
	att, err := attachment.Encode(attachment.Attachment{
		SequenceNumber:  p.seq,
		SourceTimestamp: time.Now().UnixNano(),
		SourceGID:       p.entity.GID(),
	})
	if err != nil {
		return err
	}
	if err := p.pub.Put(payload, att); err != nil {
		return fmt.Errorf("publish on %s: %w", p.topic.Name, err)
	}
	if p.metrics != nil {
		p.metrics.MessagesPublished.Inc()
		p.metrics.Traffic.LogPublished(p.topic.Name, int64(len(payload)))
	}
	return nil
}

// SequenceNumber 返回最近一次发布使用的序列号
func (p *PublisherData) SequenceNumber() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

// Shutdown 关闭端点，幂等
func (p *PublisherData) Shutdown() error {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return nil
	}
	p.shutdown = true
	pub, token := p.pub, p.token
	p.mu.Unlock()

	p.graph.UnregisterLocalEndpoint(p.entity.GID())

	var err error
	if token != nil {
		err = multierr.Append(err, token.Undeclare())
	}
	if pub != nil {
		err = multierr.Append(err, pub.Undeclare())
	}
	return err
}

