package entity

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"

	"github.com/robomesh/go-robomesh/internal/core/attachment"
	"github.com/robomesh/go-robomesh/internal/core/events"
	"github.com/robomesh/go-robomesh/internal/core/graph"
	"github.com/robomesh/go-robomesh/internal/core/liveliness"
	"github.com/robomesh/go-robomesh/internal/core/metrics"
	"github.com/robomesh/go-robomesh/internal/core/waitset"
	ifaces "github.com/robomesh/go-robomesh/pkg/interfaces"
	"github.com/robomesh/go-robomesh/pkg/lib/log"
	"github.com/robomesh/go-robomesh/pkg/types"
)

var logger = log.Logger("core/entity")

// ErrShutdown 端点已关闭
var ErrShutdown = types.ErrShutdown

// publisherSeqCacheSize 每个订阅跟踪的发布者序列号上限
//
// 超过后按最久未活跃淘汰；被淘汰的发布者再次出现时从新序列号
// 重新跟踪，不误报丢失。
const publisherSeqCacheSize = 32

// Deps 端点共享的运行时依赖
type Deps struct {
	Session ifaces.Session
	Graph   *graph.Cache
	// Metrics 可为 nil，nil 时不计数
	Metrics *metrics.Metrics
}

// ============================================================================
// SubscriptionData
// ============================================================================

// SubscriptionData 订阅端点
//
// 接收线程把样本解码后追加进消息队列，消费方通过 TakeMessage
// 逐条取走。KeepLast 策略下队列有界，企满时挤掉最旧样本。
type SubscriptionData struct {
	// Manager 承载匹配、QoS、丢失等状态事件
	*events.Manager

	entity  *liveliness.Entity
	graph   *graph.Cache
	metrics *metrics.Metrics
	topic   liveliness.TopicInfo
	// depth 为 0 表示无界（KeepAll）
	depth int

	dataCallback events.DataCallbackManager

	mu       sync.Mutex
	queue    []*types.Message
	lastSeq  *lru.Cache[types.GID, int64]
	cond     *waitset.Condition
	sub      ifaces.Subscriber
	token    ifaces.LivelinessToken
	shutdown bool
}

// NewSubscription 创建订阅端点
//
// 次序固定：先注册图谱钩子，再声明传输订阅，最后声明存活令牌。
// 令牌回环到达本会话时钩子已经就位，与既有对端的匹配事件不会
// 漏报。
func NewSubscription(deps Deps, ent *liveliness.Entity) (*SubscriptionData, error) {
	topic, ok := ent.Topic()
	if !ok || ent.Kind() != types.EntitySubscription {
		return nil, fmt.Errorf("entity %s is not a subscription", ent)
	}

	lastSeq, err := lru.New[types.GID, int64](publisherSeqCacheSize)
	if err != nil {
		return nil, err
	}

	s := &SubscriptionData{
		Manager: events.NewManager(),
		entity:  ent,
		graph:   deps.Graph,
		metrics: deps.Metrics,
		topic:   topic,
		lastSeq: lastSeq,
	}
	if topic.QoS.History == types.HistoryKeepLast {
		s.depth = topic.QoS.Depth
	}

	deps.Graph.RegisterLocalEndpoint(ent, s.Manager)

	sub, err := deps.Session.DeclareSubscriber(
		liveliness.TopicKeyexpr(ent.Node().DomainID, topic), s.handleSample)
	if err != nil {
		deps.Graph.UnregisterLocalEndpoint(ent.GID())
		return nil, fmt.Errorf("declare subscriber for %s: %w", topic.Name, err)
	}
	s.sub = sub

	token, err := deps.Session.DeclareLivelinessToken(ent.Keyexpr())
	if err != nil {
		_ = sub.Undeclare()
		deps.Graph.UnregisterLocalEndpoint(ent.GID())
		return nil, fmt.Errorf("declare liveliness token for %s: %w", topic.Name, err)
	}
	s.token = token

	logger.Debug("订阅端点就绪", "topic", topic.Name, "qos", topic.QoS.String())
	return s, nil
}

// Entity 返回端点的图谱描述符
func (s *SubscriptionData) Entity() *liveliness.Entity { return s.entity }

// TopicName 返回订阅的主题名
func (s *SubscriptionData) TopicName() string { return s.topic.Name }

// QoS 返回解析后的 QoS 配置
func (s *SubscriptionData) QoS() types.QoSProfile { return s.topic.QoS }

// handleSample 传输回调：解码附件并入队
func (s *SubscriptionData) handleSample(sample types.Sample) {
	if sample.Kind != types.SampleKindPut {
		return
	}
	att, err := attachment.Decode(sample.Attachment)
	if err != nil {
		logger.Warn("丢弃附件无法解码的样本", "topic", s.topic.Name, "err", err)
		return
	}
	s.AddMessage(&types.Message{
		Payload: sample.Payload,
		Info: types.MessageInfo{
			SourceTimestamp:   att.SourceTimestamp,
			ReceivedTimestamp: sample.Timestamp,
			SequenceNumber:    att.SequenceNumber,
			PublisherGID:      att.SourceGID,
		},
	})
}

// AddMessage 将一条消息追加进队列
//
// 队列满时挤掉最旧样本；按发布者序列号缺口推断丢失并上报
// MessageLost 事件。事件与数据回调在队列锁之外触发。
func (s *SubscriptionData) AddMessage(msg *types.Message) {
	var lost int64
	var dropped bool

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return
	}
	if s.depth > 0 && len(s.queue) >= s.depth {
		s.queue[0] = nil
		s.queue = s.queue[1:]
		dropped = true
	}

	gid := msg.Info.PublisherGID
	if prev, ok := s.lastSeq.Get(gid); ok && msg.Info.SequenceNumber > prev+1 {
		lost = msg.Info.SequenceNumber - prev - 1
	}
	s.lastSeq.Add(gid, msg.Info.SequenceNumber)

	s.queue = append(s.queue, msg)
	if s.cond != nil {
		s.cond.Trigger()
		s.cond = nil
	}
	s.mu.Unlock()

	if dropped {
		logger.Debug("队列已满，挤掉最旧样本", "topic", s.topic.Name, "depth", s.depth)
		if s.metrics != nil {
			s.metrics.MessagesDropped.Inc()
		}
	}
	if lost > 0 {
		s.UpdateStatus(events.KindMessageLost, lost)
		if s.metrics != nil {
			s.metrics.MessagesLost.Add(float64(lost))
		}
	}
	if s.metrics != nil {
		s.metrics.MessagesReceived.Inc()
		s.metrics.Traffic.LogReceived(s.topic.Name, int64(len(msg.Payload)))
	}
	s.dataCallback.Trigger()
}

// TakeMessage 取走队首消息
func (s *SubscriptionData) TakeMessage() (*types.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	msg := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return msg, true
}

// QueueSize 返回当前队列长度
func (s *SubscriptionData) QueueSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// SetDataCallback 注册"有新数据"回调
//
// 注册前积累的消息按条数补触发；传 nil 注销。
func (s *SubscriptionData) SetDataCallback(cb events.Callback) {
	s.dataCallback.SetCallback(cb)
}

// AttachConditionIfEmpty 队列为空时挂接等待句柄
//
// 返回 true 表示队列已有数据，未挂接；检查与挂接相对 AddMessage
// 原子。挂接是一次性的，触发即清除。
func (s *SubscriptionData) AttachConditionIfEmpty(c *waitset.Condition) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) > 0 {
		return true
	}
	s.cond = c
	return false
}

// DetachConditionAndCheckData 解除挂接并报告队列是否有数据
func (s *SubscriptionData) DetachConditionAndCheckData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cond = nil
	return len(s.queue) > 0
}

// Shutdown 关闭端点
//
// 先注销图谱钩子与存活令牌（对端立即看到离线），再撤销数据订阅。
// 幂等。
func (s *SubscriptionData) Shutdown() error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	sub, token := s.sub, s.token
	s.queue = nil
	s.cond = nil
	s.mu.Unlock()

	s.graph.UnregisterLocalEndpoint(s.entity.GID())

	var err error
	if token != nil {
		err = multierr.Append(err, token.Undeclare())
	}
	if sub != nil {
		err = multierr.Append(err, sub.Undeclare())
	}
	return err
}
