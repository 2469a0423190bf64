package entity

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/robomesh/go-robomesh/internal/core/attachment"
	"github.com/robomesh/go-robomesh/internal/core/events"
	"github.com/robomesh/go-robomesh/internal/core/liveliness"
	"github.com/robomesh/go-robomesh/internal/core/metrics"
	"github.com/robomesh/go-robomesh/internal/core/waitset"
	ifaces "github.com/robomesh/go-robomesh/pkg/interfaces"
	"github.com/robomesh/go-robomesh/pkg/types"
)

// ============================================================================
// ClientData
// ============================================================================

// ClientData 客户端端点
//
// 请求带本端 GID 与递增序列号发出；应答主题上所有客户端都能
// 收到样本，本端只认领 GID 一致的应答入队。
type ClientData struct {
	entity  *liveliness.Entity
	metrics *metrics.Metrics
	topic   liveliness.TopicInfo
	depth   int

	dataCallback events.DataCallbackManager

	mu       sync.Mutex
	queue    []*types.ServiceMessage
	cond     *waitset.Condition
	sub      ifaces.Subscriber
	reqPub   ifaces.Publisher
	token    ifaces.LivelinessToken
	seq      int64
	shutdown bool
}

// NewClient 创建客户端端点
func NewClient(deps Deps, ent *liveliness.Entity) (*ClientData, error) {
	topic, ok := ent.Topic()
	if !ok || ent.Kind() != types.EntityClient {
		return nil, fmt.Errorf("entity %s is not a client", ent)
	}

	c := &ClientData{
		entity:  ent,
		metrics: deps.Metrics,
		topic:   topic,
	}
	if topic.QoS.History == types.HistoryKeepLast {
		c.depth = topic.QoS.Depth
	}

	domainID := ent.Node().DomainID
	reqInfo := topic
	reqInfo.Name = requestTopic(topic.Name)
	repInfo := topic
	repInfo.Name = replyTopic(topic.Name)

	sub, err := deps.Session.DeclareSubscriber(
		liveliness.TopicKeyexpr(domainID, repInfo), c.handleReply)
	if err != nil {
		return nil, fmt.Errorf("declare reply subscriber for %s: %w", topic.Name, err)
	}
	c.sub = sub

	reqPub, err := deps.Session.DeclarePublisher(liveliness.TopicKeyexpr(domainID, reqInfo))
	if err != nil {
		_ = sub.Undeclare()
		return nil, fmt.Errorf("declare request publisher for %s: %w", topic.Name, err)
	}
	c.reqPub = reqPub

	token, err := deps.Session.DeclareLivelinessToken(ent.Keyexpr())
	if err != nil {
		_ = reqPub.Undeclare()
		_ = sub.Undeclare()
		return nil, fmt.Errorf("declare liveliness token for %s: %w", topic.Name, err)
	}
	c.token = token

	logger.Debug("客户端端点就绪", "service", topic.Name)
	return c, nil
}

// Entity 返回端点的图谱描述符
func (c *ClientData) Entity() *liveliness.Entity { return c.entity }

// ServiceName 返回服务名
func (c *ClientData) ServiceName() string { return c.topic.Name }

// SendRequest 发出一条请求，返回本端分配的请求序列号
func (c *ClientData) SendRequest(payload []byte) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdown {
		return 0, ErrShutdown
	}

	c.seq++
	att, err := attachment.Encode(attachment.Attachment{
		SequenceNumber:  c.seq,
		SourceTimestamp: time.Now().UnixNano(),
		SourceGID:       c.entity.GID(),
	})
	if err != nil {
		return 0, err
	}
	if err := c.reqPub.Put(payload, att); err != nil {
		return 0, fmt.Errorf("send request on %s: %w", c.topic.Name, err)
	}
	if c.metrics != nil {
		c.metrics.RequestsSent.Inc()
		c.metrics.Traffic.LogPublished(c.topic.Name, int64(len(payload)))
	}
	return c.seq, nil
}

// handleReply 传输回调：认领本端的应答并入队
func (c *ClientData) handleReply(sample types.Sample) {
	if sample.Kind != types.SampleKindPut {
		return
	}
	att, err := attachment.Decode(sample.Attachment)
	if err != nil {
		logger.Warn("丢弃附件无法解码的应答", "service", c.topic.Name, "err", err)
		return
	}
	// 别的客户端的应答
	if att.SourceGID != c.entity.GID() {
		return
	}

	msg := &types.ServiceMessage{
		Payload: sample.Payload,
		Info: types.ServiceInfo{
			RequestID: types.RequestID{
				WriterGID:      att.SourceGID,
				SequenceNumber: att.SequenceNumber,
			},
			SourceTimestamp:   att.SourceTimestamp,
			ReceivedTimestamp: sample.Timestamp,
		},
	}

	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return
	}
	if c.depth > 0 && len(c.queue) >= c.depth {
		c.queue[0] = nil
		c.queue = c.queue[1:]
	}
	c.queue = append(c.queue, msg)
	if c.cond != nil {
		c.cond.Trigger()
		c.cond = nil
	}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.Traffic.LogReceived(c.topic.Name, int64(len(msg.Payload)))
	}
	c.dataCallback.Trigger()
}

// TakeResponse 取走队首应答
func (c *ClientData) TakeResponse() (*types.ServiceMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil, false
	}
	msg := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	return msg, true
}

// SetDataCallback 注册"有新应答"回调
func (c *ClientData) SetDataCallback(cb events.Callback) {
	c.dataCallback.SetCallback(cb)
}

// AttachConditionIfEmpty 队列为空时挂接等待句柄，返回队列是否已有应答
func (c *ClientData) AttachConditionIfEmpty(cond *waitset.Condition) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) > 0 {
		return true
	}
	c.cond = cond
	return false
}

// DetachConditionAndCheckData 解除挂接并报告队列是否有应答
func (c *ClientData) DetachConditionAndCheckData() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cond = nil
	return len(c.queue) > 0
}

// Shutdown 关闭端点，幂等
func (c *ClientData) Shutdown() error {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return nil
	}
	c.shutdown = true
	sub, reqPub, token := c.sub, c.reqPub, c.token
	c.queue = nil
	c.cond = nil
	c.mu.Unlock()

	var err error
	if token != nil {
		err = multierr.Append(err, token.Undeclare())
	}
	if sub != nil {
		err = multierr.Append(err, sub.Undeclare())
	}
	if reqPub != nil {
		err = multierr.Append(err, reqPub.Undeclare())
	}
	return err
}
