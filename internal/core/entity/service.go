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

// 服务数据面使用一对主题：请求走 rq 前缀，应答走 rr 前缀。
// 应答对同服务的全部客户端可见，客户端按附件里的 GID 认领。
func requestTopic(service string) string { return "/rq" + service }
func replyTopic(service string) string   { return "/rr" + service }

// ============================================================================
// ServiceData
// ============================================================================

// ServiceData 服务端点
//
// 请求按到达次序排队，应答由调用方携带请求标识显式发回。
type ServiceData struct {
	entity  *liveliness.Entity
	metrics *metrics.Metrics
	topic   liveliness.TopicInfo
	depth   int

	dataCallback events.DataCallbackManager

	mu       sync.Mutex
	queue    []*types.ServiceMessage
	cond     *waitset.Condition
	sub      ifaces.Subscriber
	replyPub ifaces.Publisher
	token    ifaces.LivelinessToken
	shutdown bool
}

// NewService 创建服务端点
func NewService(deps Deps, ent *liveliness.Entity) (*ServiceData, error) {
	topic, ok := ent.Topic()
	if !ok || ent.Kind() != types.EntityService {
		return nil, fmt.Errorf("entity %s is not a service", ent)
	}

	s := &ServiceData{
		entity:  ent,
		metrics: deps.Metrics,
		topic:   topic,
	}
	if topic.QoS.History == types.HistoryKeepLast {
		s.depth = topic.QoS.Depth
	}

	domainID := ent.Node().DomainID
	reqInfo := topic
	reqInfo.Name = requestTopic(topic.Name)
	repInfo := topic
	repInfo.Name = replyTopic(topic.Name)

	sub, err := deps.Session.DeclareSubscriber(
		liveliness.TopicKeyexpr(domainID, reqInfo), s.handleRequest)
	if err != nil {
		return nil, fmt.Errorf("declare request subscriber for %s: %w", topic.Name, err)
	}
	s.sub = sub

	replyPub, err := deps.Session.DeclarePublisher(liveliness.TopicKeyexpr(domainID, repInfo))
	if err != nil {
		_ = sub.Undeclare()
		return nil, fmt.Errorf("declare reply publisher for %s: %w", topic.Name, err)
	}
	s.replyPub = replyPub

	token, err := deps.Session.DeclareLivelinessToken(ent.Keyexpr())
	if err != nil {
		_ = replyPub.Undeclare()
		_ = sub.Undeclare()
		return nil, fmt.Errorf("declare liveliness token for %s: %w", topic.Name, err)
	}
	s.token = token

	logger.Debug("服务端点就绪", "service", topic.Name)
	return s, nil
}

// Entity 返回端点的图谱描述符
func (s *ServiceData) Entity() *liveliness.Entity { return s.entity }

// ServiceName 返回服务名
func (s *ServiceData) ServiceName() string { return s.topic.Name }

// handleRequest 传输回调：请求入队
func (s *ServiceData) handleRequest(sample types.Sample) {
	if sample.Kind != types.SampleKindPut {
		return
	}
	att, err := attachment.Decode(sample.Attachment)
	if err != nil {
		logger.Warn("丢弃附件无法解码的请求", "service", s.topic.Name, "err", err)
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
	s.queue = append(s.queue, msg)
	if s.cond != nil {
		s.cond.Trigger()
		s.cond = nil
	}
	s.mu.Unlock()

	if dropped {
		logger.Debug("请求队列已满，挤掉最旧请求", "service", s.topic.Name, "depth", s.depth)
	}
	if s.metrics != nil {
		s.metrics.RequestsReceived.Inc()
		s.metrics.Traffic.LogReceived(s.topic.Name, int64(len(msg.Payload)))
	}
	s.dataCallback.Trigger()
}

// TakeRequest 取走队首请求
func (s *ServiceData) TakeRequest() (*types.ServiceMessage, bool) {
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

// SendResponse 对指定请求发回应答
//
// 附件回写请求方 GID 与请求序列号，请求方据此认领应答。
func (s *ServiceData) SendResponse(id types.RequestID, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return ErrShutdown
	}

	att, err := attachment.Encode(attachment.Attachment{
		SequenceNumber:  id.SequenceNumber,
		SourceTimestamp: time.Now().UnixNano(),
		SourceGID:       id.WriterGID,
	})
	if err != nil {
		return err
	}
	if err := s.replyPub.Put(payload, att); err != nil {
		return fmt.Errorf("send response on %s: %w", s.topic.Name, err)
	}
	if s.metrics != nil {
		s.metrics.Traffic.LogPublished(s.topic.Name, int64(len(payload)))
	}
	return nil
}

// SetDataCallback 注册"有新请求"回调
func (s *ServiceData) SetDataCallback(cb events.Callback) {
	s.dataCallback.SetCallback(cb)
}

// AttachConditionIfEmpty 队列为空时挂接等待句柄，返回队列是否已有请求
func (s *ServiceData) AttachConditionIfEmpty(c *waitset.Condition) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) > 0 {
		return true
	}
	s.cond = c
	return false
}

// DetachConditionAndCheckData 解除挂接并报告队列是否有请求
func (s *ServiceData) DetachConditionAndCheckData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cond = nil
	return len(s.queue) > 0
}

// Shutdown 关闭端点，幂等
func (s *ServiceData) Shutdown() error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	sub, replyPub, token := s.sub, s.replyPub, s.token
	s.queue = nil
	s.cond = nil
	s.mu.Unlock()

	var err error
	if token != nil {
		err = multierr.Append(err, token.Undeclare())
	}
	if sub != nil {
		err = multierr.Append(err, sub.Undeclare())
	}
	if replyPub != nil {
		err = multierr.Append(err, replyPub.Undeclare())
	}
	return err
}
