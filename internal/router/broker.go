// Package router 实现键表达式路由核心
//
// Broker 是进程内的样本交换枢纽：会话在其上声明订阅与存活令牌，
// 写入的样本按键表达式匹配投递。进程内传输直接挂接 Broker，
// robomeshd 再把它经 WebSocket 暴露给远端会话。
//
// # 投递模型
//
// 每个订阅者持有独立的投递 goroutine 与无界待投队列：写入方从不
// 被订阅回调阻塞，单个订阅者内部保持先进先出，样本不丢弃。对
// 队列长度的约束由订阅端点按 QoS 自行执行。
//
// # 并发安全
//
// Broker 单锁保护注册表，入队在锁内完成（只做追加与唤醒），用户
// 回调一律在订阅者自己的 goroutine 上执行。
package router

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robomesh/go-robomesh/pkg/lib/log"
	"github.com/robomesh/go-robomesh/pkg/types"
)

var logger = log.Logger("router")

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrBrokerClosed 路由核心已关闭
	ErrBrokerClosed = errors.New("broker closed")
	// ErrConnClosed 会话连接已关闭
	ErrConnClosed = errors.New("broker connection closed")
	// ErrTokenExists 存活令牌键表达式已被占用
	ErrTokenExists = errors.New("liveliness token already declared")
)

// ============================================================================
// Broker
// ============================================================================

// Broker 键表达式路由核心
type Broker struct {
	mu      sync.Mutex
	closed  bool
	conns   map[string]*Conn
	subs    map[int64]*subscriber
	nextSub int64
	// 存活令牌：键表达式 → 持有连接
	tokens map[string]string

	metrics *brokerMetrics
}

// NewBroker 创建路由核心
func NewBroker() *Broker {
	return &Broker{
		conns:   make(map[string]*Conn),
		subs:    make(map[int64]*subscriber),
		tokens:  make(map[string]string),
		metrics: newBrokerMetrics(),
	}
}

// Connect 接入一个新会话连接
func (b *Broker) Connect() (*Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}

	c := &Conn{
		broker: b,
		id:     uuid.NewString(),
		subs:   make(map[int64]struct{}),
		tokens: make(map[string]struct{}),
	}
	b.conns[c.id] = c
	b.metrics.sessions.Inc()
	logger.Debug("会话接入", "conn", log.TruncateID(c.id, 8))
	return c, nil
}

// Close 关闭路由核心及其全部连接
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	conns := make([]*Conn, 0, len(b.conns))
	for _, c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	return nil
}

// ============================================================================
// Conn - 会话连接
// ============================================================================

// Conn Broker 上的一个会话连接
type Conn struct {
	broker *Broker
	id     string

	mu     sync.Mutex
	closed bool
	subs   map[int64]struct{}
	tokens map[string]struct{}
}

// ID 返回连接标识
func (c *Conn) ID() string { return c.id }

// Alive 返回连接是否仍然可用
func (c *Conn) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Put 写入一条数据样本
//
// 负载与附件复制后入队，调用方可以立即复用缓冲。
func (c *Conn) Put(keyexpr string, payload, attachment []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}

	sample := types.Sample{
		Keyexpr:    keyexpr,
		Payload:    append([]byte(nil), payload...),
		Attachment: append([]byte(nil), attachment...),
		Kind:       types.SampleKindPut,
		Timestamp:  time.Now().UnixNano(),
	}

	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBrokerClosed
	}
	for _, sub := range b.subs {
		if !sub.liveliness && Matches(sub.pattern, keyexpr) {
			sub.enqueue(sample)
		}
	}
	b.metrics.samplesRelayed.Inc()
	return nil
}

// Subscribe 声明数据订阅，返回订阅序号
func (c *Conn) Subscribe(keyexpr string, handler func(types.Sample)) (int64, error) {
	return c.subscribe(keyexpr, handler, false, false)
}

// SubscribeLiveliness 声明存活令牌订阅
//
// history 为真时先回放当前已声明且匹配的全部令牌，再接收后续
// 变化，两者在订阅者队列内保持先后次序。
func (c *Conn) SubscribeLiveliness(keyexpr string, history bool, handler func(types.Sample)) (int64, error) {
	return c.subscribe(keyexpr, handler, true, history)
}

func (c *Conn) subscribe(keyexpr string, handler func(types.Sample), liveliness, history bool) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrConnClosed
	}

	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, ErrBrokerClosed
	}

	b.nextSub++
	sub := &subscriber{
		id:         b.nextSub,
		connID:     c.id,
		pattern:    keyexpr,
		liveliness: liveliness,
		handler:    handler,
		wake:       make(chan struct{}, 1),
	}
	b.subs[sub.id] = sub
	c.subs[sub.id] = struct{}{}
	b.metrics.subscriptions.Inc()

	if liveliness && history {
		now := time.Now().UnixNano()
		for token := range b.tokens {
			if Matches(keyexpr, token) {
				sub.enqueue(types.Sample{
					Keyexpr:   token,
					Kind:      types.SampleKindPut,
					Timestamp: now,
				})
			}
		}
	}

	go sub.run()
	return sub.id, nil
}

// Unsubscribe 撤销订阅
//
// 返回后不再开始新的回调，已在投递中的批次会继续完成。
func (c *Conn) Unsubscribe(id int64) {
	b := c.broker
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
		b.metrics.subscriptions.Dec()
	}
	b.mu.Unlock()

	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()

	if ok {
		sub.close()
	}
}

// DeclareToken 声明一个存活令牌
//
// 令牌对所有匹配的存活订阅者表现为一条写入样本，连接关闭时自动
// 转为删除样本。
func (c *Conn) DeclareToken(keyexpr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}

	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBrokerClosed
	}
	if owner, exists := b.tokens[keyexpr]; exists {
		return fmt.Errorf("%w: %s held by %s", ErrTokenExists, keyexpr, log.TruncateID(owner, 8))
	}

	b.tokens[keyexpr] = c.id
	c.tokens[keyexpr] = struct{}{}
	b.metrics.tokens.Inc()
	b.broadcastTokenLocked(keyexpr, types.SampleKindPut)
	return nil
}

// UndeclareToken 撤销一个存活令牌
func (c *Conn) UndeclareToken(keyexpr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, keyexpr)

	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if owner, ok := b.tokens[keyexpr]; ok && owner == c.id {
		delete(b.tokens, keyexpr)
		b.metrics.tokens.Dec()
		b.broadcastTokenLocked(keyexpr, types.SampleKindDelete)
	}
}

// Close 关闭连接
//
// 撤销连接的全部订阅，并把它持有的存活令牌广播为删除样本，
// 远端图谱由此感知会话离线。
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	b := c.broker
	var closing []*subscriber
	b.mu.Lock()
	for id := range c.subs {
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			b.metrics.subscriptions.Dec()
			closing = append(closing, sub)
		}
	}
	for token := range c.tokens {
		if owner, ok := b.tokens[token]; ok && owner == c.id {
			delete(b.tokens, token)
			b.metrics.tokens.Dec()
			b.broadcastTokenLocked(token, types.SampleKindDelete)
		}
	}
	delete(b.conns, c.id)
	b.metrics.sessions.Dec()
	b.mu.Unlock()

	c.subs = map[int64]struct{}{}
	c.tokens = map[string]struct{}{}
	c.mu.Unlock()

	for _, sub := range closing {
		sub.close()
	}
	logger.Debug("会话离开", "conn", log.TruncateID(c.id, 8))
	return nil
}

// broadcastTokenLocked 向匹配的存活订阅者广播令牌变化，持锁调用
func (b *Broker) broadcastTokenLocked(keyexpr string, kind types.SampleKind) {
	sample := types.Sample{
		Keyexpr:   keyexpr,
		Kind:      kind,
		Timestamp: time.Now().UnixNano(),
	}
	for _, sub := range b.subs {
		if sub.liveliness && Matches(sub.pattern, keyexpr) {
			sub.enqueue(sample)
		}
	}
}

// ============================================================================
// subscriber - 订阅者投递队列
// ============================================================================

// subscriber 一个订阅及其投递队列
type subscriber struct {
	id         int64
	connID     string
	pattern    string
	liveliness bool
	handler    func(types.Sample)

	mu      sync.Mutex
	pending []types.Sample
	closed  bool
	// 容量 1 的唤醒信号，配合 pending 实现无界有序投递
	wake chan struct{}
}

func (s *subscriber) enqueue(sample types.Sample) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, sample)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.pending = nil
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run 投递循环，每个订阅者一个 goroutine
func (s *subscriber) run() {
	for {
		s.mu.Lock()
		for len(s.pending) == 0 && !s.closed {
			s.mu.Unlock()
			<-s.wake
			s.mu.Lock()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()

		for _, sample := range batch {
			s.handler(sample)
		}
	}
}
