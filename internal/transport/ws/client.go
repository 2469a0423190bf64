package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/robomesh/go-robomesh/internal/config"
	ifaces "github.com/robomesh/go-robomesh/pkg/interfaces"
	"github.com/robomesh/go-robomesh/pkg/lib/log"
	"github.com/robomesh/go-robomesh/pkg/types"
)

var errUndeclared = errors.New("ws: entity undeclared")

// ============================================================================
// Transport
// ============================================================================

// Transport WebSocket 传输
//
// 每次 Open 建立一条到路由器的独立连接。
type Transport struct {
	endpoint  string
	enclave   string
	auth      []byte
	timeout   time.Duration
	threshold int
	maxFrame  int
}

var _ ifaces.Transport = (*Transport)(nil)

// New 创建连接指定路由器的 WebSocket 传输
//
// enclaveKey 非空时按 enclave 派生认证密钥，随握手提交。
func New(cfg *config.RouterClientConfig, enclave string, enclaveKey []byte) *Transport {
	t := &Transport{
		endpoint:  cfg.Endpoint,
		enclave:   enclave,
		timeout:   cfg.ConnectTimeout.Std(),
		threshold: cfg.CompressionThreshold,
		maxFrame:  config.DefaultMaxFrameBytes,
	}
	if t.endpoint == "" {
		t.endpoint = config.DefaultRouterEndpoint
	}
	if t.timeout <= 0 {
		t.timeout = config.DefaultConnectTimeout
	}
	if len(enclaveKey) > 0 {
		t.auth = config.DeriveEnclaveAuthKey(enclaveKey, enclave)
	}
	return t
}

// Open 连接路由器并完成握手
func (t *Transport) Open(ctx context.Context) (ifaces.Session, error) {
	dialer := websocket.Dialer{HandshakeTimeout: t.timeout}
	conn, _, err := dialer.DialContext(ctx, t.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("连接路由器 %s: %w", t.endpoint, err)
	}
	conn.SetReadLimit(int64(t.maxFrame))

	// 握手在读协程启动前同步完成
	hello := &envelope{Op: opHello, Enclave: t.enclave, Auth: t.auth}
	if err := writeEnvelope(conn, hello, t.threshold, t.timeout); err != nil {
		conn.Close()
		return nil, fmt.Errorf("发送握手: %w", err)
	}
	conn.SetReadDeadline(time.Now().Add(t.timeout))
	resp, err := readEnvelope(conn, t.maxFrame)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("等待握手应答: %w", err)
	}
	switch {
	case resp.Op == opResult && resp.Err != "":
		conn.Close()
		return nil, fmt.Errorf("路由器拒绝会话: %s", resp.Err)
	case resp.Op != opWelcome || resp.Session == "":
		conn.Close()
		return nil, fmt.Errorf("握手应答异常: op=%d", resp.Op)
	}

	s := &session{
		tr:       t,
		conn:     conn,
		id:       resp.Session,
		pending:  make(map[int64]chan string),
		handlers: make(map[int64]ifaces.SampleHandler),
		done:     make(chan struct{}),
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	go s.readPump()
	go s.pingLoop()
	logger.Debug("已连接路由器", "endpoint", t.endpoint, "session", log.TruncateID(s.id, 8))
	return s, nil
}

// ============================================================================
// session
// ============================================================================

// session 一条到路由器的 WebSocket 会话
//
// 读协程独占连接读侧，按订阅序号分发样本；全部写出经 writeMu
// 串行化。声明类操作登记在 pending 中等待路由器应答。
type session struct {
	tr   *Transport
	conn *websocket.Conn
	id   string

	writeMu sync.Mutex

	mu       sync.Mutex
	closed   bool
	nextReq  int64
	nextSub  int64
	pending  map[int64]chan string
	handlers map[int64]ifaces.SampleHandler

	done      chan struct{}
	closeOnce sync.Once
}

var _ ifaces.Session = (*session)(nil)

func (s *session) ID() string { return s.id }

func (s *session) DeclarePublisher(keyexpr string) (ifaces.Publisher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, types.ErrConnectionClosed
	}
	return &publisher{sess: s, keyexpr: keyexpr}, nil
}

func (s *session) DeclareSubscriber(keyexpr string, handler ifaces.SampleHandler) (ifaces.Subscriber, error) {
	return s.subscribe(keyexpr, handler, false, false)
}

func (s *session) SubscribeLiveliness(keyexpr string, history bool, handler ifaces.SampleHandler) (ifaces.Subscriber, error) {
	return s.subscribe(keyexpr, handler, true, history)
}

// subscribe 先登记回调再发起声明：历史回放可能先于应答到达
func (s *session) subscribe(keyexpr string, handler ifaces.SampleHandler, liveliness, history bool) (ifaces.Subscriber, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, types.ErrConnectionClosed
	}
	s.nextSub++
	id := s.nextSub
	s.handlers[id] = handler
	s.mu.Unlock()

	err := s.request(&envelope{
		Op:         opSubscribe,
		Sub:        id,
		Keyexpr:    keyexpr,
		Liveliness: liveliness,
		History:    history,
	})
	if err != nil {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
		return nil, err
	}
	return &subscriber{sess: s, keyexpr: keyexpr, id: id}, nil
}

func (s *session) DeclareLivelinessToken(keyexpr string) (ifaces.LivelinessToken, error) {
	if err := s.request(&envelope{Op: opDeclareToken, Keyexpr: keyexpr}); err != nil {
		return nil, err
	}
	return &token{sess: s, keyexpr: keyexpr}, nil
}

func (s *session) Close() error {
	s.writeMu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	s.teardown(nil)
	return nil
}

// readPump 读主循环，连接断开时拆除会话
func (s *session) readPump() {
	for {
		s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		env, err := readEnvelope(s.conn, s.tr.maxFrame)
		if err != nil {
			s.teardown(err)
			return
		}
		switch env.Op {
		case opSample:
			s.mu.Lock()
			handler := s.handlers[env.Sub]
			s.mu.Unlock()
			if handler != nil {
				handler(types.Sample{
					Keyexpr:    env.Keyexpr,
					Payload:    env.Payload,
					Attachment: env.Attachment,
					Kind:       types.SampleKind(env.Kind),
					Timestamp:  env.Timestamp,
				})
			}
		case opResult:
			s.mu.Lock()
			ch := s.pending[env.Req]
			delete(s.pending, env.Req)
			s.mu.Unlock()
			if ch != nil {
				ch <- env.Err
			}
		default:
			logger.Warn("忽略未知信封", "op", int(env.Op))
		}
	}
}

// pingLoop 周期性 ping，维持连接与对端读超时
func (s *session) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				s.teardown(err)
				return
			}
		}
	}
}

// teardown 标记会话关闭，唤醒全部等待者并断开连接
func (s *session) teardown(cause error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.pending = make(map[int64]chan string)
		s.handlers = make(map[int64]ifaces.SampleHandler)
		s.mu.Unlock()

		close(s.done)
		s.conn.Close()
		if cause != nil && !websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			logger.Debug("会话连接断开", "session", log.TruncateID(s.id, 8), "err", cause)
		}
	})
}

// request 发送声明类信封并等待路由器应答
func (s *session) request(env *envelope) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return types.ErrConnectionClosed
	}
	s.nextReq++
	env.Req = s.nextReq
	ch := make(chan string, 1)
	s.pending[env.Req] = ch
	s.mu.Unlock()

	if err := s.write(env); err != nil {
		s.mu.Lock()
		delete(s.pending, env.Req)
		s.mu.Unlock()
		return err
	}

	select {
	case msg := <-ch:
		if msg != "" {
			return fmt.Errorf("路由器应答: %s", msg)
		}
		return nil
	case <-s.done:
		return types.ErrConnectionClosed
	case <-time.After(s.tr.timeout):
		s.mu.Lock()
		delete(s.pending, env.Req)
		s.mu.Unlock()
		return types.ErrTimeout
	}
}

// write 串行化写出一帧
func (s *session) write(env *envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return writeEnvelope(s.conn, env, s.tr.threshold, writeTimeout)
}

func (s *session) put(keyexpr string, payload, attachment []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return types.ErrConnectionClosed
	}
	return s.write(&envelope{Op: opPut, Keyexpr: keyexpr, Payload: payload, Attachment: attachment})
}

func (s *session) unsubscribe(id int64) {
	s.mu.Lock()
	delete(s.handlers, id)
	closed := s.closed
	s.mu.Unlock()
	if !closed {
		s.write(&envelope{Op: opUnsubscribe, Sub: id})
	}
}

func (s *session) undeclareToken(keyexpr string) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if !closed {
		s.write(&envelope{Op: opUndeclareToken, Keyexpr: keyexpr})
	}
}

// ============================================================================
// 实体句柄
// ============================================================================

type publisher struct {
	sess       *session
	keyexpr    string
	undeclared atomic.Bool
}

var _ ifaces.Publisher = (*publisher)(nil)

func (p *publisher) Keyexpr() string { return p.keyexpr }

func (p *publisher) Put(payload, attachment []byte) error {
	if p.undeclared.Load() {
		return errUndeclared
	}
	return p.sess.put(p.keyexpr, payload, attachment)
}

func (p *publisher) Undeclare() error {
	p.undeclared.Store(true)
	return nil
}

type subscriber struct {
	sess       *session
	keyexpr    string
	id         int64
	undeclared atomic.Bool
}

var _ ifaces.Subscriber = (*subscriber)(nil)

func (s *subscriber) Keyexpr() string { return s.keyexpr }

func (s *subscriber) Undeclare() error {
	if s.undeclared.Swap(true) {
		return nil
	}
	s.sess.unsubscribe(s.id)
	return nil
}

type token struct {
	sess       *session
	keyexpr    string
	undeclared atomic.Bool
}

var _ ifaces.LivelinessToken = (*token)(nil)

func (t *token) Keyexpr() string { return t.keyexpr }

func (t *token) Undeclare() error {
	if t.undeclared.Swap(true) {
		return nil
	}
	t.sess.undeclareToken(t.keyexpr)
	return nil
}
