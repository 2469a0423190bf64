package ws

import (
	"crypto/hmac"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/robomesh/go-robomesh/internal/config"
	"github.com/robomesh/go-robomesh/internal/router"
	"github.com/robomesh/go-robomesh/pkg/lib/log"
	"github.com/robomesh/go-robomesh/pkg/types"
)

// ============================================================================
// Server
// ============================================================================

// ServerOptions 路由器 WebSocket 服务参数
type ServerOptions struct {
	// EnclaveKey 非空时要求会话通过 enclave 认证
	EnclaveKey []byte

	// MaxFrameBytes 单帧上限，0 用默认值
	MaxFrameBytes int

	// CompressionThreshold 下行压缩阈值，0 用默认值，负数关闭压缩
	CompressionThreshold int
}

// Server 把路由核心经 WebSocket 暴露给远端会话
//
// 每个升级成功的连接对应 Broker 上的一个 Conn，连接断开即关闭之，
// 其持有的存活令牌随即广播删除。实现 http.Handler。
type Server struct {
	broker    *router.Broker
	key       []byte
	maxFrame  int
	threshold int
	upgrader  websocket.Upgrader
}

var _ http.Handler = (*Server)(nil)

// NewServer 创建 WebSocket 服务
func NewServer(b *router.Broker, opts ServerOptions) *Server {
	s := &Server{
		broker:    b,
		key:       opts.EnclaveKey,
		maxFrame:  opts.MaxFrameBytes,
		threshold: opts.CompressionThreshold,
	}
	if s.maxFrame <= 0 {
		s.maxFrame = config.DefaultMaxFrameBytes
	}
	if s.threshold == 0 {
		s.threshold = config.DefaultCompressionThreshold
	}
	// 路由器面向本机与内网会话，不做浏览器同源限制
	s.upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("升级 WebSocket 失败", "remote", r.RemoteAddr, "err", err)
		return
	}
	s.serve(ws, r.RemoteAddr)
}

func (s *Server) serve(ws *websocket.Conn, remote string) {
	defer ws.Close()
	ws.SetReadLimit(int64(s.maxFrame))
	ws.SetReadDeadline(time.Now().Add(config.DefaultConnectTimeout))

	hello, err := readEnvelope(ws, s.maxFrame)
	if err != nil || hello.Op != opHello {
		logger.Warn("握手失败", "remote", remote, "err", err)
		return
	}
	if len(s.key) > 0 {
		expected := config.DeriveEnclaveAuthKey(s.key, hello.Enclave)
		if !hmac.Equal(hello.Auth, expected) {
			writeEnvelope(ws, &envelope{Op: opResult, Err: "enclave authentication failed"}, s.threshold, writeTimeout)
			logger.Warn("会话认证失败", "remote", remote, "enclave", hello.Enclave)
			return
		}
	}

	conn, err := s.broker.Connect()
	if err != nil {
		writeEnvelope(ws, &envelope{Op: opResult, Err: err.Error()}, s.threshold, writeTimeout)
		return
	}
	defer conn.Close()

	c := &serverConn{
		ws:        ws,
		conn:      conn,
		threshold: s.threshold,
		out:       make(chan []byte, 64),
		done:      make(chan struct{}),
		subs:      make(map[int64]int64),
	}
	go c.writePump()
	defer c.shutdown()

	if !c.send(&envelope{Op: opWelcome, Session: conn.ID()}) {
		return
	}
	logger.Debug("远端会话接入", "remote", remote, "session", log.TruncateID(conn.ID(), 8))

	ws.SetPingHandler(func(message string) error {
		ws.SetReadDeadline(time.Now().Add(pongTimeout))
		err := ws.WriteControl(websocket.PongMessage, []byte(message), time.Now().Add(writeTimeout))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	for {
		ws.SetReadDeadline(time.Now().Add(pongTimeout))
		env, err := readEnvelope(ws, s.maxFrame)
		if err != nil {
			logger.Debug("远端会话离开", "remote", remote, "session", log.TruncateID(conn.ID(), 8), "err", err)
			return
		}
		c.dispatch(env)
	}
}

// ============================================================================
// serverConn
// ============================================================================

// serverConn 路由器侧的一条远端会话连接
//
// 出向帧统一经 out 队列由写协程发出：读循环的应答与订阅回调的
// 样本在此汇合。done 关闭后丢弃后续帧，订阅投递协程不会被阻塞。
type serverConn struct {
	ws        *websocket.Conn
	conn      *router.Conn
	threshold int

	out      chan []byte
	done     chan struct{}
	downOnce sync.Once

	mu sync.Mutex
	// 客户端订阅序号 → 路由核心订阅序号
	subs map[int64]int64
}

// dispatch 处理一个上行信封
func (c *serverConn) dispatch(env *envelope) {
	switch env.Op {
	case opPut:
		if err := c.conn.Put(env.Keyexpr, env.Payload, env.Attachment); err != nil {
			logger.Debug("写入样本失败", "keyexpr", env.Keyexpr, "err", err)
		}
	case opSubscribe:
		c.handleSubscribe(env)
	case opUnsubscribe:
		c.mu.Lock()
		id, ok := c.subs[env.Sub]
		delete(c.subs, env.Sub)
		c.mu.Unlock()
		if ok {
			c.conn.Unsubscribe(id)
		}
	case opDeclareToken:
		c.result(env.Req, c.conn.DeclareToken(env.Keyexpr))
	case opUndeclareToken:
		c.conn.UndeclareToken(env.Keyexpr)
	default:
		logger.Warn("忽略未知信封", "op", int(env.Op))
	}
}

func (c *serverConn) handleSubscribe(env *envelope) {
	clientID := env.Sub
	handler := func(sample types.Sample) { c.relay(clientID, sample) }

	var id int64
	var err error
	if env.Liveliness {
		id, err = c.conn.SubscribeLiveliness(env.Keyexpr, env.History, handler)
	} else {
		id, err = c.conn.Subscribe(env.Keyexpr, handler)
	}
	if err == nil {
		c.mu.Lock()
		c.subs[clientID] = id
		c.mu.Unlock()
	}
	c.result(env.Req, err)
}

// relay 把样本转发给远端，在订阅者投递协程上执行
func (c *serverConn) relay(subID int64, sample types.Sample) {
	c.send(&envelope{
		Op:         opSample,
		Sub:        subID,
		Keyexpr:    sample.Keyexpr,
		Payload:    sample.Payload,
		Attachment: sample.Attachment,
		Kind:       int(sample.Kind),
		Timestamp:  sample.Timestamp,
	})
}

// result 应答声明类操作
func (c *serverConn) result(req int64, err error) {
	env := &envelope{Op: opResult, Req: req}
	if err != nil {
		env.Err = err.Error()
	}
	c.send(env)
}

// send 编码并入队一帧，连接已关闭时丢弃并返回 false
func (c *serverConn) send(env *envelope) bool {
	frame, err := encodeFrame(env, c.threshold)
	if err != nil {
		logger.Warn("编码下行帧失败", "err", err)
		return false
	}
	select {
	case c.out <- frame:
		return true
	case <-c.done:
		return false
	}
}

func (c *serverConn) shutdown() {
	c.downOnce.Do(func() { close(c.done) })
}

// writePump 写协程，独占连接写侧
func (c *serverConn) writePump() {
	for {
		select {
		case frame := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				c.shutdown()
				c.ws.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
