package ws

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robomesh/go-robomesh/internal/config"
	"github.com/robomesh/go-robomesh/internal/router"
	ifaces "github.com/robomesh/go-robomesh/pkg/interfaces"
	"github.com/robomesh/go-robomesh/pkg/types"
)

// newTestRouter 启动一个带 WebSocket 服务的路由核心
func newTestRouter(t *testing.T, opts ServerOptions) (*router.Broker, string) {
	t.Helper()
	b := router.NewBroker()
	srv := httptest.NewServer(NewServer(b, opts))
	t.Cleanup(func() {
		srv.Close()
		b.Close()
	})
	return b, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func clientConfig(endpoint string) *config.RouterClientConfig {
	return &config.RouterClientConfig{
		Endpoint:             endpoint,
		ConnectTimeout:       config.Duration(5 * time.Second),
		CompressionThreshold: config.DefaultCompressionThreshold,
	}
}

func openSession(t *testing.T, endpoint string) ifaces.Session {
	t.Helper()
	sess, err := New(clientConfig(endpoint), "/", nil).Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

// sampleSink 线程安全的样本收集器
type sampleSink struct {
	mu      sync.Mutex
	samples []types.Sample
}

func (s *sampleSink) handle(sample types.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
}

func (s *sampleSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

func (s *sampleSink) snapshot() []types.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Sample(nil), s.samples...)
}

func TestOpenAssignsSessionID(t *testing.T) {
	_, endpoint := newTestRouter(t, ServerOptions{})
	s1 := openSession(t, endpoint)
	s2 := openSession(t, endpoint)

	assert.NotEmpty(t, s1.ID())
	assert.NotEmpty(t, s2.ID())
	assert.NotEqual(t, s1.ID(), s2.ID())
}

func TestPubSubAcrossSessions(t *testing.T) {
	_, endpoint := newTestRouter(t, ServerOptions{})
	pubSess := openSession(t, endpoint)
	subSess := openSession(t, endpoint)

	sink := &sampleSink{}
	_, err := subSess.DeclareSubscriber("demo/**", sink.handle)
	require.NoError(t, err)

	pub, err := pubSess.DeclarePublisher("demo/chatter")
	require.NoError(t, err)
	require.Equal(t, "demo/chatter", pub.Keyexpr())
	for i := 0; i < 3; i++ {
		require.NoError(t, pub.Put([]byte{byte('a' + i)}, []byte{byte(i)}))
	}

	require.Eventually(t, func() bool { return sink.count() == 3 },
		2*time.Second, 10*time.Millisecond)
	for i, sample := range sink.snapshot() {
		assert.Equal(t, "demo/chatter", sample.Keyexpr)
		assert.Equal(t, []byte{byte('a' + i)}, sample.Payload)
		assert.Equal(t, []byte{byte(i)}, sample.Attachment)
		assert.Equal(t, types.SampleKindPut, sample.Kind)
		assert.NotZero(t, sample.Timestamp)
	}
}

func TestLargePayloadCompressed(t *testing.T) {
	_, endpoint := newTestRouter(t, ServerOptions{CompressionThreshold: 1})
	cfg := clientConfig(endpoint)
	cfg.CompressionThreshold = 1

	pubSess, err := New(cfg, "/", nil).Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { pubSess.Close() })
	subSess := openSession(t, endpoint)

	sink := &sampleSink{}
	_, err = subSess.DeclareSubscriber("bulk/data", sink.handle)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("pointcloud"), 8192)
	pub, err := pubSess.DeclarePublisher("bulk/data")
	require.NoError(t, err)
	require.NoError(t, pub.Put(payload, nil))

	require.Eventually(t, func() bool { return sink.count() == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, payload, sink.snapshot()[0].Payload)
}

func TestLivelinessAcrossSessions(t *testing.T) {
	_, endpoint := newTestRouter(t, ServerOptions{})
	tokenSess := openSession(t, endpoint)
	watchSess := openSession(t, endpoint)

	tok, err := tokenSess.DeclareLivelinessToken("@robomesh_lv/0/a/1")
	require.NoError(t, err)
	require.Equal(t, "@robomesh_lv/0/a/1", tok.Keyexpr())

	sink := &sampleSink{}
	_, err = watchSess.SubscribeLiveliness("@robomesh_lv/0/**", true, sink.handle)
	require.NoError(t, err)

	// 历史回放
	require.Eventually(t, func() bool { return sink.count() == 1 },
		2*time.Second, 10*time.Millisecond)
	first := sink.snapshot()[0]
	assert.Equal(t, types.SampleKindPut, first.Kind)
	assert.Equal(t, "@robomesh_lv/0/a/1", first.Keyexpr)

	// 会话关闭触发删除广播
	require.NoError(t, tokenSess.Close())
	require.Eventually(t, func() bool { return sink.count() == 2 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, types.SampleKindDelete, sink.snapshot()[1].Kind)
}

func TestDeclareTokenConflict(t *testing.T) {
	_, endpoint := newTestRouter(t, ServerOptions{})
	s1 := openSession(t, endpoint)
	s2 := openSession(t, endpoint)

	_, err := s1.DeclareLivelinessToken("@robomesh_lv/0/dup")
	require.NoError(t, err)

	_, err = s2.DeclareLivelinessToken("@robomesh_lv/0/dup")
	require.ErrorContains(t, err, "already declared")
}

func TestEnclaveAuth(t *testing.T) {
	key := []byte("super-secret-enclave-key")
	_, endpoint := newTestRouter(t, ServerOptions{EnclaveKey: key})

	sess, err := New(clientConfig(endpoint), "/prod", key).Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.Close())

	_, err = New(clientConfig(endpoint), "/prod", []byte("wrong")).Open(context.Background())
	require.ErrorContains(t, err, "authentication failed")

	_, err = New(clientConfig(endpoint), "/prod", nil).Open(context.Background())
	require.ErrorContains(t, err, "authentication failed")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	_, endpoint := newTestRouter(t, ServerOptions{})
	pubSess := openSession(t, endpoint)
	subSess := openSession(t, endpoint)

	sink := &sampleSink{}
	sub, err := subSess.DeclareSubscriber("demo/chatter", sink.handle)
	require.NoError(t, err)
	pub, err := pubSess.DeclarePublisher("demo/chatter")
	require.NoError(t, err)

	require.NoError(t, pub.Put([]byte("one"), nil))
	require.Eventually(t, func() bool { return sink.count() == 1 },
		2*time.Second, 10*time.Millisecond)

	// 撤销后本地回调即刻移除，无论路由器何时处理
	require.NoError(t, sub.Undeclare())
	require.NoError(t, pub.Put([]byte("two"), nil))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, sink.count())
}

func TestSessionCloseSemantics(t *testing.T) {
	_, endpoint := newTestRouter(t, ServerOptions{})
	sess := openSession(t, endpoint)

	pub, err := sess.DeclarePublisher("demo/chatter")
	require.NoError(t, err)
	require.NoError(t, sess.Close())

	assert.ErrorIs(t, pub.Put([]byte("late"), nil), types.ErrConnectionClosed)

	_, err = sess.DeclarePublisher("demo/other")
	assert.ErrorIs(t, err, types.ErrConnectionClosed)

	_, err = sess.DeclareSubscriber("demo/**", func(types.Sample) {})
	assert.ErrorIs(t, err, types.ErrConnectionClosed)

	_, err = sess.DeclareLivelinessToken("@robomesh_lv/0/x")
	assert.ErrorIs(t, err, types.ErrConnectionClosed)
}

func TestUndeclaredPublisherRejectsPut(t *testing.T) {
	_, endpoint := newTestRouter(t, ServerOptions{})
	sess := openSession(t, endpoint)

	pub, err := sess.DeclarePublisher("demo/chatter")
	require.NoError(t, err)
	require.NoError(t, pub.Undeclare())
	assert.Error(t, pub.Put([]byte("x"), nil))
}
