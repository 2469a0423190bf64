package robomesh

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robomesh/go-robomesh/internal/router"
	"github.com/robomesh/go-robomesh/internal/transport/inproc"
	"github.com/robomesh/go-robomesh/pkg/types"
)

// TestPubSubRoundTrip 同一上下文内发布到订阅的闭环
func TestPubSubRoundTrip(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)

	sub, err := node.CreateSubscription("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)
	pub, err := node.CreatePublisher("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)

	assert.Equal(t, "/image", pub.TopicName())
	assert.Equal(t, "/image", sub.TopicName())
	assert.NotEqual(t, pub.GID(), sub.GID())

	require.NoError(t, pub.Publish([]byte("frame-1")))
	assert.Equal(t, int64(1), pub.SequenceNumber())

	var msg *types.Message
	require.Eventually(t, func() bool {
		var ok bool
		msg, ok = sub.TakeMessage()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []byte("frame-1"), msg.Payload)
	assert.Equal(t, int64(1), msg.Info.SequenceNumber)
	assert.Equal(t, pub.GID(), msg.Info.PublisherGID)
	assert.NotZero(t, msg.Info.SourceTimestamp)
	assert.NotZero(t, msg.Info.ReceivedTimestamp)
}

// TestPubSubAcrossContexts 两个上下文经共享路由器互通
func TestPubSubAcrossContexts(t *testing.T) {
	b := router.NewBroker()
	defer b.Close()

	pubCtx := newTestContext(t, WithTransport(inproc.New(b)))
	subCtx := newTestContext(t, WithTransport(inproc.New(b)))

	pubNode, err := pubCtx.CreateNode("/fleet", "talker")
	require.NoError(t, err)
	subNode, err := subCtx.CreateNode("/fleet", "listener")
	require.NoError(t, err)

	sub, err := subNode.CreateSubscription("/chatter", "std_msgs/msg/String")
	require.NoError(t, err)
	pub, err := pubNode.CreatePublisher("/chatter", "std_msgs/msg/String")
	require.NoError(t, err)

	// 双方从图谱看到对端
	require.Eventually(t, func() bool {
		return pub.MatchedSubscriptions() == 1 && sub.MatchedPublishers() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, pub.Publish([]byte("hello")))

	require.Eventually(t, func() bool {
		msg, ok := sub.TakeMessage()
		return ok && string(msg.Payload) == "hello"
	}, 2*time.Second, 10*time.Millisecond)
}

// TestPubSubOrdering 同一发布者的消息按发布顺序取出
func TestPubSubOrdering(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	sub, err := node.CreateSubscription("/scan", "sensor_msgs/msg/LaserScan")
	require.NoError(t, err)
	pub, err := node.CreatePublisher("/scan", "sensor_msgs/msg/LaserScan")
	require.NoError(t, err)

	const count = 20
	for i := 0; i < count; i++ {
		require.NoError(t, pub.Publish([]byte(fmt.Sprintf("scan-%d", i))))
	}

	require.Eventually(t, func() bool {
		return sub.QueueSize() == count
	}, 2*time.Second, 10*time.Millisecond)

	for i := 0; i < count; i++ {
		msg, ok := sub.TakeMessage()
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("scan-%d", i), string(msg.Payload))
		assert.Equal(t, int64(i+1), msg.Info.SequenceNumber)
	}
	_, ok := sub.TakeMessage()
	assert.False(t, ok)
}

// TestSubscriptionQueueBound KeepLast 队列满时挤掉最旧样本
func TestSubscriptionQueueBound(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	sub, err := node.CreateSubscription("/image", "sensor_msgs/msg/Image",
		WithQoS(types.QoSProfile{History: types.HistoryKeepLast, Depth: 1}))
	require.NoError(t, err)
	pub, err := node.CreatePublisher("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)

	assert.Equal(t, 1, sub.QoS().Depth)

	require.NoError(t, pub.Publish([]byte("old")))
	require.NoError(t, pub.Publish([]byte("new")))

	// 队列深度 1，后到的样本留存
	require.Eventually(t, func() bool {
		if sub.QueueSize() != 1 {
			return false
		}
		msg, ok := sub.TakeMessage()
		return ok && string(msg.Payload) == "new"
	}, 2*time.Second, 10*time.Millisecond)
}

// TestSubscriptionDataCallback 新消息回调按条数触发并补发积压
func TestSubscriptionDataCallback(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	sub, err := node.CreateSubscription("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)
	pub, err := node.CreatePublisher("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)

	// 注册前发布，回调注册时补发
	require.NoError(t, pub.Publish([]byte("backlog")))
	require.Eventually(t, func() bool {
		return sub.QueueSize() == 1
	}, 2*time.Second, 10*time.Millisecond)

	calls := make(chan struct{}, 8)
	sub.SetOnNewMessage(func() { calls <- struct{}{} })

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("注册回调时应补发积压消息")
	}

	require.NoError(t, pub.Publish([]byte("live")))
	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("新消息应触发回调")
	}

	// 注销后不再触发
	sub.SetOnNewMessage(nil)
	require.NoError(t, pub.Publish([]byte("silent")))
	select {
	case <-calls:
		t.Fatal("注销后不应触发回调")
	case <-time.After(100 * time.Millisecond):
	}
}

// TestPublisherShutdown 关闭后发布报错，图谱计数回退
func TestPublisherShutdown(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	pub, err := node.CreatePublisher("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return rctx.CountPublishers("/image") == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, pub.Shutdown())
	assert.NoError(t, pub.Shutdown())
	assert.ErrorIs(t, pub.Publish([]byte("x")), ErrShutdown)

	require.Eventually(t, func() bool {
		return rctx.CountPublishers("/image") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

// TestEndpointValidation 端点参数校验
func TestEndpointValidation(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)

	_, err = node.CreatePublisher("", "sensor_msgs/msg/Image")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = node.CreatePublisher("/image", "")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = node.CreateSubscription("", "sensor_msgs/msg/Image")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

// TestEndpointQoSAdapted 未指定的 QoS 取值解析为默认档
func TestEndpointQoSAdapted(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	pub, err := node.CreatePublisher("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)

	q := pub.QoS()
	assert.Equal(t, types.HistoryKeepLast, q.History)
	assert.Equal(t, 42, q.Depth)
	assert.Equal(t, types.ReliabilityReliable, q.Reliability)
	assert.Equal(t, types.DurabilityTransientLocal, q.Durability)
}
