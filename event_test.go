package robomesh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robomesh/go-robomesh/pkg/types"
)

// TestPublicationMatchedEvent 匹配建立与解除在发布侧计数
func TestPublicationMatchedEvent(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	pub, err := node.CreatePublisher("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)

	sub, err := node.CreateSubscription("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, err := pub.TakeEventStatus(types.EventPublicationMatched)
		require.NoError(t, err)
		return st.CurrentCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	// 订阅侧对称计数
	require.Eventually(t, func() bool {
		st, err := sub.TakeEventStatus(types.EventSubscriptionMatched)
		require.NoError(t, err)
		return st.CurrentCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	// 对端离开，匹配数回退
	require.NoError(t, sub.Shutdown())
	require.Eventually(t, func() bool {
		st, err := pub.TakeEventStatus(types.EventPublicationMatched)
		require.NoError(t, err)
		return st.CurrentCount == 0 && st.TotalCount == 2
	}, 2*time.Second, 10*time.Millisecond)
}

// TestTakeEventStatusResetsChanges Take 复位增量保留水平值
func TestTakeEventStatusResetsChanges(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	pub, err := node.CreatePublisher("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)
	_, err = node.CreateSubscription("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, err := pub.TakeEventStatus(types.EventPublicationMatched)
		require.NoError(t, err)
		if !st.Changed {
			return false
		}
		assert.Equal(t, uint64(1), st.TotalCount)
		assert.Equal(t, uint64(1), st.TotalCountChange)
		assert.Equal(t, uint64(1), st.CurrentCount)
		assert.Equal(t, int64(1), st.CurrentCountChange)
		return true
	}, 2*time.Second, 10*time.Millisecond)

	// 第二次读取：增量归零，水平值保留
	st, err := pub.TakeEventStatus(types.EventPublicationMatched)
	require.NoError(t, err)
	assert.False(t, st.Changed)
	assert.Equal(t, uint64(1), st.TotalCount)
	assert.Zero(t, st.TotalCountChange)
	assert.Equal(t, uint64(1), st.CurrentCount)
	assert.Zero(t, st.CurrentCountChange)
}

// TestQoSIncompatibleEvents TransientLocal 发布对 Volatile 订阅两侧告警
func TestQoSIncompatibleEvents(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	pub, err := node.CreatePublisher("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)
	sub, err := node.CreateSubscription("/image", "sensor_msgs/msg/Image",
		WithQoS(types.QoSProfile{Durability: types.DurabilityVolatile}))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, err := sub.TakeEventStatus(types.EventRequestedQoSIncompatible)
		require.NoError(t, err)
		if st.TotalCount == 0 {
			return false
		}
		assert.Contains(t, string(st.Data), "durability")
		return true
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		st, err := pub.TakeEventStatus(types.EventOfferedQoSIncompatible)
		require.NoError(t, err)
		return st.TotalCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	// QoS 告警不影响匹配本身
	st, err := pub.TakeEventStatus(types.EventPublicationMatched)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.CurrentCount)
}

// TestIncompatibleTypeEvents 同名主题不同类型两侧上报且不匹配
func TestIncompatibleTypeEvents(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	pub, err := node.CreatePublisher("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)
	sub, err := node.CreateSubscription("/image", "sensor_msgs/msg/CompressedImage")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, err := pub.TakeEventStatus(types.EventPublisherIncompatibleType)
		require.NoError(t, err)
		return st.TotalCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		st, err := sub.TakeEventStatus(types.EventSubscriptionIncompatibleType)
		require.NoError(t, err)
		return st.TotalCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	// 类型不通的端点不计入匹配
	st, err := pub.TakeEventStatus(types.EventPublicationMatched)
	require.NoError(t, err)
	assert.Zero(t, st.CurrentCount)
}

// TestEventCallback 事件回调在状态变化时触发
func TestEventCallback(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	pub, err := node.CreatePublisher("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)

	matched := make(chan struct{}, 4)
	require.NoError(t, pub.SetEventCallback(types.EventPublicationMatched,
		func() { matched <- struct{}{} }))

	_, err = node.CreateSubscription("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)

	select {
	case <-matched:
	case <-time.After(2 * time.Second):
		t.Fatal("匹配建立应触发回调")
	}
}

// TestEventHandle 事件句柄与端点共享底层状态
func TestEventHandle(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	pub, err := node.CreatePublisher("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)

	ev, err := pub.Event(types.EventPublicationMatched)
	require.NoError(t, err)
	assert.Equal(t, types.EventPublicationMatched, ev.Kind())

	_, err = node.CreateSubscription("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return ev.TakeStatus().CurrentCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	// 句柄消费的增量对端点同样可见已消费
	st, err := pub.TakeEventStatus(types.EventPublicationMatched)
	require.NoError(t, err)
	assert.False(t, st.Changed)
}

// TestEventUnsupportedKinds 错侧与传输不产生的种类一律拒绝
func TestEventUnsupportedKinds(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	pub, err := node.CreatePublisher("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)
	sub, err := node.CreateSubscription("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)

	// 订阅侧种类用在发布者上
	_, err = pub.TakeEventStatus(types.EventSubscriptionMatched)
	assert.ErrorIs(t, err, ErrEventUnsupported)
	_, err = pub.Event(types.EventMessageLost)
	assert.ErrorIs(t, err, ErrEventUnsupported)

	// 发布侧种类用在订阅者上
	_, err = sub.TakeEventStatus(types.EventPublicationMatched)
	assert.ErrorIs(t, err, ErrEventUnsupported)

	// 传输不产生的种类两侧都拒绝
	for _, kind := range []types.EventKind{
		types.EventInvalid,
		types.EventLivelinessChanged,
		types.EventLivelinessLost,
		types.EventRequestedDeadlineMissed,
		types.EventOfferedDeadlineMissed,
	} {
		_, err = pub.TakeEventStatus(kind)
		assert.ErrorIs(t, err, ErrEventUnsupported, "publisher kind %s", kind)
		_, err = sub.TakeEventStatus(kind)
		assert.ErrorIs(t, err, ErrEventUnsupported, "subscription kind %s", kind)
		err = pub.SetEventCallback(kind, func() {})
		assert.ErrorIs(t, err, ErrEventUnsupported)
	}
}
