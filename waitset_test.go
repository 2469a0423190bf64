package robomesh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robomesh/go-robomesh/pkg/types"
)

// TestWaitSetDataAlreadyReady 队列已有数据时等待立即返回
func TestWaitSetDataAlreadyReady(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	sub, err := node.CreateSubscription("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)
	pub, err := node.CreatePublisher("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)

	require.NoError(t, pub.Publish([]byte("frame")))
	require.Eventually(t, func() bool {
		return sub.QueueSize() == 1
	}, 2*time.Second, 10*time.Millisecond)

	ws := rctx.CreateWaitSet()
	start := time.Now()
	out, err := ws.Wait(context.Background(), WaitForever,
		Waitables{Subscriptions: []*Subscription{sub}})
	require.NoError(t, err)
	require.Len(t, out.Subscriptions, 1)
	assert.Same(t, sub, out.Subscriptions[0])
	assert.Less(t, time.Since(start), time.Second)
}

// TestWaitSetWakesOnData 等待期间到达的消息唤醒等待者
func TestWaitSetWakesOnData(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	sub, err := node.CreateSubscription("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)
	pub, err := node.CreatePublisher("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = pub.Publish([]byte("frame"))
	}()

	ws := rctx.CreateWaitSet()
	out, err := ws.Wait(context.Background(), 5*time.Second,
		Waitables{Subscriptions: []*Subscription{sub}})
	require.NoError(t, err)
	require.Len(t, out.Subscriptions, 1)

	_, ok := out.Subscriptions[0].TakeMessage()
	assert.True(t, ok)
}

// TestWaitSetTimeout 无就绪实体时等满超时返回 ErrWaitTimeout
func TestWaitSetTimeout(t *testing.T) {
	rctx := newTestContext(t)
	gc := rctx.CreateGuardCondition()
	ws := rctx.CreateWaitSet()

	start := time.Now()
	out, err := ws.Wait(context.Background(), 50*time.Millisecond,
		Waitables{GuardConditions: []*GuardCondition{gc}})
	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.True(t, out.empty())
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	// 空集合同样只能以超时结束
	_, err = ws.Wait(context.Background(), 10*time.Millisecond, Waitables{})
	assert.ErrorIs(t, err, ErrWaitTimeout)
}

// TestWaitSetZeroTimeoutPoll 零超时只做一次就绪轮询
func TestWaitSetZeroTimeoutPoll(t *testing.T) {
	rctx := newTestContext(t)
	gc := rctx.CreateGuardCondition()
	ws := rctx.CreateWaitSet()

	start := time.Now()
	_, err := ws.Wait(context.Background(), 0,
		Waitables{GuardConditions: []*GuardCondition{gc}})
	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	gc.Trigger()
	out, err := ws.Wait(context.Background(), 0,
		Waitables{GuardConditions: []*GuardCondition{gc}})
	require.NoError(t, err)
	assert.Len(t, out.GuardConditions, 1)
}

// TestWaitSetGuardTrigger 守卫触发只计一次就绪
func TestWaitSetGuardTrigger(t *testing.T) {
	rctx := newTestContext(t)
	gc := rctx.CreateGuardCondition()
	ws := rctx.CreateWaitSet()

	gc.Trigger()
	out, err := ws.Wait(context.Background(), WaitForever,
		Waitables{GuardConditions: []*GuardCondition{gc}})
	require.NoError(t, err)
	require.Len(t, out.GuardConditions, 1)
	assert.Same(t, gc, out.GuardConditions[0])

	// 触发已消费
	_, err = ws.Wait(context.Background(), 0,
		Waitables{GuardConditions: []*GuardCondition{gc}})
	assert.ErrorIs(t, err, ErrWaitTimeout)
}

// TestWaitSetGuardWakesWhileBlocked 等待期间的触发唤醒等待者
func TestWaitSetGuardWakesWhileBlocked(t *testing.T) {
	rctx := newTestContext(t)
	gc := rctx.CreateGuardCondition()
	ws := rctx.CreateWaitSet()

	go func() {
		time.Sleep(30 * time.Millisecond)
		gc.Trigger()
	}()

	start := time.Now()
	out, err := ws.Wait(context.Background(), 5*time.Second,
		Waitables{GuardConditions: []*GuardCondition{gc}})
	require.NoError(t, err)
	assert.Len(t, out.GuardConditions, 1)
	assert.Less(t, time.Since(start), 5*time.Second)
}

// TestWaitSetInUse 同一等待集并发等待被拒绝
func TestWaitSetInUse(t *testing.T) {
	rctx := newTestContext(t)
	gc := rctx.CreateGuardCondition()
	ws := rctx.CreateWaitSet()

	bgOut := make(chan Waitables, 1)
	go func() {
		for {
			out, err := ws.Wait(context.Background(), WaitForever,
				Waitables{GuardConditions: []*GuardCondition{gc}})
			if errors.Is(err, ErrWaitSetInUse) {
				// 与主协程的轮询撞上，重试
				continue
			}
			bgOut <- out
			return
		}
	}()

	// 后台等待进入阻塞后，同一等待集的并发调用被拒绝
	require.Eventually(t, func() bool {
		_, err := ws.Wait(context.Background(), 0, Waitables{})
		return errors.Is(err, ErrWaitSetInUse)
	}, 2*time.Second, 5*time.Millisecond)

	gc.Trigger()
	select {
	case out := <-bgOut:
		assert.Len(t, out.GuardConditions, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("触发后后台等待应返回")
	}
}

// TestWaitSetContextCancel 上下文取消结束等待
func TestWaitSetContextCancel(t *testing.T) {
	rctx := newTestContext(t)
	gc := rctx.CreateGuardCondition()
	ws := rctx.CreateWaitSet()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	out, err := ws.Wait(ctx, WaitForever,
		Waitables{GuardConditions: []*GuardCondition{gc}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, out.empty())
}

// TestWaitSetEventWake 状态事件唤醒等待者
func TestWaitSetEventWake(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	pub, err := node.CreatePublisher("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)
	ev, err := pub.Event(types.EventPublicationMatched)
	require.NoError(t, err)

	ws := rctx.CreateWaitSet()
	done := make(chan Waitables, 1)
	go func() {
		out, werr := ws.Wait(context.Background(), 5*time.Second,
			Waitables{Events: []*Event{ev}})
		if werr != nil {
			done <- Waitables{}
			return
		}
		done <- out
	}()

	// 匹配出现触发事件
	_, err = node.CreateSubscription("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)

	select {
	case out := <-done:
		require.Len(t, out.Events, 1)
		st := out.Events[0].TakeStatus()
		assert.True(t, st.Changed)
		assert.Equal(t, uint64(1), st.CurrentCount)
	case <-time.After(5 * time.Second):
		t.Fatal("匹配事件应唤醒等待")
	}
}

// TestWaitSetServiceAndClient 待处理请求与待取应答计入就绪
func TestWaitSetServiceAndClient(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "arm")
	require.NoError(t, err)
	srv, err := node.CreateService("/set_pose", "arm_msgs/srv/SetPose")
	require.NoError(t, err)
	cli, err := node.CreateClient("/set_pose", "arm_msgs/srv/SetPose")
	require.NoError(t, err)

	_, err = cli.SendRequest([]byte("r"))
	require.NoError(t, err)

	ws := rctx.CreateWaitSet()
	out, err := ws.Wait(context.Background(), 5*time.Second,
		Waitables{Services: []*Service{srv}})
	require.NoError(t, err)
	require.Len(t, out.Services, 1)

	req, ok := out.Services[0].TakeRequest()
	require.True(t, ok)
	require.NoError(t, srv.SendResponse(req.Info.RequestID, []byte("ok")))

	out, err = ws.Wait(context.Background(), 5*time.Second,
		Waitables{Clients: []*Client{cli}})
	require.NoError(t, err)
	require.Len(t, out.Clients, 1)

	resp, ok := out.Clients[0].TakeResponse()
	require.True(t, ok)
	assert.Equal(t, []byte("ok"), resp.Payload)
}

// TestWaitSetCollectsAllReady 一次唤醒收集全部就绪实体
func TestWaitSetCollectsAllReady(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	sub, err := node.CreateSubscription("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)
	pub, err := node.CreatePublisher("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)
	ev, err := pub.Event(types.EventPublicationMatched)
	require.NoError(t, err)
	gc := rctx.CreateGuardCondition()
	ws := rctx.CreateWaitSet()

	require.NoError(t, pub.Publish([]byte("frame")))

	// 消息与匹配事件都就绪后再触发守卫（轮询不消费两者的就绪态）
	require.Eventually(t, func() bool {
		out, _ := ws.Wait(context.Background(), 0, Waitables{
			Subscriptions: []*Subscription{sub},
			Events:        []*Event{ev},
		})
		return len(out.Subscriptions) == 1 && len(out.Events) == 1
	}, 2*time.Second, 10*time.Millisecond)
	gc.Trigger()

	out, err := ws.Wait(context.Background(), 0, Waitables{
		Subscriptions:   []*Subscription{sub},
		GuardConditions: []*GuardCondition{gc},
		Events:          []*Event{ev},
	})
	require.NoError(t, err)
	assert.Len(t, out.Subscriptions, 1)
	assert.Len(t, out.GuardConditions, 1)
	assert.Len(t, out.Events, 1)
}

// TestWaitSetNoStaleWake 跳过阻塞的周期不向后泄漏残留触发
func TestWaitSetNoStaleWake(t *testing.T) {
	rctx := newTestContext(t)
	g1 := rctx.CreateGuardCondition()
	g2 := rctx.CreateGuardCondition()
	ws := rctx.CreateWaitSet()

	for i := 0; i < 10; i++ {
		// g1 已就绪使本周期跳过阻塞；g2 的触发与解除挂接竞速，
		// 可能在解除窗口内落在等待条件上
		g1.Trigger()
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			g2.Trigger()
		}()

		out, err := ws.Wait(context.Background(), WaitForever, Waitables{
			GuardConditions: []*GuardCondition{g1, g2},
		})
		require.NoError(t, err)
		wg.Wait()

		// g2 的触发未被本周期收集时先行排空
		if len(out.GuardConditions) == 1 {
			out2, err := ws.Wait(context.Background(), WaitForever,
				Waitables{GuardConditions: []*GuardCondition{g2}})
			require.NoError(t, err)
			require.Len(t, out2.GuardConditions, 1)
		}

		// 两个守卫都无触发，短超时等待必须等满时长
		start := time.Now()
		_, err = ws.Wait(context.Background(), 30*time.Millisecond, Waitables{
			GuardConditions: []*GuardCondition{g1, g2},
		})
		assert.ErrorIs(t, err, ErrWaitTimeout)
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	}
}

// TestGraphGuardCondition 图谱变更触发守卫，句柄全局唯一
func TestGraphGuardCondition(t *testing.T) {
	rctx := newTestContext(t)

	gc := rctx.GraphGuardCondition()
	assert.Same(t, gc, rctx.GraphGuardCondition())

	ws := rctx.CreateWaitSet()
	_, err := rctx.CreateNode("/fleet", "newcomer")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		out, werr := ws.Wait(context.Background(), 0,
			Waitables{GuardConditions: []*GuardCondition{gc}})
		return werr == nil && len(out.GuardConditions) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
