// Package waitset 实现等待集同步原语
package waitset

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// WaitForever 传给 Condition.Wait 表示无限等待
const WaitForever = time.Duration(-1)

// ============================================================================
// Condition 实现
// ============================================================================

// Condition 等待集的阻塞原语
//
// 一次等待周期内由单个消费者协程持有并阻塞，任意多个生产者协程
// 通过 Trigger 唤醒它。triggered 标志解决"先检查后挂接"窗口内的
// 丢失唤醒问题：
//   - 生产者先于消费者挂接而触发：消费者在挂接前的就绪检查中发现
//     状态已变化，不会进入阻塞；
//   - 生产者后于挂接而触发：triggered 置位并发出信号，消费者必定
//     观察到其一。
//
// 消费者唤醒后必须对所有挂接过的实体执行解除挂接，避免残留的
// 挂接被后续生产者触发到已不在等待的消费者上。
type Condition struct {
	clk clock.Clock

	mu        sync.Mutex
	triggered bool
	signal    chan struct{}
}

// NewCondition 创建等待条件
func NewCondition() *Condition {
	return NewConditionWithClock(clock.New())
}

// NewConditionWithClock 创建等待条件并注入时钟（测试用）
func NewConditionWithClock(clk clock.Clock) *Condition {
	if clk == nil {
		clk = clock.New()
	}
	return &Condition{
		clk:    clk,
		signal: make(chan struct{}, 1),
	}
}

// Trigger 标记条件已触发并唤醒等待者
//
// 可在持有调用方自身锁的情况下调用；本方法只短暂持有条件锁，
// 不会回调任何外部代码。
func (c *Condition) Trigger() {
	c.mu.Lock()
	c.triggered = true
	select {
	case c.signal <- struct{}{}:
	default:
	}
	c.mu.Unlock()
}

// consume 检查并消费触发标记
func (c *Condition) consume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.triggered {
		return false
	}
	c.triggered = false
	// 同时排空信号通道，避免陈旧信号造成下个周期的虚假唤醒
	select {
	case <-c.signal:
	default:
	}
	return true
}

// Reset 丢弃残留的触发标记与信号
//
// 在一个等待周期开始、任何挂接发生之前调用。上个周期因就绪
// 检查命中而跳过阻塞时，解除挂接窗口内的并发触发会残留在
// 条件上；就绪状态总是在挂接阶段重新从实体读出，残留触发
// 不携带额外信息，直接丢弃。
func (c *Condition) Reset() {
	c.consume()
}

// Wait 阻塞直到条件触发、超时或上下文取消
//
// timeout 语义：
//   - WaitForever（负值）：无限等待
//   - 0：不阻塞，仅消费已有触发
//   - 正值：至多等待该时长
//
// 返回值 woke 表示是否因触发而唤醒；上下文取消时返回 ctx.Err()，
// 此时 woke 仍然有效（取消与触发并发时可能两者皆真）。
func (c *Condition) Wait(ctx context.Context, timeout time.Duration) (woke bool, err error) {
	if c.consume() {
		return true, nil
	}
	if timeout == 0 {
		return false, nil
	}

	var timerCh <-chan time.Time
	if timeout > 0 {
		t := c.clk.Timer(timeout)
		defer t.Stop()
		timerCh = t.C
	}

	for {
		select {
		case <-c.signal:
			if c.consume() {
				return true, nil
			}
			// 虚假唤醒，重新等待
		case <-timerCh:
			return c.consume(), nil
		case <-ctx.Done():
			return c.consume(), ctx.Err()
		}
	}
}
