// Package session 管理上下文级传输会话
//
// 一个 Data 对应一个已打开的传输会话，持有域内图谱缓存、
// 图谱守卫条件与实体 ID 分配器。进程内所有节点与端点共享
// 同一个 Data。
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/robomesh/go-robomesh/internal/config"
	"github.com/robomesh/go-robomesh/internal/core/entity"
	"github.com/robomesh/go-robomesh/internal/core/graph"
	"github.com/robomesh/go-robomesh/internal/core/liveliness"
	"github.com/robomesh/go-robomesh/internal/core/metrics"
	"github.com/robomesh/go-robomesh/internal/core/waitset"
	"github.com/robomesh/go-robomesh/pkg/interfaces"
	"github.com/robomesh/go-robomesh/pkg/lib/log"
	"github.com/robomesh/go-robomesh/pkg/types"
)

var logger = log.Logger("core/session")

// Params 会话装配参数
type Params struct {
	// DomainID 域 ID
	DomainID uint32

	// Enclave 安全 enclave 名称
	Enclave string

	// CheckAttempts 打开会话的尝试次数，0 使用默认值，负数无限重试
	CheckAttempts int

	// CheckPeriod 两次尝试之间的间隔，非正值使用默认值
	CheckPeriod time.Duration

	// Metrics 会话指标，可为 nil
	Metrics *metrics.Metrics

	// Clock 重试计时用时钟，nil 使用真实时钟
	Clock clock.Clock
}

// Data 上下文级会话数据
//
// 装配顺序：打开传输会话（带路由器存活探测重试）→ 创建图谱
// 守卫与图谱缓存 → 订阅存活管理空间（history 回放先到的令牌）。
// 图谱任何变化经守卫条件唤醒等待中的 WaitSet。
type Data struct {
	domainID uint32
	enclave  string

	sess    interfaces.Session
	graph   *graph.Cache
	guard   *waitset.GuardCondition
	livSub  interfaces.Subscriber
	metrics *metrics.Metrics

	mu           sync.Mutex
	nextEntityID int64
	shutdown     bool
}

// New 打开传输会话并装配图谱
func New(ctx context.Context, tr interfaces.Transport, p Params) (*Data, error) {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	attempts := p.CheckAttempts
	if attempts == 0 {
		attempts = config.DefaultCheckAttempts
	}
	period := p.CheckPeriod
	if period <= 0 {
		period = config.DefaultCheckPeriod
	}

	var sess interfaces.Session
	var err error
	for attempt := 1; ; attempt++ {
		sess, err = tr.Open(ctx)
		if err == nil {
			break
		}
		if attempts > 0 && attempt >= attempts {
			return nil, fmt.Errorf("无法连接到 RoboMesh 路由器: %w", err)
		}
		logger.Warn("无法连接到 RoboMesh 路由器，是否已启动 robomeshd？",
			"attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-clk.After(period):
		}
	}

	guard := waitset.NewGuardCondition()
	g := graph.NewCache(p.DomainID, guard.Trigger)

	livSub, err := sess.SubscribeLiveliness(liveliness.AdminKeyexpr(p.DomainID), true, g.HandleSample)
	if err != nil {
		closeErr := sess.Close()
		return nil, multierr.Append(fmt.Errorf("订阅存活管理空间: %w", err), closeErr)
	}

	logger.Info("会话已建立", "session", log.TruncateID(sess.ID(), 8), "domain", p.DomainID)

	return &Data{
		domainID: p.DomainID,
		enclave:  p.Enclave,
		sess:     sess,
		graph:    g,
		guard:    guard,
		livSub:   livSub,
		metrics:  p.Metrics,
	}, nil
}

// Session 返回底层传输会话
func (d *Data) Session() interfaces.Session { return d.sess }

// Graph 返回域内图谱缓存
func (d *Data) Graph() *graph.Cache { return d.graph }

// GraphGuard 返回图谱守卫条件
//
// 图谱任何变化都会触发它，WaitSet 经由它感知图谱事件。
func (d *Data) GraphGuard() *waitset.GuardCondition { return d.guard }

// Metrics 返回会话指标，可能为 nil
func (d *Data) Metrics() *metrics.Metrics { return d.metrics }

// DomainID 返回域 ID
func (d *Data) DomainID() uint32 { return d.domainID }

// Enclave 返回 enclave 名称
func (d *Data) Enclave() string { return d.enclave }

// SessionID 返回传输会话标识
func (d *Data) SessionID() string { return d.sess.ID() }

// NextEntityID 分配下一个实体 ID
//
// 节点与端点共用同一单调计数，从 1 开始。
func (d *Data) NextEntityID() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextEntityID++
	return d.nextEntityID
}

// IsShutdown 返回会话是否已关闭
func (d *Data) IsShutdown() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown
}

// EntityDeps 返回创建端点实体所需的依赖
func (d *Data) EntityDeps() entity.Deps {
	return entity.Deps{
		Session: d.sess,
		Graph:   d.graph,
		Metrics: d.metrics,
	}
}

// NewNodeEntity 为一个节点分配实体 ID 并构造其存活描述
func (d *Data) NewNodeEntity(namespace, name string) (*liveliness.Entity, error) {
	if d.IsShutdown() {
		return nil, types.ErrShutdown
	}
	return liveliness.NewNodeEntity(d.sess.ID(), d.NextEntityID(), liveliness.NodeInfo{
		DomainID:  d.domainID,
		Namespace: namespace,
		Name:      name,
		Enclave:   d.enclave,
	})
}

// NewEndpointEntity 为一个端点分配实体 ID 并构造其存活描述
//
// nodeID 为所属节点的实体 ID。
func (d *Data) NewEndpointEntity(nodeID int64, kind types.EntityKind,
	node liveliness.NodeInfo, topic liveliness.TopicInfo) (*liveliness.Entity, error) {
	if d.IsShutdown() {
		return nil, types.ErrShutdown
	}
	return liveliness.NewEndpointEntity(d.sess.ID(), nodeID, d.NextEntityID(), kind, node, topic)
}

// Shutdown 关闭会话，幂等
//
// 先撤销图谱订阅并置位关闭标记，随后在锁外关闭传输会话，
// 避免与存活样本回调互相等待。
func (d *Data) Shutdown() error {
	d.mu.Lock()
	if d.shutdown {
		d.mu.Unlock()
		return nil
	}
	d.shutdown = true
	err := d.livSub.Undeclare()
	d.mu.Unlock()

	return multierr.Append(err, d.sess.Close())
}
