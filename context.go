package robomesh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/robomesh/go-robomesh/internal/config"
	"github.com/robomesh/go-robomesh/internal/core/metrics"
	"github.com/robomesh/go-robomesh/internal/core/session"
	"github.com/robomesh/go-robomesh/internal/core/waitset"
	"github.com/robomesh/go-robomesh/pkg/lib/log"
	"github.com/robomesh/go-robomesh/pkg/types"
)

// 生命周期超时配置
const (
	// initializeTimeout 初始化超时（Fx App Start）
	initializeTimeout = 30 * time.Second

	// shutdownTimeout 关闭超时（Fx App Stop）
	shutdownTimeout = 15 * time.Second
)

// ════════════════════════════════════════════════════════════════════════════
//                              Context
// ════════════════════════════════════════════════════════════════════════════

// Context 一个域内的会话上下文
//
// Context 是用户与 RoboMesh 交互的主入口，持有传输会话、
// 图谱缓存与等待集基础设施。同一 Context 下创建的节点与
// 端点共享一个传输会话。
//
// 使用示例：
//
//	rctx, err := robomesh.New(ctx,
//	    robomesh.WithDomainID(7),
//	    robomesh.WithRouterEndpoint("ws://127.0.0.1:7447"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rctx.Shutdown()
//
//	node, err := rctx.CreateNode("/fleet", "camera_driver")
//	if err != nil {
//	    log.Fatal(err)
//	}
type Context struct {
	// ────────────────────────────────────────────────────────────────────────
	// 配置和状态
	// ────────────────────────────────────────────────────────────────────────

	// opts 会话选项（Context 持有的深拷贝，Shutdown 时释放）
	opts *config.Options

	// app Fx 应用
	app *fx.App

	// ────────────────────────────────────────────────────────────────────────
	// 核心组件（由 Fx 注入）
	// ────────────────────────────────────────────────────────────────────────

	// data 会话数据（传输会话 + 图谱缓存 + 图谱守卫）
	data *session.Data

	// metrics 指标采集
	metrics *metrics.Metrics

	// registry 指标注册表
	registry *prometheus.Registry

	// ────────────────────────────────────────────────────────────────────────
	// 图谱守卫句柄（懒创建，同一句柄复用）
	// ────────────────────────────────────────────────────────────────────────

	graphGuardOnce sync.Once
	graphGuard     *GuardCondition

	// ────────────────────────────────────────────────────────────────────────
	// 生命周期状态
	// ────────────────────────────────────────────────────────────────────────

	mu       sync.Mutex
	nodes    map[*Node]struct{}
	shutdown bool
}

// ════════════════════════════════════════════════════════════════════════════
//                              构造函数
// ════════════════════════════════════════════════════════════════════════════

// New 建立会话上下文
//
// 按选项装配 Fx 应用并启动：打开传输会话（带路由器存活探测
// 重试）、订阅存活管理空间、构建图谱缓存。任何一步失败都会
// 回收已建立的资源并返回错误。
//
// 示例：
//
//	rctx, err := robomesh.New(ctx,
//	    robomesh.WithDomainID(7),
//	    robomesh.WithEnclave("/factory_floor"),
//	)
func New(ctx context.Context, opts ...Option) (*Context, error) {
	// 应用选项
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	// 构建配置
	cfg, err := o.sessionConfig()
	if err != nil {
		return nil, err
	}
	src, err := o.sessionOptions()
	if err != nil {
		return nil, err
	}

	// Context 持有选项的深拷贝，调用方在返回后改动原始缓冲不影响会话
	owned := &config.Options{}
	if err := src.Copy(owned); err != nil {
		return nil, err
	}
	if err := src.Fini(); err != nil {
		return nil, err
	}

	rctx := &Context{
		opts:  owned,
		nodes: make(map[*Node]struct{}),
	}

	// 构建 Fx 应用
	rctx.app, err = buildFxApp(cfg, owned, o, rctx)
	if err != nil {
		_ = owned.Fini()
		return nil, fmt.Errorf("build fx app: %w", err)
	}

	// 启动
	startCtx, cancel := context.WithTimeout(ctx, initializeTimeout)
	defer cancel()
	if err := rctx.app.Start(startCtx); err != nil {
		_ = owned.Fini()
		return nil, fmt.Errorf("start context: %w", err)
	}

	logger.Info("上下文已就绪",
		"session", log.TruncateID(rctx.data.SessionID(), 8),
		"domain", rctx.data.DomainID(),
		"mode", cfg.Mode)
	return rctx, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              基本信息
// ════════════════════════════════════════════════════════════════════════════

// SessionID 返回传输会话标识
func (c *Context) SessionID() string { return c.data.SessionID() }

// DomainID 返回域 ID
func (c *Context) DomainID() uint32 { return c.data.DomainID() }

// Enclave 返回安全 enclave 名称，未启用时为空
func (c *Context) Enclave() string { return c.data.Enclave() }

// Registry 返回本上下文的指标注册表
//
// 嵌入方可将其挂到自己的 /metrics 端点。每个 Context 使用
// 独立注册表，同进程多会话不会重名冲突。
func (c *Context) Registry() *prometheus.Registry { return c.registry }

// ════════════════════════════════════════════════════════════════════════════
//                              节点与同步原语
// ════════════════════════════════════════════════════════════════════════════

// CreateNode 在指定命名空间下创建节点
//
// namespace 必须以 '/' 开头（空串视为根命名空间 "/"），
// name 不得包含 '/'。节点的存活令牌随创建声明，域内其他
// 会话由此看到本节点。
func (c *Context) CreateNode(namespace, name string) (*Node, error) {
	if c.isShutdown() {
		return nil, ErrShutdown
	}

	ent, err := c.data.NewNodeEntity(namespace, name)
	if err != nil {
		if errors.Is(err, types.ErrShutdown) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	token, err := c.data.Session().DeclareLivelinessToken(ent.Keyexpr())
	if err != nil {
		return nil, fmt.Errorf("声明节点存活令牌: %w", err)
	}

	n := newNode(c, ent, token)

	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		_ = token.Undeclare()
		return nil, ErrShutdown
	}
	c.nodes[n] = struct{}{}
	c.mu.Unlock()

	logger.Info("节点已创建", "node", n.FullyQualifiedName(), "id", ent.NodeID())
	return n, nil
}

// CreateWaitSet 创建等待集
func (c *Context) CreateWaitSet() *WaitSet {
	return &WaitSet{cond: waitset.NewCondition()}
}

// CreateGuardCondition 创建守护条件
//
// 返回的守护条件不绑定任何实体，应用可在任意协程 Trigger
// 它来唤醒等待中的 WaitSet。
func (c *Context) CreateGuardCondition() *GuardCondition {
	return &GuardCondition{guard: waitset.NewGuardCondition()}
}

// GraphGuardCondition 返回图谱守卫条件
//
// 域内图谱任何变化（节点/端点出现或消失）都会触发它。
// 多次调用返回同一句柄。
func (c *Context) GraphGuardCondition() *GuardCondition {
	c.graphGuardOnce.Do(func() {
		c.graphGuard = &GuardCondition{guard: c.data.GraphGuard()}
	})
	return c.graphGuard
}

// ════════════════════════════════════════════════════════════════════════════
//                              图谱查询
// ════════════════════════════════════════════════════════════════════════════

// NodeNames 返回图谱中全部节点
func (c *Context) NodeNames() []types.NodeName {
	return c.data.Graph().NodeNames()
}

// TopicNamesAndTypes 返回图谱中全部主题及其类型
func (c *Context) TopicNamesAndTypes() []types.TopicNameAndTypes {
	return c.data.Graph().TopicNamesAndTypes()
}

// ServiceNamesAndTypes 返回图谱中全部服务及其类型
func (c *Context) ServiceNamesAndTypes() []types.TopicNameAndTypes {
	return c.data.Graph().ServiceNamesAndTypes()
}

// CountPublishers 返回主题上的发布者数量
func (c *Context) CountPublishers(topic string) int {
	return c.data.Graph().CountPublishers(topic)
}

// CountSubscriptions 返回主题上的订阅者数量
func (c *Context) CountSubscriptions(topic string) int {
	return c.data.Graph().CountSubscriptions(topic)
}

// CountServices 返回服务名上的服务端数量
func (c *Context) CountServices(service string) int {
	return c.data.Graph().CountServices(service)
}

// CountClients 返回服务名上的客户端数量
func (c *Context) CountClients(service string) int {
	return c.data.Graph().CountClients(service)
}

// PublishersInfoByTopic 返回主题上全部发布者的端点信息
func (c *Context) PublishersInfoByTopic(topic string) []types.EndpointInfo {
	return c.data.Graph().PublishersInfoByTopic(topic)
}

// SubscriptionsInfoByTopic 返回主题上全部订阅者的端点信息
func (c *Context) SubscriptionsInfoByTopic(topic string) []types.EndpointInfo {
	return c.data.Graph().SubscriptionsInfoByTopic(topic)
}

// PublisherNamesAndTypesByNode 返回指定节点的发布主题及类型
//
// 节点不在图谱中时返回 ErrNodeNotFound。
func (c *Context) PublisherNamesAndTypesByNode(name, namespace string) ([]types.TopicNameAndTypes, error) {
	if err := c.checkNodeExists(name, namespace); err != nil {
		return nil, err
	}
	return c.data.Graph().PublisherNamesAndTypesByNode(name, namespace), nil
}

// SubscriptionNamesAndTypesByNode 返回指定节点的订阅主题及类型
func (c *Context) SubscriptionNamesAndTypesByNode(name, namespace string) ([]types.TopicNameAndTypes, error) {
	if err := c.checkNodeExists(name, namespace); err != nil {
		return nil, err
	}
	return c.data.Graph().SubscriptionNamesAndTypesByNode(name, namespace), nil
}

// ServiceNamesAndTypesByNode 返回指定节点的服务名及类型
func (c *Context) ServiceNamesAndTypesByNode(name, namespace string) ([]types.TopicNameAndTypes, error) {
	if err := c.checkNodeExists(name, namespace); err != nil {
		return nil, err
	}
	return c.data.Graph().ServiceNamesAndTypesByNode(name, namespace), nil
}

// ClientNamesAndTypesByNode 返回指定节点的客户端服务名及类型
func (c *Context) ClientNamesAndTypesByNode(name, namespace string) ([]types.TopicNameAndTypes, error) {
	if err := c.checkNodeExists(name, namespace); err != nil {
		return nil, err
	}
	return c.data.Graph().ClientNamesAndTypesByNode(name, namespace), nil
}

// checkNodeExists 校验节点在图谱中存在
func (c *Context) checkNodeExists(name, namespace string) error {
	if namespace == "" {
		namespace = "/"
	}
	for _, n := range c.data.Graph().NodeNames() {
		if n.Name == name && n.Namespace == namespace {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNodeNotFound, qualifiedName(namespace, name))
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Shutdown 关闭上下文，幂等
//
// 依次关闭全部存活节点（及其端点）、停止 Fx 应用（关闭传输
// 会话）、释放选项。重复调用返回 nil。
func (c *Context) Shutdown() error {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return nil
	}
	c.shutdown = true
	nodes := make([]*Node, 0, len(c.nodes))
	for n := range c.nodes {
		nodes = append(nodes, n)
	}
	c.mu.Unlock()

	var err error
	for _, n := range nodes {
		err = multierr.Append(err, n.Shutdown())
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = multierr.Append(err, c.app.Stop(stopCtx))
	err = multierr.Append(err, c.opts.Fini())

	logger.Info("上下文已关闭", "session", log.TruncateID(c.data.SessionID(), 8))
	return err
}

// isShutdown 返回上下文是否已关闭
func (c *Context) isShutdown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shutdown
}

// removeNode 从登记表移除节点
func (c *Context) removeNode(n *Node) {
	c.mu.Lock()
	delete(c.nodes, n)
	c.mu.Unlock()
}

// qualifiedName 拼接命名空间与名字
func qualifiedName(namespace, name string) string {
	if namespace == "" || namespace == "/" {
		return "/" + name
	}
	return namespace + "/" + name
}
