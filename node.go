package robomesh

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/robomesh/go-robomesh/internal/core/entity"
	"github.com/robomesh/go-robomesh/internal/core/liveliness"
	"github.com/robomesh/go-robomesh/internal/core/qos"
	"github.com/robomesh/go-robomesh/pkg/interfaces"
	"github.com/robomesh/go-robomesh/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              端点选项
// ════════════════════════════════════════════════════════════════════════════

// EndpointOption 端点创建选项
type EndpointOption func(*endpointOptions) error

// endpointOptions 端点配置集合
type endpointOptions struct {
	qos      types.QoSProfile
	typeHash string
}

// WithQoS 设置端点的 QoS 配置
//
// 未解析的取值（SystemDefault、BestAvailable、零深度、零时长）
// 在创建时解析为具体默认值。不设置时使用全默认配置。
func WithQoS(profile types.QoSProfile) EndpointOption {
	return func(o *endpointOptions) error {
		o.qos = profile
		return nil
	}
}

// WithTypeHash 设置端点消息类型的哈希
//
// 哈希随存活令牌公告，供远端做类型兼容校验。不设置时
// 端点不公告类型哈希。
func WithTypeHash(hash string) EndpointOption {
	return func(o *endpointOptions) error {
		o.typeHash = hash
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              Node
// ════════════════════════════════════════════════════════════════════════════

// Node 一个图谱节点
//
// 节点是端点（发布者、订阅者、服务端、客户端）的归属单位。
// 节点自身不承载数据流，只在图谱中占据身份；其下端点关闭
// 顺序与创建顺序无关。
type Node struct {
	ctx    *Context
	entity *liveliness.Entity
	token  interfaces.LivelinessToken

	// ────────────────────────────────────────────────────────────────────────
	// 子端点登记表
	// ────────────────────────────────────────────────────────────────────────

	mu            sync.Mutex
	publishers    map[*Publisher]struct{}
	subscriptions map[*Subscription]struct{}
	services      map[*Service]struct{}
	clients       map[*Client]struct{}
	shutdown      bool
}

// newNode 构造节点句柄
func newNode(c *Context, ent *liveliness.Entity, token interfaces.LivelinessToken) *Node {
	return &Node{
		ctx:           c,
		entity:        ent,
		token:         token,
		publishers:    make(map[*Publisher]struct{}),
		subscriptions: make(map[*Subscription]struct{}),
		services:      make(map[*Service]struct{}),
		clients:       make(map[*Client]struct{}),
	}
}

// Name 返回节点名
func (n *Node) Name() string { return n.entity.Node().Name }

// Namespace 返回节点命名空间
func (n *Node) Namespace() string { return n.entity.Node().Namespace }

// FullyQualifiedName 返回命名空间与节点名拼接的全限定名
func (n *Node) FullyQualifiedName() string {
	return qualifiedName(n.entity.Node().Namespace, n.entity.Node().Name)
}

// ════════════════════════════════════════════════════════════════════════════
//                              端点创建
// ════════════════════════════════════════════════════════════════════════════

// CreatePublisher 在节点下创建发布者
//
// topic 为主题名（'/' 开头），msgType 为消息类型名。发布者
// 的存活令牌随创建声明，域内订阅者由此完成匹配计数。
func (n *Node) CreatePublisher(topic, msgType string, opts ...EndpointOption) (*Publisher, error) {
	ent, err := n.newEndpointEntity(types.EntityPublisher, topic, msgType, opts)
	if err != nil {
		return nil, err
	}
	data, err := entity.NewPublisher(n.ctx.data.EntityDeps(), ent)
	if err != nil {
		return nil, fmt.Errorf("create publisher: %w", err)
	}

	p := &Publisher{node: n, data: data}
	n.mu.Lock()
	if n.shutdown {
		n.mu.Unlock()
		_ = data.Shutdown()
		return nil, ErrShutdown
	}
	n.publishers[p] = struct{}{}
	n.mu.Unlock()

	logger.Debug("发布者已创建", "node", n.FullyQualifiedName(), "topic", topic)
	return p, nil
}

// CreateSubscription 在节点下创建订阅者
//
// 收到的消息进入有界队列，容量由 QoS 的 History/Depth 决定，
// 满时按 KeepLast 语义丢弃最旧一条并计入 MessageLost 事件。
func (n *Node) CreateSubscription(topic, msgType string, opts ...EndpointOption) (*Subscription, error) {
	ent, err := n.newEndpointEntity(types.EntitySubscription, topic, msgType, opts)
	if err != nil {
		return nil, err
	}
	data, err := entity.NewSubscription(n.ctx.data.EntityDeps(), ent)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	s := &Subscription{node: n, data: data}
	n.mu.Lock()
	if n.shutdown {
		n.mu.Unlock()
		_ = data.Shutdown()
		return nil, ErrShutdown
	}
	n.subscriptions[s] = struct{}{}
	n.mu.Unlock()

	logger.Debug("订阅者已创建", "node", n.FullyQualifiedName(), "topic", topic)
	return s, nil
}

// CreateService 在节点下创建服务端
//
// service 为服务名（'/' 开头），srvType 为服务类型名。
func (n *Node) CreateService(service, srvType string, opts ...EndpointOption) (*Service, error) {
	ent, err := n.newEndpointEntity(types.EntityService, service, srvType, opts)
	if err != nil {
		return nil, err
	}
	data, err := entity.NewService(n.ctx.data.EntityDeps(), ent)
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}

	s := &Service{node: n, data: data}
	n.mu.Lock()
	if n.shutdown {
		n.mu.Unlock()
		_ = data.Shutdown()
		return nil, ErrShutdown
	}
	n.services[s] = struct{}{}
	n.mu.Unlock()

	logger.Debug("服务端已创建", "node", n.FullyQualifiedName(), "service", service)
	return s, nil
}

// CreateClient 在节点下创建客户端
func (n *Node) CreateClient(service, srvType string, opts ...EndpointOption) (*Client, error) {
	ent, err := n.newEndpointEntity(types.EntityClient, service, srvType, opts)
	if err != nil {
		return nil, err
	}
	data, err := entity.NewClient(n.ctx.data.EntityDeps(), ent)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	cl := &Client{node: n, data: data}
	n.mu.Lock()
	if n.shutdown {
		n.mu.Unlock()
		_ = data.Shutdown()
		return nil, ErrShutdown
	}
	n.clients[cl] = struct{}{}
	n.mu.Unlock()

	logger.Debug("客户端已创建", "node", n.FullyQualifiedName(), "service", service)
	return cl, nil
}

// newEndpointEntity 为端点解析选项并分配实体描述符
func (n *Node) newEndpointEntity(kind types.EntityKind, name, typ string,
	opts []EndpointOption) (*liveliness.Entity, error) {
	if n.isShutdown() {
		return nil, ErrShutdown
	}

	eo := &endpointOptions{}
	for _, opt := range opts {
		if err := opt(eo); err != nil {
			return nil, fmt.Errorf("apply endpoint option: %w", err)
		}
	}

	ent, err := n.ctx.data.NewEndpointEntity(n.entity.NodeID(), kind, n.entity.Node(),
		liveliness.TopicInfo{
			Name:     name,
			Type:     typ,
			TypeHash: eo.typeHash,
			QoS:      qos.Adapt(eo.qos),
		})
	if err != nil {
		if errors.Is(err, types.ErrShutdown) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return ent, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              图谱便捷查询
// ════════════════════════════════════════════════════════════════════════════

// NodeNames 返回图谱中全部节点
func (n *Node) NodeNames() []types.NodeName { return n.ctx.NodeNames() }

// TopicNamesAndTypes 返回图谱中全部主题及其类型
func (n *Node) TopicNamesAndTypes() []types.TopicNameAndTypes {
	return n.ctx.TopicNamesAndTypes()
}

// ServiceNamesAndTypes 返回图谱中全部服务及其类型
func (n *Node) ServiceNamesAndTypes() []types.TopicNameAndTypes {
	return n.ctx.ServiceNamesAndTypes()
}

// CountPublishers 返回主题上的发布者数量
func (n *Node) CountPublishers(topic string) int { return n.ctx.CountPublishers(topic) }

// CountSubscriptions 返回主题上的订阅者数量
func (n *Node) CountSubscriptions(topic string) int { return n.ctx.CountSubscriptions(topic) }

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Shutdown 关闭节点及其全部端点，幂等
func (n *Node) Shutdown() error {
	n.mu.Lock()
	if n.shutdown {
		n.mu.Unlock()
		return nil
	}
	n.shutdown = true
	pubs := make([]*Publisher, 0, len(n.publishers))
	for p := range n.publishers {
		pubs = append(pubs, p)
	}
	subs := make([]*Subscription, 0, len(n.subscriptions))
	for s := range n.subscriptions {
		subs = append(subs, s)
	}
	srvs := make([]*Service, 0, len(n.services))
	for s := range n.services {
		srvs = append(srvs, s)
	}
	clis := make([]*Client, 0, len(n.clients))
	for cl := range n.clients {
		clis = append(clis, cl)
	}
	n.mu.Unlock()

	var err error
	for _, p := range pubs {
		err = multierr.Append(err, p.Shutdown())
	}
	for _, s := range subs {
		err = multierr.Append(err, s.Shutdown())
	}
	for _, s := range srvs {
		err = multierr.Append(err, s.Shutdown())
	}
	for _, cl := range clis {
		err = multierr.Append(err, cl.Shutdown())
	}
	err = multierr.Append(err, n.token.Undeclare())

	n.ctx.removeNode(n)
	logger.Info("节点已关闭", "node", n.FullyQualifiedName())
	return err
}

// isShutdown 返回节点是否已关闭
func (n *Node) isShutdown() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.shutdown
}

// removePublisher 从登记表移除发布者
func (n *Node) removePublisher(p *Publisher) {
	n.mu.Lock()
	delete(n.publishers, p)
	n.mu.Unlock()
}

// removeSubscription 从登记表移除订阅者
func (n *Node) removeSubscription(s *Subscription) {
	n.mu.Lock()
	delete(n.subscriptions, s)
	n.mu.Unlock()
}

// removeService 从登记表移除服务端
func (n *Node) removeService(s *Service) {
	n.mu.Lock()
	delete(n.services, s)
	n.mu.Unlock()
}

// removeClient 从登记表移除客户端
func (n *Node) removeClient(cl *Client) {
	n.mu.Lock()
	delete(n.clients, cl)
	n.mu.Unlock()
}
