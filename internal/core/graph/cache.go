// Package graph 维护域内实体图谱并驱动匹配类事件
//
// 图谱完全由存活令牌重建：会话订阅管理空间，每个令牌的出现与
// 消失都经 ParsePut/ParseDel 进入缓存。本地端点注册事件钩子后，
// 对端令牌的变化会转化为对应的状态事件（匹配数增减、QoS 告警、
// 类型不一致）。
//
// # 并发安全
//
// 缓存由单把互斥锁保护。事件上报与变更通知都在释放锁之后执行，
// 事件回调里再查询图谱不会死锁。
package graph

import (
	"fmt"
	"sync"

	"github.com/robomesh/go-robomesh/internal/core/events"
	"github.com/robomesh/go-robomesh/internal/core/liveliness"
	"github.com/robomesh/go-robomesh/internal/core/qos"
	"github.com/robomesh/go-robomesh/pkg/lib/log"
	"github.com/robomesh/go-robomesh/pkg/types"
)

var logger = log.Logger("core/graph")

// nodeKey 节点在图谱中的唯一标识
type nodeKey struct {
	sessionID string
	nodeID    int64
}

// statusUpdate 一次待上报的状态事件，锁外执行
type statusUpdate struct {
	mgr   *events.Manager
	kind  events.Kind
	delta int64
	data  []byte
}

// Cache 域内实体图谱缓存
type Cache struct {
	domainID uint32
	notify   func()

	mu    sync.Mutex
	nodes map[nodeKey]liveliness.NodeInfo
	// 端点按主题名组织，同名主题下按 GID 去重
	pubs map[string]map[types.GID]*liveliness.Entity
	subs map[string]map[types.GID]*liveliness.Entity
	srvs map[string]map[types.GID]*liveliness.Entity
	clis map[string]map[types.GID]*liveliness.Entity
	// 本地端点的事件钩子
	local map[types.GID]*events.Manager
}

// NewCache 创建图谱缓存
//
// notify 在每次图谱变更后于锁外调用，可为 nil。
func NewCache(domainID uint32, notify func()) *Cache {
	return &Cache{
		domainID: domainID,
		notify:   notify,
		nodes:    make(map[nodeKey]liveliness.NodeInfo),
		pubs:     make(map[string]map[types.GID]*liveliness.Entity),
		subs:     make(map[string]map[types.GID]*liveliness.Entity),
		srvs:     make(map[string]map[types.GID]*liveliness.Entity),
		clis:     make(map[string]map[types.GID]*liveliness.Entity),
		local:    make(map[types.GID]*events.Manager),
	}
}

// HandleSample 处理一条存活令牌样本
func (c *Cache) HandleSample(s types.Sample) {
	switch s.Kind {
	case types.SampleKindPut:
		c.ParsePut(s.Keyexpr)
	case types.SampleKindDelete:
		c.ParseDel(s.Keyexpr)
	}
}

// ============================================================================
//                              本地端点钩子
// ============================================================================

// RegisterLocalEndpoint 注册本地端点的事件钩子
//
// 必须在声明存活令牌之前调用：令牌经路由回环到达本会话时，缓存
// 靠钩子识别本地端点并补齐与既有对端的匹配事件。
func (c *Cache) RegisterLocalEndpoint(e *liveliness.Entity, mgr *events.Manager) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local[e.GID()] = mgr
}

// UnregisterLocalEndpoint 注销本地端点的事件钩子
//
// 在撤销存活令牌之前调用，端点销毁期间不再接收事件。
func (c *Cache) UnregisterLocalEndpoint(gid types.GID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.local, gid)
}

// ============================================================================
//                              令牌处理
// ============================================================================

// ParsePut 处理一个新出现的存活令牌
func (c *Cache) ParsePut(keyexpr string) {
	e, err := liveliness.ParseKeyexpr(keyexpr)
	if err != nil {
		logger.Warn("忽略无法解析的存活令牌", "keyexpr", keyexpr, "err", err)
		return
	}

	c.mu.Lock()
	var updates []statusUpdate
	key := nodeKey{e.SessionID(), e.NodeID()}

	if e.Kind() == types.EntityNode {
		c.nodes[key] = e.Node()
	} else {
		// 端点令牌先于节点令牌到达时补一条节点记录
		if _, ok := c.nodes[key]; !ok {
			c.nodes[key] = e.Node()
		}
		updates = c.insertEndpoint(e)
	}
	c.mu.Unlock()

	c.dispatch(updates)
}

// ParseDel 处理一个消失的存活令牌
func (c *Cache) ParseDel(keyexpr string) {
	e, err := liveliness.ParseKeyexpr(keyexpr)
	if err != nil {
		logger.Warn("忽略无法解析的存活令牌", "keyexpr", keyexpr, "err", err)
		return
	}

	c.mu.Lock()
	var updates []statusUpdate
	if e.Kind() == types.EntityNode {
		delete(c.nodes, nodeKey{e.SessionID(), e.NodeID()})
	} else {
		updates = c.removeEndpoint(e)
	}
	c.mu.Unlock()

	c.dispatch(updates)
}

// dispatch 上报事件并发出图谱变更通知，均在锁外
func (c *Cache) dispatch(updates []statusUpdate) {
	for _, u := range updates {
		if u.data != nil {
			u.mgr.UpdateStatusWithData(u.kind, u.delta, u.data)
		} else {
			u.mgr.UpdateStatus(u.kind, u.delta)
		}
	}
	if c.notify != nil {
		c.notify()
	}
}

// ============================================================================
//                              匹配
// ============================================================================

// endpointMap 返回该种类端点所在的主题表
func (c *Cache) endpointMap(kind types.EntityKind) map[string]map[types.GID]*liveliness.Entity {
	switch kind {
	case types.EntityPublisher:
		return c.pubs
	case types.EntitySubscription:
		return c.subs
	case types.EntityService:
		return c.srvs
	case types.EntityClient:
		return c.clis
	default:
		return nil
	}
}

// counterpartKind 返回与该端点配对的对端种类
func counterpartKind(kind types.EntityKind) types.EntityKind {
	switch kind {
	case types.EntityPublisher:
		return types.EntitySubscription
	case types.EntitySubscription:
		return types.EntityPublisher
	case types.EntityService:
		return types.EntityClient
	case types.EntityClient:
		return types.EntityService
	default:
		return types.EntityInvalid
	}
}

// insertEndpoint 登记端点并计算与既有对端的匹配事件，持锁调用
func (c *Cache) insertEndpoint(e *liveliness.Entity) []statusUpdate {
	topic, _ := e.Topic()
	m := c.endpointMap(e.Kind())
	byGID, ok := m[topic.Name]
	if !ok {
		byGID = make(map[types.GID]*liveliness.Entity)
		m[topic.Name] = byGID
	}
	// 历史回放与实时样本可能重复送达同一令牌
	if _, exists := byGID[e.GID()]; exists {
		return nil
	}
	byGID[e.GID()] = e

	var updates []statusUpdate
	for _, peer := range c.endpointMap(counterpartKind(e.Kind()))[topic.Name] {
		updates = append(updates, c.pairUpdates(e, peer)...)
	}
	return updates
}

// removeEndpoint 移除端点并计算匹配数回退事件，持锁调用
func (c *Cache) removeEndpoint(e *liveliness.Entity) []statusUpdate {
	topic, _ := e.Topic()
	byGID, ok := c.endpointMap(e.Kind())[topic.Name]
	if !ok {
		return nil
	}
	if _, exists := byGID[e.GID()]; !exists {
		return nil
	}
	delete(byGID, e.GID())
	if len(byGID) == 0 {
		delete(c.endpointMap(e.Kind()), topic.Name)
	}

	var updates []statusUpdate
	for _, peer := range c.endpointMap(counterpartKind(e.Kind()))[topic.Name] {
		updates = append(updates, c.unpairUpdates(e, peer)...)
	}
	return updates
}

// compatibleTypes 两个端点的类型是否互通
//
// 数据面键表达式包含类型与类型哈希，任一不同的端点收不到对方的
// 样本，因此匹配要求两者都相等。
func compatibleTypes(a, b liveliness.TopicInfo) bool {
	return a.Type == b.Type && a.TypeHash == b.TypeHash
}

// pairUpdates 计算端点 e 与对端 peer 配对产生的事件，持锁调用
//
// 匹配事件在两侧各报一次；QoS 告警与类型不一致只作为事件计数
// 上报（增量为零），不跟踪存量。
func (c *Cache) pairUpdates(e, peer *liveliness.Entity) []statusUpdate {
	var updates []statusUpdate
	eTopic, _ := e.Topic()
	peerTopic, _ := peer.Topic()
	eMgr := c.local[e.GID()]
	peerMgr := c.local[peer.GID()]
	if eMgr == nil && peerMgr == nil {
		return nil
	}

	if !compatibleTypes(eTopic, peerTopic) {
		if eMgr != nil {
			updates = append(updates, statusUpdate{
				mgr: eMgr, kind: incompatibleTypeKind(e.Kind()),
				data: typeMismatchReason(eTopic, peerTopic),
			})
		}
		if peerMgr != nil {
			updates = append(updates, statusUpdate{
				mgr: peerMgr, kind: incompatibleTypeKind(peer.Kind()),
				data: typeMismatchReason(peerTopic, eTopic),
			})
		}
		return updates
	}

	if eMgr != nil {
		updates = append(updates, statusUpdate{mgr: eMgr, kind: matchedKind(e.Kind()), delta: 1})
	}
	if peerMgr != nil {
		updates = append(updates, statusUpdate{mgr: peerMgr, kind: matchedKind(peer.Kind()), delta: 1})
	}

	updates = append(updates, c.qosUpdates(e, peer, eMgr, peerMgr)...)
	return updates
}

// unpairUpdates 计算端点 e 离开后对端的回退事件，持锁调用
func (c *Cache) unpairUpdates(e, peer *liveliness.Entity) []statusUpdate {
	eTopic, _ := e.Topic()
	peerTopic, _ := peer.Topic()
	if !compatibleTypes(eTopic, peerTopic) {
		return nil
	}
	peerMgr := c.local[peer.GID()]
	if peerMgr == nil {
		return nil
	}
	return []statusUpdate{{mgr: peerMgr, kind: matchedKind(peer.Kind()), delta: -1}}
}

// qosUpdates 计算发布订阅配对的 QoS 兼容事件，持锁调用
func (c *Cache) qosUpdates(e, peer *liveliness.Entity, eMgr, peerMgr *events.Manager) []statusUpdate {
	var pub, sub *liveliness.Entity
	var pubMgr, subMgr *events.Manager
	switch {
	case e.Kind() == types.EntityPublisher && peer.Kind() == types.EntitySubscription:
		pub, sub, pubMgr, subMgr = e, peer, eMgr, peerMgr
	case e.Kind() == types.EntitySubscription && peer.Kind() == types.EntityPublisher:
		pub, sub, pubMgr, subMgr = peer, e, peerMgr, eMgr
	default:
		// 服务与客户端不做 QoS 检查
		return nil
	}

	pubTopic, _ := pub.Topic()
	subTopic, _ := sub.Topic()
	compat, reason := qos.CheckCompatible(pubTopic.QoS, subTopic.QoS)
	if compat == types.CompatibilityOK {
		return nil
	}

	var updates []statusUpdate
	if subMgr != nil {
		updates = append(updates, statusUpdate{
			mgr: subMgr, kind: events.KindRequestedQoSIncompatible, data: []byte(reason),
		})
	}
	if pubMgr != nil {
		updates = append(updates, statusUpdate{
			mgr: pubMgr, kind: events.KindOfferedQoSIncompatible, data: []byte(reason),
		})
	}
	return updates
}

func matchedKind(kind types.EntityKind) events.Kind {
	if kind == types.EntityPublisher {
		return events.KindPublicationMatched
	}
	return events.KindSubscriptionMatched
}

func incompatibleTypeKind(kind types.EntityKind) events.Kind {
	if kind == types.EntityPublisher {
		return events.KindPublisherIncompatibleType
	}
	return events.KindSubscriptionIncompatibleType
}

func typeMismatchReason(own, remote liveliness.TopicInfo) []byte {
	return []byte(fmt.Sprintf("expected type %s (hash %q), discovered %s (hash %q)",
		own.Type, own.TypeHash, remote.Type, remote.TypeHash))
}
