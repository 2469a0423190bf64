// Package liveliness 实现图谱实体的存活宣告描述符
//
// 每个节点与端点在创建时声明一个存活令牌，令牌的键表达式编码了
// 实体的全部图谱信息：域、会话、节点、种类、QoS。远端只要订阅
// 管理空间就能重建完整图谱，不需要额外的发现协议。
//
// 键表达式布局（节点 9 段，端点 13 段）：
//
//	@robomesh_lv/<域>/<会话>/<节点序号>/<实体序号>/<种类>/<enclave>/<命名空间>/<节点名>
//	                                                  [/<主题>/<类型>/<类型哈希>/<QoS>]
//
// 段内不允许出现 '/'，名字中的 '/' 一律替换为 '%'。
package liveliness

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/robomesh/go-robomesh/pkg/types"
)

// AdminSpace 存活令牌键表达式的统一前缀
const AdminSpace = "@robomesh_lv"

// ErrInvalidKeyexpr 键表达式不符合存活令牌布局
var ErrInvalidKeyexpr = errors.New("invalid liveliness keyexpr")

// ============================================================================
//                              实体描述符
// ============================================================================

// NodeInfo 实体所属节点的信息
type NodeInfo struct {
	// DomainID 域标识，不同域的实体互不可见
	DomainID uint32
	// Namespace 节点命名空间，以 '/' 开头
	Namespace string
	// Name 节点名
	Name string
	// Enclave 安全 enclave 名，未启用安全时为空
	Enclave string
}

// TopicInfo 端点实体的主题信息
type TopicInfo struct {
	// Name 主题名或服务名，以 '/' 开头
	Name string
	// Type 消息类型名
	Type string
	// TypeHash 类型哈希，可为空
	TypeHash string
	// QoS 端点声明的 QoS 配置（已解析为具体值）
	QoS types.QoSProfile
}

// Entity 一个图谱实体的不可变描述符
//
// 构造时生成键表达式与 GID，之后只读。GID 由键表达式哈希得出，
// 因此本地与远端对同一实体算出的 GID 一致。
type Entity struct {
	sessionID string
	nodeID    int64
	entityID  int64
	kind      types.EntityKind
	node      NodeInfo
	topic     *TopicInfo
	keyexpr   string
	gid       types.GID
}

// NewNodeEntity 创建节点实体描述符
//
// 节点的实体序号就是节点序号。
func NewNodeEntity(sessionID string, nodeID int64, node NodeInfo) (*Entity, error) {
	return newEntity(sessionID, nodeID, nodeID, types.EntityNode, node, nil)
}

// NewEndpointEntity 创建端点实体描述符
func NewEndpointEntity(sessionID string, nodeID, entityID int64, kind types.EntityKind,
	node NodeInfo, topic TopicInfo) (*Entity, error) {
	switch kind {
	case types.EntityPublisher, types.EntitySubscription, types.EntityService, types.EntityClient:
	default:
		return nil, fmt.Errorf("entity kind %s is not an endpoint", kind)
	}
	return newEntity(sessionID, nodeID, entityID, kind, node, &topic)
}

func newEntity(sessionID string, nodeID, entityID int64, kind types.EntityKind,
	node NodeInfo, topic *TopicInfo) (*Entity, error) {
	if sessionID == "" || strings.ContainsRune(sessionID, '/') {
		return nil, fmt.Errorf("invalid session id %q", sessionID)
	}
	if node.Name == "" || strings.ContainsRune(node.Name, '/') {
		return nil, fmt.Errorf("invalid node name %q", node.Name)
	}
	if node.Namespace == "" {
		node.Namespace = "/"
	}
	if !strings.HasPrefix(node.Namespace, "/") {
		return nil, fmt.Errorf("node namespace %q must start with '/'", node.Namespace)
	}
	if topic != nil {
		if topic.Name == "" || topic.Type == "" {
			return nil, fmt.Errorf("endpoint %s/%s requires topic name and type", node.Namespace, node.Name)
		}
	}

	e := &Entity{
		sessionID: sessionID,
		nodeID:    nodeID,
		entityID:  entityID,
		kind:      kind,
		node:      node,
		topic:     topic,
	}
	e.keyexpr = e.buildKeyexpr()
	e.gid = gidFromKeyexpr(e.keyexpr)
	return e, nil
}

// SessionID 返回实体所属会话标识
func (e *Entity) SessionID() string { return e.sessionID }

// NodeID 返回实体所属节点在会话内的序号
func (e *Entity) NodeID() int64 { return e.nodeID }

// EntityID 返回实体在会话内的序号
func (e *Entity) EntityID() int64 { return e.entityID }

// Kind 返回实体种类
func (e *Entity) Kind() types.EntityKind { return e.kind }

// Node 返回实体所属节点信息
func (e *Entity) Node() NodeInfo { return e.node }

// Topic 返回端点实体的主题信息，节点实体返回 false
func (e *Entity) Topic() (TopicInfo, bool) {
	if e.topic == nil {
		return TopicInfo{}, false
	}
	return *e.topic, true
}

// Keyexpr 返回实体的存活令牌键表达式
func (e *Entity) Keyexpr() string { return e.keyexpr }

// GID 返回实体 GID
func (e *Entity) GID() types.GID { return e.gid }

// String 返回键表达式，便于日志输出
func (e *Entity) String() string { return e.keyexpr }

// gidFromKeyexpr 由键表达式哈希生成 GID
func gidFromKeyexpr(keyexpr string) types.GID {
	h1, h2 := murmur3.Sum128([]byte(keyexpr))
	var g types.GID
	binary.LittleEndian.PutUint64(g[:8], h1)
	binary.LittleEndian.PutUint64(g[8:], h2)
	return g
}
