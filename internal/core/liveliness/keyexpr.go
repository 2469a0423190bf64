package liveliness

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robomesh/go-robomesh/pkg/types"
)

// 节点令牌与端点令牌的段数（含前缀段）
const (
	nodeTokenSegments     = 9
	endpointTokenSegments = 13
)

// AdminKeyexpr 返回订阅一个域内全部存活令牌的键表达式
func AdminKeyexpr(domainID uint32) string {
	return fmt.Sprintf("%s/%d/**", AdminSpace, domainID)
}

// TopicKeyexpr 返回主题数据面的键表达式
//
// 形如 <域>/<主题>/<类型>/<类型哈希>，各段做名字替换。类型哈希
// 参与键表达式，类型定义不一致的两端不会互通数据。
func TopicKeyexpr(domainID uint32, info TopicInfo) string {
	return fmt.Sprintf("%d/%s/%s/%s",
		domainID, mangle(info.Name), mangle(info.Type), mangle(info.TypeHash))
}

// ============================================================================
//                              键表达式生成与解析
// ============================================================================

func (e *Entity) buildKeyexpr() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%d/%s/%d/%d/%s/%s/%s/%s",
		AdminSpace,
		e.node.DomainID,
		e.sessionID,
		e.nodeID,
		e.entityID,
		e.kind.Code(),
		mangle(e.node.Enclave),
		mangle(e.node.Namespace),
		mangle(e.node.Name),
	)
	if e.topic != nil {
		fmt.Fprintf(&b, "/%s/%s/%s/%s",
			mangle(e.topic.Name),
			mangle(e.topic.Type),
			mangle(e.topic.TypeHash),
			qosToSegment(e.topic.QoS),
		)
	}
	return b.String()
}

// ParseKeyexpr 从存活令牌键表达式还原实体描述符
func ParseKeyexpr(keyexpr string) (*Entity, error) {
	parts := strings.Split(keyexpr, "/")
	if len(parts) != nodeTokenSegments && len(parts) != endpointTokenSegments {
		return nil, fmt.Errorf("%w: %q has %d segments", ErrInvalidKeyexpr, keyexpr, len(parts))
	}
	if parts[0] != AdminSpace {
		return nil, fmt.Errorf("%w: %q is outside the admin space", ErrInvalidKeyexpr, keyexpr)
	}

	domainID, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: domain %q: %v", ErrInvalidKeyexpr, parts[1], err)
	}
	nodeID, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: node id %q: %v", ErrInvalidKeyexpr, parts[3], err)
	}
	entityID, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: entity id %q: %v", ErrInvalidKeyexpr, parts[4], err)
	}
	kind := types.EntityKindFromCode(parts[5])
	if kind == types.EntityInvalid {
		return nil, fmt.Errorf("%w: unknown entity kind %q", ErrInvalidKeyexpr, parts[5])
	}
	if kind == types.EntityNode && len(parts) != nodeTokenSegments {
		return nil, fmt.Errorf("%w: node token with topic segments", ErrInvalidKeyexpr)
	}
	if kind != types.EntityNode && len(parts) != endpointTokenSegments {
		return nil, fmt.Errorf("%w: endpoint token without topic segments", ErrInvalidKeyexpr)
	}

	node := NodeInfo{
		DomainID:  uint32(domainID),
		Enclave:   demangle(parts[6]),
		Namespace: demangleNamespace(parts[7]),
		Name:      demangle(parts[8]),
	}

	var topic *TopicInfo
	if len(parts) == endpointTokenSegments {
		qos, err := qosFromSegment(parts[12])
		if err != nil {
			return nil, fmt.Errorf("%w: qos %q: %v", ErrInvalidKeyexpr, parts[12], err)
		}
		topic = &TopicInfo{
			Name:     demangle(parts[9]),
			Type:     demangle(parts[10]),
			TypeHash: demangle(parts[11]),
			QoS:      qos,
		}
	}

	e, err := newEntity(parts[2], nodeID, entityID, kind, node, topic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyexpr, err)
	}
	return e, nil
}

// ============================================================================
//                              名字替换
// ============================================================================

// mangle 将名字编码为单个键表达式段
//
// '/' 替换为 '%'，空串用 "%" 占位（段不允许为空）。
func mangle(name string) string {
	if name == "" {
		return "%"
	}
	return strings.ReplaceAll(name, "/", "%")
}

// demangle 还原名字，"%" 占位还原为空串
func demangle(segment string) string {
	if segment == "%" {
		return ""
	}
	return strings.ReplaceAll(segment, "%", "/")
}

// demangleNamespace 还原命名空间
//
// 命名空间永远以 '/' 开头，"%" 是根命名空间而不是空串。
func demangleNamespace(segment string) string {
	return strings.ReplaceAll(segment, "%", "/")
}

// ============================================================================
//                              QoS 段编解码
// ============================================================================

// qosToSegment 将 QoS 配置编码为单个键表达式段
//
// 8 个十进制数用逗号连接，依次为可靠性、持久性、历史、深度、
// 期限、寿命、存活、租约。数字取值与 pkg/types 的枚举一致。
func qosToSegment(p types.QoSProfile) string {
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d,%d,%d",
		p.Reliability, p.Durability, p.History, p.Depth,
		int64(p.Deadline), int64(p.Lifespan), p.Liveliness, int64(p.LeaseDuration))
}

func qosFromSegment(segment string) (types.QoSProfile, error) {
	parts := strings.Split(segment, ",")
	if len(parts) != 8 {
		return types.QoSProfile{}, fmt.Errorf("expected 8 fields, got %d", len(parts))
	}
	vals := make([]int64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return types.QoSProfile{}, err
		}
		vals[i] = v
	}
	return types.QoSProfile{
		Reliability:   types.Reliability(vals[0]),
		Durability:    types.Durability(vals[1]),
		History:       types.History(vals[2]),
		Depth:         int(vals[3]),
		Deadline:      time.Duration(vals[4]),
		Lifespan:      time.Duration(vals[5]),
		Liveliness:    types.Liveliness(vals[6]),
		LeaseDuration: time.Duration(vals[7]),
	}, nil
}
