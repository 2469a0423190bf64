package types

// ============================================================================
//                              EntityKind - 实体种类
// ============================================================================

// EntityKind 图谱实体种类
type EntityKind int

const (
	// EntityInvalid 无效实体（零值哨兵）
	EntityInvalid EntityKind = iota
	// EntityNode 节点
	EntityNode
	// EntityPublisher 发布者
	EntityPublisher
	// EntitySubscription 订阅者
	EntitySubscription
	// EntityService 服务端
	EntityService
	// EntityClient 客户端
	EntityClient
)

// String 返回实体种类的字符串表示
func (k EntityKind) String() string {
	switch k {
	case EntityNode:
		return "node"
	case EntityPublisher:
		return "publisher"
	case EntitySubscription:
		return "subscription"
	case EntityService:
		return "service"
	case EntityClient:
		return "client"
	default:
		return "invalid"
	}
}

// Code 返回实体种类在存活键表达式中的两字母代号
func (k EntityKind) Code() string {
	switch k {
	case EntityNode:
		return "NN"
	case EntityPublisher:
		return "MP"
	case EntitySubscription:
		return "MS"
	case EntityService:
		return "SS"
	case EntityClient:
		return "SC"
	default:
		return ""
	}
}

// EntityKindFromCode 从两字母代号解析实体种类
func EntityKindFromCode(code string) EntityKind {
	switch code {
	case "NN":
		return EntityNode
	case "MP":
		return EntityPublisher
	case "MS":
		return EntitySubscription
	case "SS":
		return EntityService
	case "SC":
		return EntityClient
	default:
		return EntityInvalid
	}
}
