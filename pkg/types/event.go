package types

// ============================================================================
//                              EventKind - 状态事件种类
// ============================================================================

// EventKind 实体状态事件种类
//
// 订阅侧事件与发布侧事件各自独立计数。部分 DDS 规范中的事件
// （liveliness、deadline 类）在本传输上没有对应语义，创建时
// 会返回不支持错误。
type EventKind int

const (
	// EventInvalid 无效事件（零值哨兵）
	EventInvalid EventKind = iota

	// ──── 订阅侧事件 ────

	// EventRequestedQoSIncompatible 订阅请求的 QoS 与发布方提供的不兼容
	EventRequestedQoSIncompatible
	// EventMessageLost 检测到消息丢失（序列号出现空洞）
	EventMessageLost
	// EventSubscriptionIncompatibleType 发现同主题上类型不一致的发布方
	EventSubscriptionIncompatibleType
	// EventSubscriptionMatched 订阅的匹配发布方数量发生变化
	EventSubscriptionMatched

	// ──── 发布侧事件 ────

	// EventOfferedQoSIncompatible 发布提供的 QoS 与订阅方请求的不兼容
	EventOfferedQoSIncompatible
	// EventPublisherIncompatibleType 发现同主题上类型不一致的订阅方
	EventPublisherIncompatibleType
	// EventPublicationMatched 发布的匹配订阅方数量发生变化
	EventPublicationMatched

	// ──── 本传输不支持的 DDS 事件 ────

	// EventLivelinessChanged 存活状态变化（不支持）
	EventLivelinessChanged
	// EventRequestedDeadlineMissed 订阅侧 deadline 未满足（不支持）
	EventRequestedDeadlineMissed
	// EventLivelinessLost 存活丢失（不支持）
	EventLivelinessLost
	// EventOfferedDeadlineMissed 发布侧 deadline 未满足（不支持）
	EventOfferedDeadlineMissed
)

// String 返回事件种类的字符串表示
func (k EventKind) String() string {
	switch k {
	case EventRequestedQoSIncompatible:
		return "requested_qos_incompatible"
	case EventMessageLost:
		return "message_lost"
	case EventSubscriptionIncompatibleType:
		return "subscription_incompatible_type"
	case EventSubscriptionMatched:
		return "subscription_matched"
	case EventOfferedQoSIncompatible:
		return "offered_qos_incompatible"
	case EventPublisherIncompatibleType:
		return "publisher_incompatible_type"
	case EventPublicationMatched:
		return "publication_matched"
	case EventLivelinessChanged:
		return "liveliness_changed"
	case EventRequestedDeadlineMissed:
		return "requested_deadline_missed"
	case EventLivelinessLost:
		return "liveliness_lost"
	case EventOfferedDeadlineMissed:
		return "offered_deadline_missed"
	default:
		return "invalid"
	}
}

// IsSubscriptionEvent 返回该事件是否属于订阅侧
func (k EventKind) IsSubscriptionEvent() bool {
	switch k {
	case EventRequestedQoSIncompatible, EventMessageLost,
		EventSubscriptionIncompatibleType, EventSubscriptionMatched,
		EventLivelinessChanged, EventRequestedDeadlineMissed:
		return true
	default:
		return false
	}
}

// IsPublisherEvent 返回该事件是否属于发布侧
func (k EventKind) IsPublisherEvent() bool {
	switch k {
	case EventOfferedQoSIncompatible, EventPublisherIncompatibleType,
		EventPublicationMatched, EventLivelinessLost, EventOfferedDeadlineMissed:
		return true
	default:
		return false
	}
}

// ============================================================================
//                              EventStatus - 状态记录
// ============================================================================

// EventStatus 单个实体上单种事件的状态记录
//
// TotalCount 单调不减；TakeEventStatus 读取后两个 *Change 字段归零、
// Changed 清为 false，直到下一次更新。
type EventStatus struct {
	// TotalCount 历史累计发生次数
	TotalCount uint64
	// TotalCountChange 自上次读取以来的发生次数
	TotalCountChange uint64
	// CurrentCount 当前水平值（如当前匹配的对端数量）
	CurrentCount uint64
	// CurrentCountChange 自上次读取以来的水平增量（有符号）
	CurrentCountChange int64
	// Data 部分事件种类携带的附加细节（序列化负载）
	Data []byte
	// Changed 自上次读取以来是否有任何字段变化
	Changed bool
}
