package events

import "github.com/robomesh/go-robomesh/pkg/types"

// ============================================================================
// Kind - 稠密事件索引
// ============================================================================

// Kind 事件种类的稠密索引
//
// 作为固定长度事件表的直接下标使用（0..kindCount-1），
// 0 为无效哨兵。公共 API 的 types.EventKind 经 FromEventKind
// 映射到本类型；不支持的种类映射为 KindInvalid。
type Kind int

const (
	// KindInvalid 无效种类（零值哨兵，占据下标 0）
	KindInvalid Kind = iota

	// ──── 订阅侧 ────

	// KindRequestedQoSIncompatible 请求的 QoS 不兼容
	KindRequestedQoSIncompatible
	// KindMessageLost 消息丢失
	KindMessageLost
	// KindSubscriptionIncompatibleType 订阅侧类型不一致
	KindSubscriptionIncompatibleType
	// KindSubscriptionMatched 订阅匹配数变化
	KindSubscriptionMatched

	// ──── 发布侧 ────

	// KindOfferedQoSIncompatible 提供的 QoS 不兼容
	KindOfferedQoSIncompatible
	// KindPublisherIncompatibleType 发布侧类型不一致
	KindPublisherIncompatibleType
	// KindPublicationMatched 发布匹配数变化
	KindPublicationMatched

	// kindCount 事件表长度
	kindCount
)

// Valid 返回索引是否落在有效范围内
func (k Kind) Valid() bool {
	return k > KindInvalid && k < kindCount
}

// String 返回事件种类的字符串表示
func (k Kind) String() string {
	switch k {
	case KindRequestedQoSIncompatible:
		return "requested_qos_incompatible"
	case KindMessageLost:
		return "message_lost"
	case KindSubscriptionIncompatibleType:
		return "subscription_incompatible_type"
	case KindSubscriptionMatched:
		return "subscription_matched"
	case KindOfferedQoSIncompatible:
		return "offered_qos_incompatible"
	case KindPublisherIncompatibleType:
		return "publisher_incompatible_type"
	case KindPublicationMatched:
		return "publication_matched"
	default:
		return "invalid"
	}
}

// FromEventKind 将公共事件种类映射为稠密索引
//
// 本传输不支持的 DDS 事件（liveliness、deadline 类）与未知值
// 均映射为 KindInvalid，由调用方换为不支持错误。
func FromEventKind(k types.EventKind) Kind {
	switch k {
	case types.EventRequestedQoSIncompatible:
		return KindRequestedQoSIncompatible
	case types.EventMessageLost:
		return KindMessageLost
	case types.EventSubscriptionIncompatibleType:
		return KindSubscriptionIncompatibleType
	case types.EventSubscriptionMatched:
		return KindSubscriptionMatched
	case types.EventOfferedQoSIncompatible:
		return KindOfferedQoSIncompatible
	case types.EventPublisherIncompatibleType:
		return KindPublisherIncompatibleType
	case types.EventPublicationMatched:
		return KindPublicationMatched
	default:
		return KindInvalid
	}
}
