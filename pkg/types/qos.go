package types

import (
	"fmt"
	"math"
	"time"
)

// DurationInfinite 表示无限时长的 QoS 时间策略
const DurationInfinite = time.Duration(math.MaxInt64)

// DurationUnspecified 表示未指定的 QoS 时间策略（解析时替换为默认值）
const DurationUnspecified = time.Duration(0)

// ============================================================================
//                              Reliability - 可靠性策略
// ============================================================================

// Reliability 可靠性策略
type Reliability int

const (
	// ReliabilitySystemDefault 系统默认（创建时解析为具体值）
	ReliabilitySystemDefault Reliability = iota
	// ReliabilityReliable 可靠传输
	ReliabilityReliable
	// ReliabilityBestEffort 尽力而为
	ReliabilityBestEffort
	// ReliabilityBestAvailable 与图中对端兼容的最高档（创建时解析）
	ReliabilityBestAvailable
	// ReliabilityUnknown 未知
	ReliabilityUnknown
)

// String 返回可靠性策略的字符串表示
func (r Reliability) String() string {
	switch r {
	case ReliabilitySystemDefault:
		return "system_default"
	case ReliabilityReliable:
		return "reliable"
	case ReliabilityBestEffort:
		return "best_effort"
	case ReliabilityBestAvailable:
		return "best_available"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              Durability - 持久性策略
// ============================================================================

// Durability 持久性策略
type Durability int

const (
	// DurabilitySystemDefault 系统默认（创建时解析为具体值）
	DurabilitySystemDefault Durability = iota
	// DurabilityTransientLocal 发布方为后来者保留历史样本
	DurabilityTransientLocal
	// DurabilityVolatile 不保留历史样本
	DurabilityVolatile
	// DurabilityBestAvailable 与图中对端兼容的最高档（创建时解析）
	DurabilityBestAvailable
	// DurabilityUnknown 未知
	DurabilityUnknown
)

// String 返回持久性策略的字符串表示
func (d Durability) String() string {
	switch d {
	case DurabilitySystemDefault:
		return "system_default"
	case DurabilityTransientLocal:
		return "transient_local"
	case DurabilityVolatile:
		return "volatile"
	case DurabilityBestAvailable:
		return "best_available"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              History - 历史策略
// ============================================================================

// History 历史队列策略
type History int

const (
	// HistorySystemDefault 系统默认（创建时解析为具体值）
	HistorySystemDefault History = iota
	// HistoryKeepLast 仅保留最近 Depth 条
	HistoryKeepLast
	// HistoryKeepAll 保留全部（队列无界）
	HistoryKeepAll
	// HistoryUnknown 未知
	HistoryUnknown
)

// String 返回历史策略的字符串表示
func (h History) String() string {
	switch h {
	case HistorySystemDefault:
		return "system_default"
	case HistoryKeepLast:
		return "keep_last"
	case HistoryKeepAll:
		return "keep_all"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              Liveliness - 存活策略
// ============================================================================

// Liveliness 存活宣告策略
type Liveliness int

const (
	// LivelinessSystemDefault 系统默认（创建时解析为具体值）
	LivelinessSystemDefault Liveliness = iota
	// LivelinessAutomatic 由中间件自动宣告
	LivelinessAutomatic
	// LivelinessManualByTopic 由应用逐主题宣告
	LivelinessManualByTopic
	// LivelinessBestAvailable 与图中对端兼容的最高档（创建时解析）
	LivelinessBestAvailable
	// LivelinessUnknown 未知
	LivelinessUnknown
)

// String 返回存活策略的字符串表示
func (l Liveliness) String() string {
	switch l {
	case LivelinessSystemDefault:
		return "system_default"
	case LivelinessAutomatic:
		return "automatic"
	case LivelinessManualByTopic:
		return "manual_by_topic"
	case LivelinessBestAvailable:
		return "best_available"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              QoSProfile - QoS 配置
// ============================================================================

// QoSProfile 实体的 QoS 配置
//
// 零值表示全部取系统默认，实体创建时由 qos 包解析为具体值。
type QoSProfile struct {
	// History 历史队列策略
	History History
	// Depth KeepLast 时的队列深度；0 表示使用默认深度
	Depth int
	// Reliability 可靠性策略
	Reliability Reliability
	// Durability 持久性策略
	Durability Durability
	// Deadline 期望的样本间隔上限；0 表示未指定
	Deadline time.Duration
	// Lifespan 样本有效期；0 表示未指定
	Lifespan time.Duration
	// Liveliness 存活宣告策略
	Liveliness Liveliness
	// LeaseDuration 存活租约时长；0 表示未指定
	LeaseDuration time.Duration
}

// QoSCompatibility QoS 兼容性检查结论
type QoSCompatibility int

const (
	// CompatibilityOK 完全兼容
	CompatibilityOK QoSCompatibility = iota
	// CompatibilityWarning 可通信但存在边界情况
	CompatibilityWarning
	// CompatibilityError 无法通信
	CompatibilityError
)

// String 返回兼容性结论的字符串表示
func (c QoSCompatibility) String() string {
	switch c {
	case CompatibilityOK:
		return "ok"
	case CompatibilityWarning:
		return "warning"
	case CompatibilityError:
		return "error"
	default:
		return "unknown"
	}
}

// String 返回 QoS 配置的紧凑字符串表示
//
// 形如 "reliable/transient_local/keep_last:42"，用于日志与诊断。
func (p QoSProfile) String() string {
	return fmt.Sprintf("%s/%s/%s:%d", p.Reliability, p.Durability, p.History, p.Depth)
}
