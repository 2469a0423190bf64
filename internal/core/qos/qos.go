// Package qos 实现 QoS 配置的默认值解析与兼容性检查
package qos

import (
	"fmt"

	"github.com/robomesh/go-robomesh/pkg/types"
)

// DefaultDepth 默认历史队列深度
//
// 过大的深度增加每进程内存占用，过小则容易在消费方短暂停顿时
// 丢消息；42 是两者之间的折中。
const DefaultDepth = 42

// ============================================================================
// 默认配置
// ============================================================================

// Default 返回传输默认 QoS 配置
//
// 发布方默认 TransientLocal，后加入的订阅方可以收到最近的历史样本。
func Default() types.QoSProfile {
	return types.QoSProfile{
		History:       types.HistoryKeepLast,
		Depth:         DefaultDepth,
		Reliability:   types.ReliabilityReliable,
		Durability:    types.DurabilityTransientLocal,
		Deadline:      types.DurationInfinite,
		Lifespan:      types.DurationInfinite,
		Liveliness:    types.LivelinessAutomatic,
		LeaseDuration: types.DurationInfinite,
	}
}

// ============================================================================
// 标记解析
// ============================================================================

// Adapt 将配置中的标记值解析为具体值
//
// SystemDefault/Unknown/BestAvailable 标记与零值时长均替换为传输
// 默认值。本传输对任意策略组合都能完成投递，因此 BestAvailable
// 不查询图中对端来收窄策略，直接取默认档。
func Adapt(p types.QoSProfile) types.QoSProfile {
	def := Default()

	switch p.History {
	case types.HistorySystemDefault, types.HistoryUnknown:
		p.History = def.History
	}
	if p.Depth == 0 {
		p.Depth = def.Depth
	}

	switch p.Reliability {
	case types.ReliabilitySystemDefault, types.ReliabilityUnknown, types.ReliabilityBestAvailable:
		p.Reliability = def.Reliability
	}

	switch p.Durability {
	case types.DurabilitySystemDefault, types.DurabilityUnknown, types.DurabilityBestAvailable:
		p.Durability = def.Durability
	}

	switch p.Liveliness {
	case types.LivelinessSystemDefault, types.LivelinessUnknown, types.LivelinessBestAvailable:
		p.Liveliness = def.Liveliness
	}

	if p.Deadline == types.DurationUnspecified {
		p.Deadline = def.Deadline
	}
	if p.Lifespan == types.DurationUnspecified {
		p.Lifespan = def.Lifespan
	}
	if p.LeaseDuration == types.DurationUnspecified {
		p.LeaseDuration = def.LeaseDuration
	}

	return p
}

// ============================================================================
// 兼容性检查
// ============================================================================

// CheckCompatible 检查发布方与订阅方 QoS 的兼容性
//
// 本传输对可靠性等策略没有硬性匹配要求，唯一的边界情况：
// TransientLocal 发布方在 Volatile 订阅方出现之前发布的样本不会
// 被该订阅方收到，后续样本不受影响，报告为 Warning。
func CheckCompatible(pub, sub types.QoSProfile) (types.QoSCompatibility, string) {
	if pub.Durability == types.DurabilityTransientLocal &&
		sub.Durability == types.DurabilityVolatile {
		return types.CompatibilityWarning,
			fmt.Sprintf("publisher durability is %s, but subscription durability is %s",
				pub.Durability, sub.Durability)
	}
	return types.CompatibilityOK, ""
}
