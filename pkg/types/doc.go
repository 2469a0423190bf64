// Package types 定义 RoboMesh 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 robomesh 内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 职能
//
// pkg/types 的职能是定义 **Go 内部数据结构**：
//   - 模块间数据传递
//   - API 参数/返回值
//   - 枚举类型、状态记录、样本类型
//
// # 文件组织
//
// 实体与标识:
//   - gid.go      - GID 全局实体标识（16 字节，Base58 外部表示）
//   - entity.go   - EntityKind 实体种类枚举
//
// 事件类型:
//   - event.go    - EventKind 状态事件枚举, EventStatus 状态记录
//
// QoS 类型:
//   - qos.go      - Reliability/Durability/History/Liveliness 策略与 QoSProfile
//
// 消息类型:
//   - message.go  - Message, MessageInfo, RequestID, ServiceInfo
//   - sample.go   - Sample, SampleKind（传输层样本）
//
// 图谱类型:
//   - graph.go    - EndpointInfo, TopicNameAndTypes（图谱查询结果）
//
// # 设计原则
//
//  1. 不可变性：类型创建后尽量不可修改，使用值类型
//  2. 可比较性：GID 等标识类型可直接作为 map key
//  3. 零依赖：不依赖任何其他 robomesh 内部包（最底层）
package types
