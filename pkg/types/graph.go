package types

// ============================================================================
//                              图谱查询结果类型
// ============================================================================

// EndpointInfo 主题上一个端点（发布者或订阅者）的信息
type EndpointInfo struct {
	// NodeName 端点所属节点名
	NodeName string
	// NodeNamespace 端点所属节点命名空间
	NodeNamespace string
	// TopicType 端点声明的消息类型名
	TopicType string
	// TopicTypeHash 消息类型哈希（跨进程一致性校验）
	TopicTypeHash string
	// EndpointKind 端点种类（EntityPublisher 或 EntitySubscription）
	EndpointKind EntityKind
	// GID 端点 GID
	GID GID
	// QoS 端点声明的 QoS 配置
	QoS QoSProfile
}

// TopicNameAndTypes 一个主题名及其上出现过的全部类型名
type TopicNameAndTypes struct {
	// Name 主题名
	Name string
	// Types 类型名列表（去重、有序）
	Types []string
}

// NodeName 图中一个节点的名字与命名空间
type NodeName struct {
	// Name 节点名
	Name string
	// Namespace 命名空间
	Namespace string
	// Enclave 安全 enclave 名（未启用安全时为空）
	Enclave string
}
