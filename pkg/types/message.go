package types

// ============================================================================
//                              Message - 消息
// ============================================================================

// MessageInfo 随消息一起交付的元信息
type MessageInfo struct {
	// SourceTimestamp 发布方打上的时间戳（Unix 纳秒）
	SourceTimestamp int64
	// ReceivedTimestamp 本地收到样本的时间戳（Unix 纳秒）
	ReceivedTimestamp int64
	// SequenceNumber 发布方的单调序列号
	SequenceNumber int64
	// PublisherGID 发布方 GID
	PublisherGID GID
}

// Message 从订阅队列取出的一条消息
type Message struct {
	// Payload 序列化后的消息体
	Payload []byte
	// Info 消息元信息
	Info MessageInfo
}

// ============================================================================
//                              Request / Response - 服务交互
// ============================================================================

// RequestID 标识一次服务请求
//
// 由客户端 GID 与客户端侧单调序列号组成，
// 服务端应答时原样带回用于关联。
type RequestID struct {
	// WriterGID 发起请求的客户端 GID
	WriterGID GID
	// SequenceNumber 客户端侧请求序列号
	SequenceNumber int64
}

// ServiceInfo 随请求/应答交付的元信息
type ServiceInfo struct {
	// RequestID 请求标识
	RequestID RequestID
	// SourceTimestamp 对端打上的时间戳（Unix 纳秒）
	SourceTimestamp int64
	// ReceivedTimestamp 本地收到的时间戳（Unix 纳秒）
	ReceivedTimestamp int64
}

// ServiceMessage 从服务端/客户端队列取出的一条请求或应答
type ServiceMessage struct {
	// Payload 序列化后的请求或应答体
	Payload []byte
	// Info 服务交互元信息
	Info ServiceInfo
}
