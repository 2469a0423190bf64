package types

// ============================================================================
//                              Sample - 传输层样本
// ============================================================================

// SampleKind 样本种类
type SampleKind int

const (
	// SampleKindPut 写入样本
	SampleKindPut SampleKind = iota
	// SampleKindDelete 删除样本（存活令牌失效等）
	SampleKindDelete
)

// String 返回样本种类的字符串表示
func (k SampleKind) String() string {
	switch k {
	case SampleKindPut:
		return "put"
	case SampleKindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Sample 传输层交付给订阅者的一条样本
//
// Payload 与 Attachment 的所有权随样本转移，回调方可以持有。
type Sample struct {
	// Keyexpr 样本实际命中的键表达式
	Keyexpr string
	// Payload 样本负载
	Payload []byte
	// Attachment 随样本携带的附件（可为空）
	Attachment []byte
	// Kind 样本种类
	Kind SampleKind
	// Timestamp 传输层打上的时间戳（Unix 纳秒）
	Timestamp int64
}
