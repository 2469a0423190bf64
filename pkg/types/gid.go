package types

import (
	"errors"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// ============================================================================
//                              GID - 全局实体标识
// ============================================================================

// GIDSize GID 的字节长度
const GIDSize = 16

// GID 实体全局唯一标识符
//
// 每个发布者、订阅者、服务端、客户端在创建时分配一个 GID，
// 随附件（attachment）跟随每条消息传输，用于消息丢失检测与
// 请求/应答关联。
//
// 外部表示格式：
//   - String(): Base58 编码（keyexpr 片段、日志）
//   - ShortString(): Base58 前缀（日志简短标识）
type GID [GIDSize]byte

// EmptyGID 空 GID
var EmptyGID GID

// ErrInvalidGID 无效的 GID
var ErrInvalidGID = errors.New("invalid gid: must be 16-byte base58")

// NewGID 生成新的随机 GID
func NewGID() GID {
	return GID(uuid.New())
}

// String 返回 GID 的 Base58 字符串表示
func (g GID) String() string {
	if g.IsEmpty() {
		return ""
	}
	return base58.Encode(g[:])
}

// ShortString 返回 GID 的短字符串表示
//
// 格式：Base58 前 8 个字符，用于日志中的简短标识。
func (g GID) ShortString() string {
	s := g.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// Bytes 返回 GID 的字节切片副本
func (g GID) Bytes() []byte {
	b := make([]byte, GIDSize)
	copy(b, g[:])
	return b
}

// Equal 比较两个 GID 是否相等
func (g GID) Equal(other GID) bool {
	return g == other
}

// IsEmpty 检查 GID 是否为空
func (g GID) IsEmpty() bool {
	return g == EmptyGID
}

// GIDFromBytes 从字节切片创建 GID
func GIDFromBytes(b []byte) (GID, error) {
	if len(b) != GIDSize {
		return EmptyGID, ErrInvalidGID
	}
	var g GID
	copy(g[:], b)
	return g, nil
}

// ParseGID 从 Base58 字符串解析 GID
func ParseGID(s string) (GID, error) {
	if s == "" {
		return EmptyGID, ErrInvalidGID
	}
	b, err := base58.Decode(s)
	if err != nil {
		return EmptyGID, ErrInvalidGID
	}
	return GIDFromBytes(b)
}
