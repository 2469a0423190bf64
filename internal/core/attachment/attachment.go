// Package attachment 实现样本附件的编解码
//
// 每条数据样本随附一段元数据：发送方的序列号、源时间戳与 GID。
// 订阅方靠它做丢失检测，客户端靠它做请求应答关联。附件独立于
// 载荷编码为 CBOR 映射，键名固定。
package attachment

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/robomesh/go-robomesh/pkg/types"
)

// Attachment 样本附件
type Attachment struct {
	// SequenceNumber 发送方维护的单调递增序列号，从 1 开始
	SequenceNumber int64

	// SourceTimestamp 发送时刻的本地时钟，纳秒
	SourceTimestamp int64

	// SourceGID 发送端点的全局标识
	SourceGID types.GID
}

// wireAttachment 线上表示，GID 按字节串编码
type wireAttachment struct {
	SequenceNumber  int64  `cbor:"sequence_number"`
	SourceTimestamp int64  `cbor:"source_timestamp"`
	SourceGID       []byte `cbor:"source_gid"`
}

// Encode 序列化附件
func Encode(a Attachment) ([]byte, error) {
	data, err := cbor.Marshal(wireAttachment{
		SequenceNumber:  a.SequenceNumber,
		SourceTimestamp: a.SourceTimestamp,
		SourceGID:       a.SourceGID.Bytes(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode attachment: %w", err)
	}
	return data, nil
}

// Decode 反序列化附件并校验各字段
func Decode(data []byte) (Attachment, error) {
	var w wireAttachment
	if err := cbor.Unmarshal(data, &w); err != nil {
		return Attachment{}, fmt.Errorf("decode attachment: %w", err)
	}

	gid, err := types.GIDFromBytes(w.SourceGID)
	if err != nil {
		return Attachment{}, fmt.Errorf("source_gid is not found in the attachment: %w", err)
	}
	if gid.IsEmpty() {
		return Attachment{}, fmt.Errorf("source_gid is not found in the attachment")
	}
	if w.SequenceNumber <= 0 {
		return Attachment{}, fmt.Errorf("sequence_number is not found in the attachment")
	}

	return Attachment{
		SequenceNumber:  w.SequenceNumber,
		SourceTimestamp: w.SourceTimestamp,
		SourceGID:       gid,
	}, nil
}
