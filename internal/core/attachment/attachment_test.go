package attachment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robomesh/go-robomesh/pkg/types"
)

// TestEncodeDecode 编码后解码得到同一附件
func TestEncodeDecode(t *testing.T) {
	in := Attachment{
		SequenceNumber:  7,
		SourceTimestamp: time.Now().UnixNano(),
		SourceGID:       types.NewGID(),
	}

	data, err := Encode(in)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

// TestDecodeRejectsGarbage 非 CBOR 输入报错
func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not cbor"))
	assert.Error(t, err)
}

// TestDecodeRejectsMissingFields 缺字段的映射报错
func TestDecodeRejectsMissingFields(t *testing.T) {
	// 只带序列号，缺 source_gid
	data, err := Encode(Attachment{SequenceNumber: 1})
	require.NoError(t, err)

	_, err = Decode(data)
	assert.ErrorContains(t, err, "source_gid")
}

// TestDecodeRejectsZeroSequence 序列号从 1 开始，0 视为缺失
func TestDecodeRejectsZeroSequence(t *testing.T) {
	data, err := Encode(Attachment{SourceGID: types.NewGID()})
	require.NoError(t, err)

	_, err = Decode(data)
	assert.ErrorContains(t, err, "sequence_number")
}
