// Package ws 实现经 WebSocket 连接 robomeshd 路由器的传输
//
// 会话与路由器之间以二进制帧通信：帧首字节是压缩标志，其后是
// CBOR 编码的信封。超过压缩阈值的信封体用 zstd 压缩。声明类操作
// （订阅、存活令牌）携带请求序号并等待路由器应答，写入样本单向
// 发送。握手阶段客户端提交 enclave 与派生的认证密钥，路由器校验
// 通过后分配会话标识。
package ws

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"

	"github.com/robomesh/go-robomesh/pkg/lib/log"
)

var logger = log.Logger("transport/ws")

// 连接保活参数
const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// ============================================================================
// 信封
// ============================================================================

// opCode 信封操作码
type opCode uint8

const (
	// opHello 客户端握手，提交 enclave 与认证密钥
	opHello opCode = iota + 1
	// opWelcome 路由器握手应答，分配会话标识
	opWelcome
	// opPut 写入数据样本，单向
	opPut
	// opSubscribe 声明订阅（数据或存活），等待 opResult
	opSubscribe
	// opUnsubscribe 撤销订阅，单向
	opUnsubscribe
	// opDeclareToken 声明存活令牌，等待 opResult
	opDeclareToken
	// opUndeclareToken 撤销存活令牌，单向
	opUndeclareToken
	// opResult 声明类操作的应答
	opResult
	// opSample 路由器投递的样本
	opSample
)

// envelope 线上信封，未用字段省略编码
type envelope struct {
	Op         opCode `cbor:"op"`
	Req        int64  `cbor:"req,omitempty"`
	Sub        int64  `cbor:"sub,omitempty"`
	Keyexpr    string `cbor:"key,omitempty"`
	Payload    []byte `cbor:"payload,omitempty"`
	Attachment []byte `cbor:"attachment,omitempty"`
	Kind       int    `cbor:"kind,omitempty"`
	Timestamp  int64  `cbor:"ts,omitempty"`
	Liveliness bool   `cbor:"liveliness,omitempty"`
	History    bool   `cbor:"history,omitempty"`
	Session    string `cbor:"session,omitempty"`
	Enclave    string `cbor:"enclave,omitempty"`
	Auth       []byte `cbor:"auth,omitempty"`
	Err        string `cbor:"err,omitempty"`
}

// ============================================================================
// 帧编解码
// ============================================================================

// 帧首字节
const (
	frameRaw        byte = 0
	frameCompressed byte = 1
)

// 共享的 zstd 编解码器，避免逐帧初始化
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("ws: init zstd encoder: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("ws: init zstd decoder: " + err.Error())
	}
}

// encodeFrame 把信封编码为一帧
//
// threshold 大于零且信封体不小于该值时启用 zstd 压缩。
func encodeFrame(env *envelope, threshold int) ([]byte, error) {
	body, err := cbor.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	if threshold > 0 && len(body) >= threshold {
		return zstdEncoder.EncodeAll(body, []byte{frameCompressed}), nil
	}
	frame := make([]byte, 0, len(body)+1)
	frame = append(frame, frameRaw)
	return append(frame, body...), nil
}

// decodeFrame 解码一帧
//
// maxBytes 限制解压后的信封体大小，0 表示不限制。
func decodeFrame(frame []byte, maxBytes int) (*envelope, error) {
	if len(frame) < 1 {
		return nil, fmt.Errorf("decode frame: empty frame")
	}
	body := frame[1:]
	switch frame[0] {
	case frameRaw:
	case frameCompressed:
		var err error
		body, err = zstdDecoder.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("decode frame: zstd: %w", err)
		}
	default:
		return nil, fmt.Errorf("decode frame: unknown flag 0x%02x", frame[0])
	}
	if maxBytes > 0 && len(body) > maxBytes {
		return nil, fmt.Errorf("decode frame: body %d bytes exceeds limit %d", len(body), maxBytes)
	}
	var env envelope
	if err := cbor.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return &env, nil
}

// writeEnvelope 编码并写出一帧，调用方负责写侧互斥
func writeEnvelope(conn *websocket.Conn, env *envelope, threshold int, timeout time.Duration) error {
	frame, err := encodeFrame(env, threshold)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, frame)
}

// readEnvelope 读取并解码一帧
func readEnvelope(conn *websocket.Conn, maxBytes int) (*envelope, error) {
	kind, frame, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if kind != websocket.BinaryMessage {
		return nil, fmt.Errorf("decode frame: unexpected message type %d", kind)
	}
	return decodeFrame(frame, maxBytes)
}
