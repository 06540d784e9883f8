package grpc

import (
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/grpc/encoding"
)

const (
	codecName      = "msgpack"
	compressorName = "zstd"
)

func init() {
	encoding.RegisterCodec(msgpackCodec{})
	encoding.RegisterCompressor(&zstdCompressor{})
}

// msgpackCodec carries the shard service messages as msgpack instead of protobuf.
type msgpackCodec struct{}

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

func (msgpackCodec) Name() string { return codecName }

// zstdCompressor implements grpc/encoding.Compressor for zstd.
type zstdCompressor struct{}

func (c *zstdCompressor) Name() string { return compressorName }

func (c *zstdCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func (c *zstdCompressor) Decompress(r io.Reader) (io.Reader, error) {
	// a single-threaded decoder starts no goroutines, so it needs no Close
	return zstd.NewReader(r, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(64<<20))
}
