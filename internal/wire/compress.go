package wire

import (
	"github.com/klauspost/compress/zstd"
)

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(1<<22))
)

// CompressBody zstd-compresses an encoded block body. Bodies carry
// coinbase and transaction output scripts that repeat the same address
// bytes across a block, which zstd collapses well.
func CompressBody(data []byte) []byte {
	return zstdEncoder.EncodeAll(data, nil)
}

// DecompressBody reverses CompressBody. Data not bearing the zstd magic
// bytes is returned unchanged, for forward compatibility with peers that
// send uncompressed bodies.
func DecompressBody(data []byte) ([]byte, error) {
	if len(data) < 4 || data[0] != 0x28 || data[1] != 0xB5 || data[2] != 0x2F || data[3] != 0xFD {
		return data, nil
	}
	return zstdDecoder.DecodeAll(data, nil)
}
