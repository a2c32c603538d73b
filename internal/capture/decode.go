package capture

import (
	"bytes"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

const (
	encodingGzip    = "gzip"
	encodingDeflate = "deflate"
	encodingZstd    = "zstd"
)

// normalizeEncoding 规范化 Content-Encoding，多重编码视为不支持
func normalizeEncoding(encoding string) (string, bool) {
	encoding = strings.TrimSpace(strings.ToLower(encoding))
	if strings.Contains(encoding, ",") {
		return "", false
	}
	switch encoding {
	case encodingGzip, "x-gzip":
		return encodingGzip, true
	case encodingDeflate, encodingZstd:
		return encoding, true
	default:
		return encoding, false
	}
}

// Decode 按 Content-Encoding 解码内容。
// 返回 decoded=false 表示未压缩或编码不支持，原样返回数据；
// decoded=true 且结果为 nil 表示解码失败。
func Decode(data []byte, encoding string) ([]byte, bool) {
	normalized, ok := normalizeEncoding(encoding)
	if !ok {
		return data, false
	}

	var (
		out []byte
		err error
	)
	switch normalized {
	case encodingGzip:
		out, err = readGzip(data)
	case encodingDeflate:
		// deflate 可能是裸流也可能带 zlib 头
		if out, err = readAllClose(flate.NewReader(bytes.NewReader(data))); err != nil {
			out, err = readZlib(data)
		}
	case encodingZstd:
		out, err = readZstd(data)
	}
	if err != nil {
		return nil, true
	}
	return out, true
}

func readGzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return readAllClose(r)
}

func readZlib(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return readAllClose(r)
}

func readZstd(data []byte) ([]byte, error) {
	d, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	return d.DecodeAll(data, nil)
}

func readAllClose(r io.ReadCloser) ([]byte, error) {
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}
