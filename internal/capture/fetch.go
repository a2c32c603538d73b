// Package capture 直连拉取页面资源的内容。
//
// 拦截到的响应体不可用时（例如重定向后的样式表、已被缓存的脚本），
// 录制侧用这里的结果补齐条目。拉取失败不会返回错误，只返回空内容。
package capture

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"reqreplay/internal/logger"
	"reqreplay/pkg/traffic"
)

// maxBodyBytes 单个资源的读取上限
const maxBodyBytes = 32 << 20

// acceptEncoding 直连请求声明的可解码编码
const acceptEncoding = "gzip, deflate, zstd"

// skipHeaders 不转发的请求头
var skipHeaders = map[string]bool{
	"accept-encoding":   true,
	"connection":        true,
	"content-length":    true,
	"host":              true,
	"keep-alive":        true,
	"proxy-connection":  true,
	"te":                true,
	"trailer":           true,
	"transfer-encoding": true,
	"upgrade":           true,
}

// Result 拉取结果，失败时 Body 为空、Headers 为空映射
type Result struct {
	Body    string
	Headers map[string]string
}

// Fetcher 资源拉取器
type Fetcher struct {
	client *http.Client
	log    logger.Logger
}

// New 创建拉取器，timeout 为单次拉取的总超时
func New(timeout time.Duration, l logger.Logger) *Fetcher {
	if l == nil {
		l = logger.NewNop()
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DisableCompression:  true,
				MaxIdleConnsPerHost: 4,
			},
		},
		log: l,
	}
}

// Fetch 以 GET 拉取资源，headers 为原请求头（可为 nil）
func (f *Fetcher) Fetch(ctx context.Context, url string, headers traffic.Header) Result {
	empty := Result{Headers: map[string]string{}}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.log.Debug("构建资源请求失败", "url", url, "error", err)
		return empty
	}
	for k, v := range headers {
		if skipHeaders[strings.ToLower(k)] || strings.HasPrefix(k, ":") {
			continue
		}
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept-Encoding", acceptEncoding)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.log.Debug("拉取资源失败", "url", url, "error", err)
		return empty
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		f.log.Debug("读取资源内容失败", "url", url, "error", err)
		return empty
	}

	out := Result{Headers: make(map[string]string, len(resp.Header))}
	for k, vs := range resp.Header {
		out.Headers[strings.ToLower(k)] = strings.Join(vs, ", ")
	}
	body, decoded := Decode(raw, resp.Header.Get("Content-Encoding"))
	if decoded {
		if body == nil {
			f.log.Debug("资源内容解码失败", "url", url, "encoding", resp.Header.Get("Content-Encoding"))
			return empty
		}
		delete(out.Headers, "content-encoding")
		delete(out.Headers, "content-length")
	}
	out.Body = string(body)

	f.log.Debug("资源拉取完成", "url", url, "status", resp.StatusCode, "size", len(body), "duration", time.Since(start))
	return out
}
