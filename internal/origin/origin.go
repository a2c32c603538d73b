// Package origin 解析请求 URL 的源信息，并判断两个源是否在同一源分组内等价。
package origin

import (
	"net/url"
	"strings"
)

// URL 匹配所需的绝对 URL 组成部分
type URL struct {
	Origin   string
	Path     string
	Search   string // 含前导 "?"，无查询时为空
	Hash     string // 含前导 "#"，无片段时为空
	RawQuery string
}

// Pair 有序查询参数
type Pair struct {
	Key   string
	Value string
}

// Query 保持原始顺序的查询参数列表
type Query []Pair

// Get 返回第一个同名参数的值
func (q Query) Get(key string) (string, bool) {
	for _, p := range q {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Has 判断参数是否存在
func (q Query) Has(key string) bool {
	_, ok := q.Get(key)
	return ok
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
}

// Parse 解析绝对 URL；相对路径或无法解析的字符串返回 false
func Parse(raw string) (*URL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" || u.Opaque != "" {
		return nil, false
	}
	out := &URL{
		Origin:   originOf(u),
		Path:     u.EscapedPath(),
		RawQuery: u.RawQuery,
	}
	if out.Path == "" {
		out.Path = "/"
	}
	if u.RawQuery != "" {
		out.Search = "?" + u.RawQuery
	}
	if frag := u.EscapedFragment(); frag != "" {
		out.Hash = "#" + frag
	}
	return out, true
}

// Query 按出现顺序解析查询参数
func (u *URL) Query() Query {
	return ParseQuery(u.RawQuery)
}

// Tail 返回路径、查询与片段，用于改写到另一个源
func (u *URL) Tail() string {
	return u.Path + u.Search + u.Hash
}

func originOf(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	port := u.Port()
	if port != "" && defaultPorts[scheme] != port {
		host += ":" + port
	}
	return scheme + "://" + host
}

// Of 返回 URL 的源，无法解析时返回空串
func Of(raw string) string {
	u, ok := Parse(raw)
	if !ok {
		return ""
	}
	return u.Origin
}

// Normalize 规范化用户输入的源（大小写、默认端口、结尾斜杠）
func Normalize(raw string) string {
	if o := Of(raw); o != "" {
		return o
	}
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(raw)), "/")
}

// ParseQuery 按 URLSearchParams 的规则解析查询串，解码失败时保留原文
func ParseQuery(raw string) Query {
	if raw == "" {
		return nil
	}
	var out Query
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		out = append(out, Pair{Key: decode(k), Value: decode(v)})
	}
	return out
}

func decode(s string) string {
	if d, err := url.QueryUnescape(s); err == nil {
		return d
	}
	return strings.ReplaceAll(s, "+", " ")
}

// Connected 判断两个不同的源是否出现在同一个分组中
func Connected(a, b string, groups [][]string) bool {
	if a == "" || b == "" || a == b {
		return false
	}
	for _, g := range groups {
		var hasA, hasB bool
		for _, o := range g {
			switch Normalize(o) {
			case a:
				hasA = true
			case b:
				hasB = true
			}
		}
		if hasA && hasB {
			return true
		}
	}
	return false
}

// Equivalent 源相同或通过分组连通
func Equivalent(a, b string, groups [][]string) bool {
	if a == "" || b == "" {
		return false
	}
	return a == b || Connected(a, b, groups)
}

// Rewrite 将请求 URL 改写到条目所在的源；源相同或不连通时返回 false
func Rewrite(requestURL, entryURL string, groups [][]string) (string, bool) {
	if len(groups) == 0 {
		return "", false
	}
	req, ok := Parse(requestURL)
	if !ok {
		return "", false
	}
	entryOrigin := Of(entryURL)
	if !Connected(req.Origin, entryOrigin, groups) {
		return "", false
	}
	return entryOrigin + req.Tail(), true
}
