// Package filter 决定录制期间观察到的请求是否需要捕获。
package filter

import (
	"fmt"
	"strings"

	"reqreplay/pkg/model"
)

// IsIgnored 判断 URL 是否命中任一忽略规则。
// 形如 /body/flags 的规则按正则处理，编译失败或普通字符串按子串包含处理。
func IsIgnored(url string, patterns []string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if matchPattern(url, p) {
			return true
		}
	}
	return false
}

func matchPattern(url, pattern string) bool {
	if re, ok := ignoreRegexp(pattern); ok {
		return re.MatchString(url)
	}
	return strings.Contains(url, pattern)
}

// regexLiteral 将 /body/flags 转为 Go 正则表达式
func regexLiteral(pattern string) (string, bool) {
	if !strings.HasPrefix(pattern, "/") {
		return "", false
	}
	last := strings.LastIndex(pattern, "/")
	if last <= 0 {
		return "", false
	}
	body, flags := pattern[1:last], pattern[last+1:]
	goFlags, err := translateFlags(flags)
	if err != nil {
		return "", false
	}
	if goFlags != "" {
		body = "(?" + goFlags + ")" + body
	}
	return body, true
}

// translateFlags i/m/s 有对应的 Go 标志，g/y/u/d 对单次匹配无影响
func translateFlags(flags string) (string, error) {
	var out []byte
	seen := make(map[rune]bool, len(flags))
	for _, f := range flags {
		if seen[f] {
			return "", fmt.Errorf("重复的正则标志 %q", f)
		}
		seen[f] = true
		switch f {
		case 'i', 'm', 's':
			out = append(out, byte(f))
		case 'g', 'y', 'u', 'd':
		default:
			return "", fmt.Errorf("不支持的正则标志 %q", f)
		}
	}
	return string(out), nil
}

// SkipContentType 判断响应是否为不录制的二进制媒体类型
func SkipContentType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	for _, prefix := range []string{"image/", "video/", "audio/", "font/"} {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

// Accept 判断条目能否进入录制缓冲：先过忽略规则，再过类别过滤
func Accept(e model.Entry, filters []model.Kind, patterns []string) bool {
	if IsIgnored(e.URL, patterns) {
		return false
	}
	return HasKind(filters, e.Kind)
}

// HasKind 判断类别是否在过滤列表中
func HasKind(filters []model.Kind, k model.Kind) bool {
	for _, f := range filters {
		if f == k {
			return true
		}
	}
	return false
}
