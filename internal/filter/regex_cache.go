package filter

import (
	"regexp"
	"sync"
)

// ignoreRegexps 以原始忽略规则为键缓存编译结果；nil 表示按子串匹配
var ignoreRegexps sync.Map

// ignoreRegexp 返回 /body/flags 形式规则编译后的正则，非正则或无法编译时返回 false
func ignoreRegexp(pattern string) (*regexp.Regexp, bool) {
	if v, ok := ignoreRegexps.Load(pattern); ok {
		re := v.(*regexp.Regexp)
		return re, re != nil
	}
	var re *regexp.Regexp
	if expr, ok := regexLiteral(pattern); ok {
		re, _ = regexp.Compile(expr)
	}
	ignoreRegexps.Store(pattern, re)
	return re, re != nil
}
