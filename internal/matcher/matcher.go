// Package matcher 为一个实时请求在已录制条目中挑选应答条目。
//
// 匹配按以下顺序尝试，首个成功者胜出：
//  1. URL 与方法完全相同
//  2. 请求改写到条目所在源后完全相同（需要源分组）
//  3. 路径相同（源相同或分组连通），多个候选时按查询参数命中数打分
//  4. 参数化路由（路径段或查询值以 ":" 开头）
//
// 所有函数都是纯函数，候选顺序决定平局结果。
package matcher

import (
	"strings"

	"reqreplay/internal/origin"
	"reqreplay/pkg/model"
)

// Param 路由参数，Name 保留前导 ":"
type Param struct {
	Name  string
	Value string
}

// Params 按提取顺序排列的路由参数
type Params []Param

// Get 获取参数值
func (p Params) Get(name string) (string, bool) {
	for _, v := range p {
		if v.Name == name {
			return v.Value, true
		}
	}
	return "", false
}

// Map 转换为映射，便于序列化
func (p Params) Map() map[string]string {
	if p == nil {
		return nil
	}
	out := make(map[string]string, len(p))
	for _, v := range p {
		out[v.Name] = v.Value
	}
	return out
}

// set 同名参数覆盖原值并保留原位置
func (p Params) set(name, value string) Params {
	for i := range p {
		if p[i].Name == name {
			p[i].Value = value
			return p
		}
	}
	return append(p, Param{Name: name, Value: value})
}

// Result 匹配结果，Entry 指向候选切片中的元素
type Result struct {
	Entry  *model.Entry
	Index  int
	Params Params
}

// Match 返回最佳匹配条目；无匹配时返回 nil
func Match(rawURL, method string, entries []model.Entry, groups [][]string) *Result {
	if len(entries) == 0 {
		return nil
	}
	if r := exact(rawURL, method, entries); r != nil {
		return r
	}
	if len(groups) > 0 {
		if r := crossOriginExact(rawURL, method, entries, groups); r != nil {
			return r
		}
	}
	req, ok := origin.Parse(rawURL)
	if !ok {
		return nil
	}
	if r := samePath(req, method, entries, groups); r != nil {
		return r
	}
	return route(req, method, entries, groups)
}

func exact(rawURL, method string, entries []model.Entry) *Result {
	for i := range entries {
		if entries[i].URL == rawURL && entries[i].Method == method {
			return &Result{Entry: &entries[i], Index: i}
		}
	}
	return nil
}

func crossOriginExact(rawURL, method string, entries []model.Entry, groups [][]string) *Result {
	for i := range entries {
		e := &entries[i]
		if e.Method != method {
			continue
		}
		if rewritten, ok := origin.Rewrite(rawURL, e.URL, groups); ok && rewritten == e.URL {
			return &Result{Entry: e, Index: i}
		}
	}
	return nil
}

func samePath(req *origin.URL, method string, entries []model.Entry, groups [][]string) *Result {
	var candidates []int
	for i := range entries {
		e := &entries[i]
		if e.Method != method {
			continue
		}
		eu, ok := origin.Parse(e.URL)
		if !ok || eu.Path != req.Path {
			continue
		}
		if !origin.Equivalent(eu.Origin, req.Origin, groups) {
			continue
		}
		candidates = append(candidates, i)
	}
	switch len(candidates) {
	case 0:
		return nil
	case 1:
		return &Result{Entry: &entries[candidates[0]], Index: candidates[0]}
	}

	reqQuery := req.Query()
	best, bestScore := -1, -1
	for _, i := range candidates {
		score := Score(entries[i].URL, reqQuery)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return &Result{Entry: &entries[best], Index: best}
}

// Score 统计条目查询参数在请求中同键同值的个数
func Score(entryURL string, reqQuery origin.Query) int {
	eu, ok := origin.Parse(entryURL)
	if !ok {
		return 0
	}
	score := 0
	for _, p := range eu.Query() {
		if v, ok := reqQuery.Get(p.Key); ok && v == p.Value {
			score++
		}
	}
	return score
}

func route(req *origin.URL, method string, entries []model.Entry, groups [][]string) *Result {
	for i := range entries {
		e := &entries[i]
		if e.Method != method || !HasRouteParams(e.URL) {
			continue
		}
		if params := matchRoute(e.URL, req, groups); params != nil {
			return &Result{Entry: e, Index: i, Params: params}
		}
	}
	return nil
}

// HasRouteParams 判断 URL 是否包含路由占位符
func HasRouteParams(rawURL string) bool {
	u, ok := origin.Parse(rawURL)
	if !ok {
		return false
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if strings.HasPrefix(seg, ":") {
			return true
		}
	}
	for _, p := range u.Query() {
		if strings.HasPrefix(p.Value, ":") {
			return true
		}
	}
	return false
}

// MatchRoute 按路由模式匹配实际 URL，成功时返回提取的参数
func MatchRoute(patternURL, actualURL string, groups [][]string) Params {
	au, ok := origin.Parse(actualURL)
	if !ok {
		return nil
	}
	return matchRoute(patternURL, au, groups)
}

func matchRoute(patternURL string, au *origin.URL, groups [][]string) Params {
	pu, ok := origin.Parse(patternURL)
	if !ok || !origin.Equivalent(pu.Origin, au.Origin, groups) {
		return nil
	}
	pParts := strings.Split(pu.Path, "/")
	aParts := strings.Split(au.Path, "/")
	if len(pParts) != len(aParts) {
		return nil
	}
	params := Params{}
	for i, seg := range pParts {
		if strings.HasPrefix(seg, ":") {
			params = params.set(seg, aParts[i])
		} else if seg != aParts[i] {
			return nil
		}
	}
	actualQuery := au.Query()
	for _, p := range pu.Query() {
		v, ok := actualQuery.Get(p.Key)
		if !ok {
			return nil
		}
		if strings.HasPrefix(p.Value, ":") {
			params = params.set(p.Value, v)
		} else if v != p.Value {
			return nil
		}
	}
	return params
}
