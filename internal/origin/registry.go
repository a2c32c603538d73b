package origin

import (
	"reqreplay/pkg/model"
)

// Registry 源分组登记表
type Registry struct {
	groups []model.OriginGroup
}

// NewRegistry 基于分组列表创建登记表
func NewRegistry(groups []model.OriginGroup) *Registry { return &Registry{groups: groups} }

// Flatten 展开指定分组的映射并集，按分组登记顺序展开，不做跨分组传递闭包
func (r *Registry) Flatten(ids []model.OriginGroupID) [][]string {
	if len(ids) == 0 {
		return nil
	}
	want := make(map[model.OriginGroupID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out [][]string
	for _, g := range r.groups {
		if _, ok := want[g.ID]; !ok {
			continue
		}
		for _, m := range g.Mappings {
			out = append(out, append([]string(nil), m...))
		}
	}
	return out
}

// NormalizeMappings 规范化映射中的源，去重并丢弃少于两个源的映射
func NormalizeMappings(mappings [][]string) [][]string {
	out := make([][]string, 0, len(mappings))
	for _, m := range mappings {
		seen := make(map[string]struct{}, len(m))
		var set []string
		for _, o := range m {
			n := Normalize(o)
			if n == "" {
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			set = append(set, n)
		}
		if len(set) >= 2 {
			out = append(out, set)
		}
	}
	return out
}
