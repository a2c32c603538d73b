package session

import (
	"slices"
	"strings"

	"github.com/go-analyze/bulk"

	"reqreplay/internal/origin"
	"reqreplay/pkg/model"
)

// SetFilters 设置录制类别，未知类别被丢弃
func (s State) SetFilters(filters []model.Kind) State {
	s.RecordFilters = validKinds(filters)
	return s
}

// AddIgnore 添加全局忽略规则
func (s State) AddIgnore(pattern string) State {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || slices.Contains(s.IgnorePatterns, pattern) {
		return s
	}
	s.IgnorePatterns = append(slices.Clone(s.IgnorePatterns), pattern)
	return s
}

// RemoveIgnore 移除全局忽略规则
func (s State) RemoveIgnore(pattern string) State {
	if !slices.Contains(s.IgnorePatterns, pattern) {
		return s
	}
	s.IgnorePatterns = bulk.SliceFilter(func(p string) bool { return p != pattern }, s.IgnorePatterns)
	return s
}

// AddRecordingIgnore 为录制添加忽略规则
func (s State) AddRecordingIgnore(id model.RecordingID, pattern string) State {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return s
	}
	return s.withRecording(id, func(r *model.Recording) bool {
		if slices.Contains(r.IgnorePatterns, pattern) {
			return false
		}
		r.IgnorePatterns = append(r.IgnorePatterns, pattern)
		return true
	})
}

// RemoveRecordingIgnore 移除录制的忽略规则
func (s State) RemoveRecordingIgnore(id model.RecordingID, pattern string) State {
	return s.withRecording(id, func(r *model.Recording) bool {
		if !slices.Contains(r.IgnorePatterns, pattern) {
			return false
		}
		r.IgnorePatterns = bulk.SliceFilter(func(p string) bool { return p != pattern }, r.IgnorePatterns)
		return true
	})
}

// AddOriginGroup 创建源分组
func (s State) AddOriginGroup(name string, mappings [][]string, env Env) (State, model.OriginGroupID) {
	g := model.OriginGroup{
		ID:       model.OriginGroupID(env.id()),
		Name:     strings.TrimSpace(name),
		Mappings: origin.NormalizeMappings(mappings),
	}
	s.OriginGroups = append(slices.Clone(s.OriginGroups), g)
	return s, g.ID
}

func (s State) groupIndex(id model.OriginGroupID) int {
	return slices.IndexFunc(s.OriginGroups, func(g model.OriginGroup) bool { return g.ID == id })
}

// UpdateOriginGroup 更新分组名称与映射
func (s State) UpdateOriginGroup(id model.OriginGroupID, name string, mappings [][]string) State {
	i := s.groupIndex(id)
	if i < 0 {
		return s
	}
	groups := slices.Clone(s.OriginGroups)
	g := groups[i].Clone()
	if name = strings.TrimSpace(name); name != "" {
		g.Name = name
	}
	if mappings != nil {
		g.Mappings = origin.NormalizeMappings(mappings)
	}
	groups[i] = g
	s.OriginGroups = groups
	return s
}

// DeleteOriginGroup 删除分组并从所有录制中移除对它的引用
func (s State) DeleteOriginGroup(id model.OriginGroupID) State {
	if s.groupIndex(id) < 0 {
		return s
	}
	s.OriginGroups = bulk.SliceFilter(func(g model.OriginGroup) bool { return g.ID != id }, s.OriginGroups)
	for _, r := range s.Recordings {
		if slices.Contains(r.OriginGroupIDs, id) {
			s = s.withRecording(r.ID, func(rec *model.Recording) bool {
				rec.OriginGroupIDs = bulk.SliceFilter(func(g model.OriginGroupID) bool { return g != id }, rec.OriginGroupIDs)
				return true
			})
		}
	}
	return s
}

// SetRecordingOriginGroups 设置录制可跨源匹配的分组，未知分组被丢弃
func (s State) SetRecordingOriginGroups(id model.RecordingID, ids []model.OriginGroupID) State {
	var kept []model.OriginGroupID
	for _, gid := range ids {
		if s.groupIndex(gid) >= 0 && !slices.Contains(kept, gid) {
			kept = append(kept, gid)
		}
	}
	return s.withRecording(id, func(r *model.Recording) bool {
		r.OriginGroupIDs = kept
		return true
	})
}

// ToggleSniff 切换嗅探；开启时清空日志并绑定目标，关闭时解除目标
func (s State) ToggleSniff(target model.TargetID) State {
	s.Sniffing = !s.Sniffing
	if s.Sniffing {
		s.Requests = nil
		s.SniffTarget = target
	} else {
		s.SniffTarget = ""
	}
	return s
}

// ClearRequests 清空嗅探日志
func (s State) ClearRequests() State {
	s.Requests = nil
	return s
}

func (s State) sniffs(target model.TargetID) bool {
	return s.Sniffing && (s.SniffTarget == "" || s.SniffTarget == target)
}

// RequestObserved 嗅探时记录请求
func (s State) RequestObserved(target model.TargetID, method, url, typ string, env Env) State {
	if !s.sniffs(target) {
		return s
	}
	reqs := s.Requests
	if len(reqs) >= maxObservedRequests {
		reqs = reqs[len(reqs)-maxObservedRequests+1:]
	}
	s.Requests = append(slices.Clone(reqs), model.ObservedRequest{
		Method: method,
		URL:    url,
		Type:   typ,
		Time:   env.now(),
	})
	return s
}

// RequestCompleted 为同 URL 且尚无状态码的日志记录补上状态码
func (s State) RequestCompleted(target model.TargetID, url string, status int) State {
	if !s.sniffs(target) {
		return s
	}
	var reqs []model.ObservedRequest
	for i, r := range s.Requests {
		if r.URL != url || r.Status != 0 {
			continue
		}
		if reqs == nil {
			reqs = slices.Clone(s.Requests)
		}
		reqs[i].Status = status
	}
	if reqs != nil {
		s.Requests = reqs
	}
	return s
}
