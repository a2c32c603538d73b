// Package session 维护录制/回放/嗅探三个相互独立的状态轴。
//
// State 是不可变值：每个操作接收旧状态返回新状态，从不修改旧状态可见的切片或映射，
// 因此任意时刻取得的快照都可以安全地被并发读取。Manager 负责串行化命令、持久化与事件通知。
package session

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"reqreplay/internal/filter"
	"reqreplay/internal/origin"
	"reqreplay/pkg/model"
)

// ErrRecordingNotFound 录制不存在
var ErrRecordingNotFound = errors.New("recording not found")

// maxObservedRequests 嗅探日志保留的最大条数
const maxObservedRequests = 2000

// State 会话状态
type State struct {
	Sniffing    bool
	SniffTarget model.TargetID // 为空表示所有目标
	Requests    []model.ObservedRequest

	Recording       bool
	RecordTab       model.TargetID
	RecordSourceURL string
	RecordInto      model.RecordingID // 为空表示录制到新的缓冲区
	RecordEntries   []model.Entry
	RecordFilters   []model.Kind
	IgnorePatterns  []string

	ActiveReplays  map[model.RecordingID]model.TargetID
	ReplayHitCount int

	Recordings   []model.Recording
	OriginGroups []model.OriginGroup
}

// NewState 创建初始状态
func NewState() State {
	return State{
		RecordFilters: model.DefaultRecordFilters(),
		ActiveReplays: make(map[model.RecordingID]model.TargetID),
	}
}

// Env 状态转换依赖的时钟与 ID 生成器
type Env struct {
	Now   func() time.Time
	NewID func() string
}

// DefaultEnv 使用系统时钟与 UUIDv7
func DefaultEnv() Env {
	return Env{Now: time.Now, NewID: newID}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (e Env) now() int64 {
	if e.Now == nil {
		return time.Now().UnixMilli()
	}
	return e.Now().UnixMilli()
}

func (e Env) id() string {
	if e.NewID == nil {
		return newID()
	}
	return e.NewID()
}

func (s State) indexOf(id model.RecordingID) int {
	return slices.IndexFunc(s.Recordings, func(r model.Recording) bool { return r.ID == id })
}

// GetRecording 返回录制的独立副本
func (s State) GetRecording(id model.RecordingID) (model.Recording, bool) {
	i := s.indexOf(id)
	if i < 0 {
		return model.Recording{}, false
	}
	return s.Recordings[i].Clone(), true
}

// withRecording 在录制副本上执行 fn，fn 返回 false 时状态保持不变
func (s State) withRecording(id model.RecordingID, fn func(r *model.Recording) bool) State {
	i := s.indexOf(id)
	if i < 0 {
		return s
	}
	rec := s.Recordings[i].Clone()
	if !fn(&rec) {
		return s
	}
	recs := slices.Clone(s.Recordings)
	recs[i] = rec
	s.Recordings = recs
	return s
}

// withEntry 在条目副本上执行 fn，越界时状态保持不变
func (s State) withEntry(id model.RecordingID, index int, fn func(e *model.Entry) bool) State {
	return s.withRecording(id, func(r *model.Recording) bool {
		if index < 0 || index >= len(r.Entries) {
			return false
		}
		return fn(&r.Entries[index])
	})
}

// nextRecordingName 默认录制名
func (s State) nextRecordingName() string {
	return fmt.Sprintf("Recording %d", len(s.Recordings)+1)
}

func (s State) appendRecording(r model.Recording) State {
	s.Recordings = append(slices.Clone(s.Recordings), r)
	return s
}

func (s State) cloneReplays() map[model.RecordingID]model.TargetID {
	out := make(map[model.RecordingID]model.TargetID, len(s.ActiveReplays))
	for k, v := range s.ActiveReplays {
		out[k] = v
	}
	return out
}

// CapturePatterns 捕获时生效的忽略规则：全局规则加上录制目标自身的规则
func (s State) CapturePatterns() []string {
	patterns := slices.Clone(s.IgnorePatterns)
	if s.RecordInto == "" {
		return patterns
	}
	if i := s.indexOf(s.RecordInto); i >= 0 {
		for _, p := range s.Recordings[i].IgnorePatterns {
			if !slices.Contains(patterns, p) {
				patterns = append(patterns, p)
			}
		}
	}
	return patterns
}

// ReplayEntries 汇总绑定到目标的所有录制中启用的条目，以及这些录制的源分组映射。
// 录制按存储顺序遍历，保证匹配平局时结果稳定。
func (s State) ReplayEntries(target model.TargetID) ([]model.Entry, [][]string, bool) {
	reg := origin.NewRegistry(s.OriginGroups)
	var (
		entries []model.Entry
		groups  []model.OriginGroupID
		bound   bool
	)
	for _, r := range s.Recordings {
		if t, ok := s.ActiveReplays[r.ID]; !ok || t != target {
			continue
		}
		bound = true
		for _, e := range r.Entries {
			if !e.Disabled {
				entries = append(entries, e.Clone())
			}
		}
		for _, gid := range r.OriginGroupIDs {
			if !slices.Contains(groups, gid) {
				groups = append(groups, gid)
			}
		}
	}
	return entries, reg.Flatten(groups), bound
}

// ResolveModeFor 目标当前应执行的模式，录制优先于回放
func (s State) ResolveModeFor(target model.TargetID) model.ModePayload {
	if s.Recording && s.RecordTab == target {
		return model.ModePayload{Mode: model.ModeRecord, Entries: []model.Entry{}, OriginGroups: [][]string{}}
	}
	entries, groups, bound := s.ReplayEntries(target)
	if !bound {
		return model.ModePayload{Mode: model.ModeNone}
	}
	if entries == nil {
		entries = []model.Entry{}
	}
	if groups == nil {
		groups = [][]string{}
	}
	return model.ModePayload{Mode: model.ModeReplay, Entries: entries, OriginGroups: groups}
}

// Targets 当前有录制或回放任务的目标，按录制目标、回放录制顺序排列
func (s State) Targets() []model.TargetID {
	var out []model.TargetID
	if s.Recording && s.RecordTab != "" {
		out = append(out, s.RecordTab)
	}
	for _, r := range s.Recordings {
		if t, ok := s.ActiveReplays[r.ID]; ok && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// ShouldCaptureResource 判断页面资源（非 xhr/fetch）是否需要捕获，返回其类别
func (s State) ShouldCaptureResource(target model.TargetID, url, resourceType string) (model.Kind, bool) {
	if !s.Recording || target != s.RecordTab {
		return "", false
	}
	if filter.IsIgnored(url, s.CapturePatterns()) {
		return "", false
	}
	kind := filter.KindOf(resourceType)
	if filter.IsScripted(kind) || !filter.HasKind(s.RecordFilters, kind) {
		return "", false
	}
	return kind, true
}

// Summary 界面展示用快照
func (s State) Summary() model.Summary {
	recs := make([]model.RecordingSummary, 0, len(s.Recordings))
	for _, r := range s.Recordings {
		recs = append(recs, model.RecordingSummary{
			ID:        r.ID,
			Name:      r.Name,
			Timestamp: r.Timestamp,
			SourceURL: r.SourceURL,
			Count:     len(r.Entries),
		})
	}
	groups := make([]model.OriginGroup, 0, len(s.OriginGroups))
	for _, g := range s.OriginGroups {
		groups = append(groups, g.Clone())
	}
	return model.Summary{
		Sniffing:       s.Sniffing,
		Requests:       append([]model.ObservedRequest{}, s.Requests...),
		Recording:      s.Recording,
		Replaying:      len(s.ActiveReplays) > 0,
		Recordings:     recs,
		ActiveReplays:  s.cloneReplays(),
		ReplayHitCount: s.ReplayHitCount,
		RecordEntries:  append([]model.Entry{}, model.CloneEntries(s.RecordEntries)...),
		RecordFilters:  append([]model.Kind{}, s.RecordFilters...),
		IgnorePatterns: append([]string{}, s.IgnorePatterns...),
		OriginGroups:   groups,
	}
}

// Clone 深拷贝状态
func (s State) Clone() State {
	out := s
	out.Requests = slices.Clone(s.Requests)
	out.RecordEntries = model.CloneEntries(s.RecordEntries)
	out.RecordFilters = slices.Clone(s.RecordFilters)
	out.IgnorePatterns = slices.Clone(s.IgnorePatterns)
	out.ActiveReplays = s.cloneReplays()
	if s.Recordings != nil {
		out.Recordings = make([]model.Recording, len(s.Recordings))
		for i, r := range s.Recordings {
			out.Recordings[i] = r.Clone()
		}
	}
	if s.OriginGroups != nil {
		out.OriginGroups = make([]model.OriginGroup, len(s.OriginGroups))
		for i, g := range s.OriginGroups {
			out.OriginGroups[i] = g.Clone()
		}
	}
	return out
}

// Persisted 导出需要持久化的字段
func (s State) Persisted() model.Persisted {
	c := s.Clone()
	return model.Persisted{
		Recordings:     c.Recordings,
		RecordFilters:  c.RecordFilters,
		IgnorePatterns: c.IgnorePatterns,
		ActiveReplays:  c.ActiveReplays,
		OriginGroups:   c.OriginGroups,
	}
}

// Hydrate 从持久化快照恢复状态，丢弃指向不存在录制的回放绑定
func Hydrate(p model.Persisted) State {
	s := NewState()
	s.Recordings = make([]model.Recording, 0, len(p.Recordings))
	for _, r := range p.Recordings {
		s.Recordings = append(s.Recordings, r.Clone())
	}
	for _, g := range p.OriginGroups {
		s.OriginGroups = append(s.OriginGroups, g.Clone())
	}
	if p.RecordFilters != nil {
		s.RecordFilters = validKinds(p.RecordFilters)
	}
	s.IgnorePatterns = slices.Clone(p.IgnorePatterns)
	for id, t := range p.ActiveReplays {
		if s.indexOf(id) >= 0 {
			s.ActiveReplays[id] = t
		}
	}
	return s
}

func validKinds(kinds []model.Kind) []model.Kind {
	out := make([]model.Kind, 0, len(kinds))
	for _, k := range kinds {
		if k.Valid() && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}
