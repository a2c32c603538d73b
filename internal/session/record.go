package session

import (
	"slices"

	"github.com/go-analyze/bulk"

	"reqreplay/internal/filter"
	"reqreplay/pkg/model"
)

// StartRecord 开始录制；filters 为 nil 时沿用当前过滤类别，into 为空或不存在时录制到新缓冲区
func (s State) StartRecord(filters []model.Kind, tab model.TargetID, into model.RecordingID, sourceURL string) State {
	s.Recording = true
	s.RecordEntries = nil
	if filters != nil {
		s.RecordFilters = validKinds(filters)
	}
	s.RecordTab = tab
	s.RecordSourceURL = sourceURL
	s.RecordInto = ""
	if into != "" && s.indexOf(into) >= 0 {
		s.RecordInto = into
	}
	return s
}

// CreateAndRecord 创建空录制并开始录制到其中
func (s State) CreateAndRecord(filters []model.Kind, tab model.TargetID, sourceURL string, env Env) (State, model.RecordingID) {
	rec := s.newRecording(sourceURL, nil, env)
	s = s.appendRecording(rec)
	return s.StartRecord(filters, tab, rec.ID, sourceURL), rec.ID
}

func (s State) newRecording(sourceURL string, entries []model.Entry, env Env) model.Recording {
	if entries == nil {
		entries = []model.Entry{}
	}
	return model.Recording{
		ID:             model.RecordingID(env.id()),
		Name:           s.nextRecordingName(),
		Timestamp:      env.now(),
		SourceURL:      sourceURL,
		Entries:        entries,
		IgnorePatterns: append([]string{}, s.IgnorePatterns...),
	}
}

// StopRecord 结束录制，缓冲区非空时生成新录制并返回其 ID。
// 录制目标为已有录制（createAndRecord 或 startRecord 指定 into）时按 StopRecordInto 收尾。
func (s State) StopRecord(env Env) (State, model.RecordingID) {
	if s.RecordInto != "" && s.indexOf(s.RecordInto) >= 0 {
		return s.StopRecordInto(s.RecordInto, env)
	}
	var id model.RecordingID
	if len(s.RecordEntries) > 0 {
		rec := s.newRecording(s.RecordSourceURL, model.CloneEntries(s.RecordEntries), env)
		s = s.appendRecording(rec)
		id = rec.ID
	}
	return s.endRecording(), id
}

// StopRecordInto 结束录制并把缓冲区追加到已有录制；合并后仍为空的录制会被删除。
// 目标录制已不存在时退化为 StopRecord，避免丢失已捕获的条目。
func (s State) StopRecordInto(id model.RecordingID, env Env) (State, model.RecordingID) {
	i := s.indexOf(id)
	if i < 0 {
		return s.StopRecord(env)
	}
	buffered := model.CloneEntries(s.RecordEntries)
	if len(s.Recordings[i].Entries)+len(buffered) == 0 {
		return s.endRecording().DeleteRecording(id), ""
	}
	s = s.withRecording(id, func(r *model.Recording) bool {
		r.Entries = append(r.Entries, buffered...)
		return true
	})
	return s.endRecording(), id
}

func (s State) endRecording() State {
	s.Recording = false
	s.RecordTab = ""
	s.RecordInto = ""
	s.RecordSourceURL = ""
	s.RecordEntries = nil
	return s
}

// Captured 录制中收到的条目依次经过忽略规则与类别过滤后进入缓冲区
func (s State) Captured(e model.Entry, tab model.TargetID) State {
	if !s.Recording {
		return s
	}
	if tab != "" && s.RecordTab != "" && tab != s.RecordTab {
		return s
	}
	if !filter.Accept(e, s.RecordFilters, s.CapturePatterns()) {
		return s
	}
	s.RecordEntries = append(slices.Clone(s.RecordEntries), e.Clone())
	return s
}

// StartReplay 将录制绑定到目标开始回放
func (s State) StartReplay(id model.RecordingID, target model.TargetID) (State, error) {
	if s.indexOf(id) < 0 {
		return s, ErrRecordingNotFound
	}
	replays := s.cloneReplays()
	replays[id] = target
	s.ActiveReplays = replays
	return s, nil
}

// StopReplay 停止录制的回放；没有剩余回放时命中计数归零
func (s State) StopReplay(id model.RecordingID) State {
	replays := s.cloneReplays()
	delete(replays, id)
	s.ActiveReplays = replays
	if len(replays) == 0 {
		s.ReplayHitCount = 0
	}
	return s
}

// Replayed 回放命中计数加一
func (s State) Replayed() State {
	s.ReplayHitCount++
	return s
}

// DeleteRecording 删除录制并停止其回放
func (s State) DeleteRecording(id model.RecordingID) State {
	if s.indexOf(id) < 0 {
		return s
	}
	s.Recordings = bulk.SliceFilter(func(r model.Recording) bool { return r.ID != id }, s.Recordings)
	if _, ok := s.ActiveReplays[id]; ok {
		s = s.StopReplay(id)
	}
	if s.RecordInto == id {
		s.RecordInto = ""
	}
	return s
}

// RenameRecording 重命名录制，空名称忽略
func (s State) RenameRecording(id model.RecordingID, name string) State {
	if name == "" {
		return s
	}
	return s.withRecording(id, func(r *model.Recording) bool {
		r.Name = name
		return true
	})
}

// MergeRecording 将源录制的条目追加到目标录制并删除源录制
func (s State) MergeRecording(sourceID, targetID model.RecordingID) State {
	si := s.indexOf(sourceID)
	if si < 0 || s.indexOf(targetID) < 0 || sourceID == targetID {
		return s
	}
	moved := model.CloneEntries(s.Recordings[si].Entries)
	s = s.withRecording(targetID, func(r *model.Recording) bool {
		r.Entries = append(r.Entries, moved...)
		return true
	})
	return s.DeleteRecording(sourceID)
}

// CopyEntries 将条目副本追加到目标录制
func (s State) CopyEntries(targetID model.RecordingID, entries []model.Entry) State {
	if len(entries) == 0 {
		return s
	}
	copied := model.CloneEntries(entries)
	return s.withRecording(targetID, func(r *model.Recording) bool {
		r.Entries = append(r.Entries, copied...)
		return true
	})
}

// ImportRecording 以导入的条目创建录制，空导入忽略
func (s State) ImportRecording(name string, entries []model.Entry, sourceURL string, env Env) (State, model.RecordingID) {
	if len(entries) == 0 {
		return s, ""
	}
	rec := s.newRecording(sourceURL, model.CloneEntries(entries), env)
	if name != "" {
		rec.Name = name
	}
	return s.appendRecording(rec), rec.ID
}
