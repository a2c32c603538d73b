package session

import (
	"fmt"
	"strings"

	"reqreplay/pkg/model"
)

// Command 会话命令，只能由本包定义
type Command interface {
	command()
}

// Result 命令执行结果
type Result struct {
	RecordingID model.RecordingID   // 新建或写入的录制
	GroupID     model.OriginGroupID // 新建的源分组
	Accepted    bool                // Captured 是否被写入录制缓冲
	Err         error
}

type (
	StartRecord struct {
		Filters   []model.Kind
		Tab       model.TargetID
		Into      model.RecordingID
		SourceURL string
	}
	CreateAndRecord struct {
		Filters   []model.Kind
		Tab       model.TargetID
		SourceURL string
	}
	StopRecord     struct{}
	StopRecordInto struct{ ID model.RecordingID }
	Captured       struct {
		Entry model.Entry
		Tab   model.TargetID
	}

	StartReplay struct {
		ID     model.RecordingID
		Target model.TargetID
	}
	StopReplay struct{ ID model.RecordingID }
	Replayed   struct{}

	DeleteRecording struct{ ID model.RecordingID }
	RenameRecording struct {
		ID   model.RecordingID
		Name string
	}
	MergeRecording struct{ Source, Target model.RecordingID }
	CopyEntries    struct {
		Target  model.RecordingID
		Entries []model.Entry
	}
	ImportRecording struct {
		Name      string
		Entries   []model.Entry
		SourceURL string
	}

	UpdateEntry struct {
		ID      model.RecordingID
		Index   int
		Updates map[string]any
	}
	DeleteEntry struct {
		ID    model.RecordingID
		Index int
	}
	ToggleEntry struct {
		ID    model.RecordingID
		Index int
	}
	ToggleAllEntries struct {
		ID       model.RecordingID
		Disabled bool
	}
	SoloEntry struct {
		ID    model.RecordingID
		Index int
	}
	DedupeEntries struct{ ID model.RecordingID }

	SetActiveVariant struct {
		ID      model.RecordingID
		Index   int
		Variant int
	}
	AddVariant struct {
		ID    model.RecordingID
		Index int
		Name  string
		Body  string
	}
	DeleteVariant struct {
		ID      model.RecordingID
		Index   int
		Variant int
	}
	RenameVariant struct {
		ID      model.RecordingID
		Index   int
		Variant int
		Name    string
	}

	SetFilters            struct{ Filters []model.Kind }
	AddIgnore             struct{ Pattern string }
	RemoveIgnore          struct{ Pattern string }
	AddRecordingIgnore    struct {
		ID      model.RecordingID
		Pattern string
	}
	RemoveRecordingIgnore struct {
		ID      model.RecordingID
		Pattern string
	}

	AddOriginGroup struct {
		Name     string
		Mappings [][]string
	}
	UpdateOriginGroup struct {
		ID       model.OriginGroupID
		Name     string
		Mappings [][]string
	}
	DeleteOriginGroup        struct{ ID model.OriginGroupID }
	SetRecordingOriginGroups struct {
		ID     model.RecordingID
		Groups []model.OriginGroupID
	}

	ToggleSniff     struct{ Target model.TargetID }
	ClearRequests   struct{}
	RequestObserved struct {
		Target model.TargetID
		Method string
		URL    string
		Type   string
	}
	RequestCompleted struct {
		Target model.TargetID
		URL    string
		Status int
	}
)

func (StartRecord) command()              {}
func (CreateAndRecord) command()          {}
func (StopRecord) command()               {}
func (StopRecordInto) command()           {}
func (Captured) command()                 {}
func (StartReplay) command()              {}
func (StopReplay) command()               {}
func (Replayed) command()                 {}
func (DeleteRecording) command()          {}
func (RenameRecording) command()          {}
func (MergeRecording) command()           {}
func (CopyEntries) command()              {}
func (ImportRecording) command()          {}
func (UpdateEntry) command()              {}
func (DeleteEntry) command()              {}
func (ToggleEntry) command()              {}
func (ToggleAllEntries) command()         {}
func (SoloEntry) command()                {}
func (DedupeEntries) command()            {}
func (SetActiveVariant) command()         {}
func (AddVariant) command()               {}
func (DeleteVariant) command()            {}
func (RenameVariant) command()            {}
func (SetFilters) command()               {}
func (AddIgnore) command()                {}
func (RemoveIgnore) command()             {}
func (AddRecordingIgnore) command()       {}
func (RemoveRecordingIgnore) command()    {}
func (AddOriginGroup) command()           {}
func (UpdateOriginGroup) command()        {}
func (DeleteOriginGroup) command()        {}
func (SetRecordingOriginGroups) command() {}
func (ToggleSniff) command()              {}
func (ClearRequests) command()            {}
func (RequestObserved) command()          {}
func (RequestCompleted) command()         {}

// Apply 执行一条命令，返回新状态与结果。未知命令原样返回状态。
func Apply(s State, cmd Command, env Env) (State, Result) {
	var res Result
	switch c := cmd.(type) {
	case StartRecord:
		s = s.StartRecord(c.Filters, c.Tab, c.Into, c.SourceURL)
	case CreateAndRecord:
		s, res.RecordingID = s.CreateAndRecord(c.Filters, c.Tab, c.SourceURL, env)
	case StopRecord:
		s, res.RecordingID = s.StopRecord(env)
	case StopRecordInto:
		s, res.RecordingID = s.StopRecordInto(c.ID, env)
	case Captured:
		before := len(s.RecordEntries)
		s = s.Captured(c.Entry, c.Tab)
		res.Accepted = len(s.RecordEntries) > before
	case StartReplay:
		s, res.Err = s.StartReplay(c.ID, c.Target)
	case StopReplay:
		s = s.StopReplay(c.ID)
	case Replayed:
		s = s.Replayed()
	case DeleteRecording:
		s = s.DeleteRecording(c.ID)
	case RenameRecording:
		s = s.RenameRecording(c.ID, c.Name)
	case MergeRecording:
		s = s.MergeRecording(c.Source, c.Target)
	case CopyEntries:
		s = s.CopyEntries(c.Target, c.Entries)
	case ImportRecording:
		s, res.RecordingID = s.ImportRecording(c.Name, c.Entries, c.SourceURL, env)
	case UpdateEntry:
		s = s.UpdateEntry(c.ID, c.Index, c.Updates)
	case DeleteEntry:
		s = s.DeleteEntry(c.ID, c.Index)
	case ToggleEntry:
		s = s.ToggleEntry(c.ID, c.Index)
	case ToggleAllEntries:
		s = s.ToggleAllEntries(c.ID, c.Disabled)
	case SoloEntry:
		s = s.SoloEntry(c.ID, c.Index)
	case DedupeEntries:
		s = s.DedupeEntries(c.ID)
	case SetActiveVariant:
		s = s.SetActiveVariant(c.ID, c.Index, c.Variant)
	case AddVariant:
		s = s.AddVariant(c.ID, c.Index, c.Name, c.Body)
	case DeleteVariant:
		s = s.DeleteVariant(c.ID, c.Index, c.Variant)
	case RenameVariant:
		s = s.RenameVariant(c.ID, c.Index, c.Variant, c.Name)
	case SetFilters:
		s = s.SetFilters(c.Filters)
	case AddIgnore:
		s = s.AddIgnore(c.Pattern)
	case RemoveIgnore:
		s = s.RemoveIgnore(c.Pattern)
	case AddRecordingIgnore:
		s = s.AddRecordingIgnore(c.ID, c.Pattern)
	case RemoveRecordingIgnore:
		s = s.RemoveRecordingIgnore(c.ID, c.Pattern)
	case AddOriginGroup:
		s, res.GroupID = s.AddOriginGroup(c.Name, c.Mappings, env)
	case UpdateOriginGroup:
		s = s.UpdateOriginGroup(c.ID, c.Name, c.Mappings)
	case DeleteOriginGroup:
		s = s.DeleteOriginGroup(c.ID)
	case SetRecordingOriginGroups:
		s = s.SetRecordingOriginGroups(c.ID, c.Groups)
	case ToggleSniff:
		s = s.ToggleSniff(c.Target)
	case ClearRequests:
		s = s.ClearRequests()
	case RequestObserved:
		s = s.RequestObserved(c.Target, c.Method, c.URL, c.Type, env)
	case RequestCompleted:
		s = s.RequestCompleted(c.Target, c.URL, c.Status)
	}
	return s, res
}

// persistent 命令是否可能改变需要持久化的字段
func persistent(cmd Command) bool {
	switch cmd.(type) {
	case ToggleSniff, ClearRequests, RequestObserved, RequestCompleted, Captured, Replayed:
		return false
	}
	return true
}

// commandName 命令名，用于日志
func commandName(cmd Command) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", cmd), "session.")
}
