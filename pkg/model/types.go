package model

type RecordingID string
type TargetID string
type OriginGroupID string

// Kind 捕获条目的资源类别
type Kind string

const (
	KindXHR    Kind = "xhr"
	KindFetch  Kind = "fetch"
	KindCSS    Kind = "css"
	KindScript Kind = "script"
	KindImg    Kind = "img"
	KindFont   Kind = "font"
	KindMedia  Kind = "media"
	KindDoc    Kind = "doc"
	KindOther  Kind = "other"
)

// AllKinds 所有合法类别，按界面展示顺序
var AllKinds = []Kind{KindXHR, KindFetch, KindCSS, KindScript, KindImg, KindFont, KindMedia, KindDoc, KindOther}

// Valid 判断类别是否合法
func (k Kind) Valid() bool {
	for _, v := range AllKinds {
		if v == k {
			return true
		}
	}
	return false
}

// DefaultRecordFilters 默认录制的类别
func DefaultRecordFilters() []Kind { return []Kind{KindXHR, KindFetch} }

// BodyVariant 同一请求的备选响应体
type BodyVariant struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

// Entry 一次捕获的请求/响应
type Entry struct {
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body"`
	Payload    *string           `json:"payload,omitempty"`
	Kind       Kind              `json:"kind"`
	Time       int64             `json:"time"`

	Disabled      bool          `json:"disabled,omitempty"`
	BodyVariants  []BodyVariant `json:"bodyVariants,omitempty"`
	ActiveVariant *int          `json:"activeVariant,omitempty"`
}

// Clone 深拷贝条目，返回值与原条目不共享可变内存
func (e Entry) Clone() Entry {
	out := e
	if e.Headers != nil {
		out.Headers = make(map[string]string, len(e.Headers))
		for k, v := range e.Headers {
			out.Headers[k] = v
		}
	}
	if e.Payload != nil {
		p := *e.Payload
		out.Payload = &p
	}
	if e.BodyVariants != nil {
		out.BodyVariants = append([]BodyVariant(nil), e.BodyVariants...)
	}
	if e.ActiveVariant != nil {
		a := *e.ActiveVariant
		out.ActiveVariant = &a
	}
	return out
}

// CloneEntries 深拷贝条目列表
func CloneEntries(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	for i := range entries {
		out[i] = entries[i].Clone()
	}
	return out
}

// Recording 命名的条目集合，条目顺序即捕获顺序
type Recording struct {
	ID             RecordingID     `json:"id"`
	Name           string          `json:"name"`
	Timestamp      int64           `json:"timestamp"`
	SourceURL      string          `json:"sourceUrl,omitempty"`
	Entries        []Entry         `json:"entries"`
	IgnorePatterns []string        `json:"ignorePatterns"`
	OriginGroupIDs []OriginGroupID `json:"originGroupIds,omitempty"`
}

// Clone 深拷贝录制
func (r Recording) Clone() Recording {
	out := r
	out.Entries = CloneEntries(r.Entries)
	if out.Entries == nil {
		out.Entries = []Entry{}
	}
	out.IgnorePatterns = append([]string{}, r.IgnorePatterns...)
	if r.OriginGroupIDs != nil {
		out.OriginGroupIDs = append([]OriginGroupID(nil), r.OriginGroupIDs...)
	}
	return out
}

// OriginGroup 用户声明的等价源集合
type OriginGroup struct {
	ID       OriginGroupID `json:"id"`
	Name     string        `json:"name"`
	Mappings [][]string    `json:"mappings"`
}

// Clone 深拷贝源分组
func (g OriginGroup) Clone() OriginGroup {
	out := g
	out.Mappings = make([][]string, len(g.Mappings))
	for i, m := range g.Mappings {
		out.Mappings[i] = append([]string(nil), m...)
	}
	return out
}

// Mode 目标当前应执行的模式
type Mode string

const (
	ModeNone   Mode = ""
	ModeRecord Mode = "record"
	ModeReplay Mode = "replay"
)

// ModePayload 描述某个目标当前应该做什么
type ModePayload struct {
	Mode         Mode       `json:"mode"`
	Entries      []Entry    `json:"entries"`
	OriginGroups [][]string `json:"originGroups"`
}

// ObservedRequest 嗅探日志中的一条请求
type ObservedRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Type   string `json:"type"`
	Time   int64  `json:"time"`
	Status int    `json:"status,omitempty"`
}

// RecordingSummary 录制列表展示用摘要
type RecordingSummary struct {
	ID        RecordingID `json:"id"`
	Name      string      `json:"name"`
	Timestamp int64       `json:"timestamp"`
	SourceURL string      `json:"sourceUrl,omitempty"`
	Count     int         `json:"count"`
}

// Summary 界面轮询使用的状态快照
type Summary struct {
	Sniffing       bool                     `json:"sniffing"`
	Requests       []ObservedRequest        `json:"requests"`
	Recording      bool                     `json:"recording"`
	Replaying      bool                     `json:"replaying"`
	Recordings     []RecordingSummary       `json:"recordings"`
	ActiveReplays  map[RecordingID]TargetID `json:"activeReplays"`
	ReplayHitCount int                      `json:"replayHitCount"`
	RecordEntries  []Entry                  `json:"recordEntries"`
	RecordFilters  []Kind                   `json:"recordFilters"`
	IgnorePatterns []string                 `json:"ignorePatterns"`
	OriginGroups   []OriginGroup            `json:"originGroups"`
}

// Persisted 持久化层读写的完整快照
type Persisted struct {
	Recordings     []Recording              `json:"recordings"`
	RecordFilters  []Kind                   `json:"recordFilters"`
	IgnorePatterns []string                 `json:"ignorePatterns"`
	ActiveReplays  map[RecordingID]TargetID `json:"activeReplays"`
	OriginGroups   []OriginGroup            `json:"originGroups"`
}

// Event 模式变更与拦截结果通知
type Event struct {
	Type      string   `json:"type"`
	Target    TargetID `json:"target"`
	Mode      Mode     `json:"mode,omitempty"`
	Method    string   `json:"method,omitempty"`
	URL       string   `json:"url,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// 事件类型
const (
	EventMode     = "mode"
	EventReplayed = "replayed"
	EventCaptured = "captured"
)

// TargetInfo 浏览器目标信息
type TargetInfo struct {
	ID    TargetID `json:"id"`
	Type  string   `json:"type"`
	URL   string   `json:"url"`
	Title string   `json:"title"`
}
