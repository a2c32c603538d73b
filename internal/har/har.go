// Package har 在录制与 HAR 1.2 文档之间互相转换。
package har

import (
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-analyze/bulk"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"reqreplay/internal/filter"
	"reqreplay/internal/origin"
	"reqreplay/pkg/model"
)

// Creator 导出文件中的 creator.name
const Creator = "reqreplay"

// ErrNotHAR 输入不是 HAR 文档
var ErrNotHAR = errors.New("not a HAR document")

const skeleton = `{"log":{"version":"1.2","creator":{"name":"","version":"1.0"},"pages":[],"entries":[]}}`

type pair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Export 将录制导出为 HAR 文档
func Export(rec model.Recording) ([]byte, error) {
	doc := []byte(skeleton)
	var err error
	set := func(path string, v any) {
		if err != nil {
			return
		}
		doc, err = sjson.SetBytes(doc, path, v)
	}

	set("log.creator.name", Creator)
	if rec.SourceURL != "" || rec.Name != "" {
		set("log.pages.0.id", "page_1")
		set("log.pages.0.title", firstNonEmpty(rec.SourceURL, rec.Name))
		set("log.pages.0.startedDateTime", formatTime(rec.Timestamp))
		set("log.pages.0.pageTimings", map[string]int{})
		set("log.comment", rec.Name)
	}

	for i, e := range rec.Entries {
		p := fmt.Sprintf("log.entries.%d.", i)
		set(p+"startedDateTime", formatTime(e.Time))
		set(p+"time", 0)
		set(p+"_resourceType", string(e.Kind))

		set(p+"request.method", e.Method)
		set(p+"request.url", e.URL)
		set(p+"request.httpVersion", "HTTP/1.1")
		set(p+"request.cookies", []pair{})
		set(p+"request.headers", []pair{})
		set(p+"request.queryString", queryString(e.URL))
		set(p+"request.headersSize", -1)
		if e.Payload != nil {
			set(p+"request.postData.mimeType", "")
			set(p+"request.postData.text", *e.Payload)
			set(p+"request.bodySize", len(*e.Payload))
		} else {
			set(p+"request.bodySize", 0)
		}

		set(p+"response.status", e.Status)
		set(p+"response.statusText", e.StatusText)
		set(p+"response.httpVersion", "HTTP/1.1")
		set(p+"response.cookies", []pair{})
		set(p+"response.headers", headerPairs(e.Headers))
		set(p+"response.content.size", len(e.Body))
		set(p+"response.content.mimeType", headerValue(e.Headers, "content-type"))
		set(p+"response.content.text", e.Body)
		set(p+"response.redirectURL", headerValue(e.Headers, "location"))
		set(p+"response.headersSize", -1)
		set(p+"response.bodySize", len(e.Body))

		set(p+"cache", map[string]any{})
		set(p+"timings", map[string]int{"send": 0, "wait": 0, "receive": 0})

		if e.Disabled {
			set(p+"_disabled", true)
		}
		if len(e.BodyVariants) > 0 {
			set(p+"_bodyVariants", e.BodyVariants)
			if e.ActiveVariant != nil {
				set(p+"_activeVariant", *e.ActiveVariant)
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("生成 HAR 失败: %w", err)
	}
	return doc, nil
}

// Import 读取 HAR 文档中的条目
func Import(data []byte) ([]model.Entry, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid json", ErrNotHAR)
	}
	list := gjson.GetBytes(data, "log.entries")
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: missing log.entries", ErrNotHAR)
	}

	entries := make([]model.Entry, 0, len(list.Array()))
	for _, item := range list.Array() {
		url := item.Get("request.url").String()
		if url == "" {
			continue
		}
		e := model.Entry{
			URL:        url,
			Method:     strings.ToUpper(firstNonEmpty(item.Get("request.method").String(), "GET")),
			Status:     int(item.Get("response.status").Int()),
			StatusText: item.Get("response.statusText").String(),
			Headers:    readHeaders(item.Get("response.headers")),
			Body:       readContent(item.Get("response.content")),
			Kind:       readKind(item.Get("_resourceType").String()),
			Time:       parseTime(item.Get("startedDateTime").String()),
			Disabled:   item.Get("_disabled").Bool(),
		}
		if post := item.Get("request.postData.text"); post.Exists() {
			text := post.String()
			e.Payload = &text
		}
		readVariants(item, &e)
		entries = append(entries, e)
	}
	return entries, nil
}

// SourceURL 返回 HAR 首个页面的标题
func SourceURL(data []byte) string {
	return gjson.GetBytes(data, "log.pages.0.title").String()
}

func readHeaders(v gjson.Result) map[string]string {
	if !v.IsArray() || len(v.Array()) == 0 {
		return nil
	}
	out := make(map[string]string, len(v.Array()))
	for _, h := range v.Array() {
		name := strings.ToLower(h.Get("name").String())
		if name == "" || strings.HasPrefix(name, ":") {
			continue
		}
		out[name] = h.Get("value").String()
	}
	return out
}

func readContent(v gjson.Result) string {
	text := v.Get("text").String()
	if v.Get("encoding").String() == "base64" {
		if decoded, err := base64.StdEncoding.DecodeString(text); err == nil {
			return string(decoded)
		}
	}
	return text
}

func readKind(t string) model.Kind {
	if t == "" {
		return model.KindFetch
	}
	if k := model.Kind(t); k.Valid() {
		return k
	}
	return filter.KindOf(t)
}

func readVariants(item gjson.Result, e *model.Entry) {
	vs := item.Get("_bodyVariants")
	if !vs.IsArray() || len(vs.Array()) == 0 {
		return
	}
	for _, v := range vs.Array() {
		e.BodyVariants = append(e.BodyVariants, model.BodyVariant{Name: v.Get("name").String(), Body: v.Get("body").String()})
	}
	active := min(max(int(item.Get("_activeVariant").Int()), 0), len(e.BodyVariants)-1)
	e.ActiveVariant = &active
	e.Body = e.BodyVariants[active].Body
}

func headerPairs(h map[string]string) []pair {
	keys := bulk.MapKeysSlice(h)
	slices.Sort(keys)
	out := make([]pair, 0, len(keys))
	for _, k := range keys {
		out = append(out, pair{Name: k, Value: h[k]})
	}
	return out
}

func headerValue(h map[string]string, name string) string {
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func queryString(rawURL string) []pair {
	u, ok := origin.Parse(rawURL)
	if !ok {
		return []pair{}
	}
	out := []pair{}
	for _, q := range u.Query() {
		out = append(out, pair{Name: q.Key, Value: q.Value})
	}
	return out
}

func formatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) int64 {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
