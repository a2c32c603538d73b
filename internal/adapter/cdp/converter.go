package cdp

import (
	"net/http"
	"strings"

	"reqreplay/pkg/model"
	"reqreplay/pkg/traffic"

	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/tidwall/gjson"
)

// ToNeutralRequest 将 CDP 拦截事件转换为中立 Request 模型
func ToNeutralRequest(target model.TargetID, ev *fetch.RequestPausedReply) *traffic.Request {
	req := traffic.NewRequest()
	req.ID = string(ev.RequestID)
	req.Target = target
	req.URL = ev.Request.URL
	req.Method = ev.Request.Method
	req.ResourceType = string(ev.ResourceType)
	if IsResponseStage(ev) {
		req.Stage = traffic.StageResponse
	}

	// 处理 Header
	if len(ev.Request.Headers) > 0 {
		gjson.ParseBytes(ev.Request.Headers).ForEach(func(k, v gjson.Result) bool {
			req.Headers.Set(k.String(), v.String())
			return true
		})
	}

	if ev.Request.PostData != nil {
		req.Body = []byte(*ev.Request.PostData)
	}
	return req
}

// IsResponseStage 判断事件是否处于响应阶段
func IsResponseStage(ev *fetch.RequestPausedReply) bool {
	return ev.ResponseStatusCode != nil || len(ev.ResponseHeaders) > 0
}

// ToNeutralResponse 将 CDP 响应阶段事件转换为中立 Response 模型
func ToNeutralResponse(ev *fetch.RequestPausedReply, body []byte) *traffic.Response {
	res := traffic.NewResponse()
	if ev.ResponseStatusCode != nil {
		res.StatusCode = *ev.ResponseStatusCode
	}
	res.StatusText = http.StatusText(res.StatusCode)
	for _, h := range ev.ResponseHeaders {
		if cur := res.Headers.Get(h.Name); cur != "" {
			// 重复的头（如 set-cookie）按换行拼接
			res.Headers.Set(h.Name, cur+"\n"+h.Value)
			continue
		}
		res.Headers.Set(h.Name, h.Value)
	}
	res.Body = body
	return res
}

// ToHeaderEntries 将中立 Header 转换为 CDP Header 条目
func ToHeaderEntries(h traffic.Header) []fetch.HeaderEntry {
	entries := make([]fetch.HeaderEntry, 0, len(h))
	for k, v := range h {
		for _, line := range strings.Split(v, "\n") {
			entries = append(entries, fetch.HeaderEntry{Name: k, Value: line})
		}
	}
	return entries
}

// ToEntry 将一次完整的请求/响应转换为录制条目
func ToEntry(req *traffic.Request, res *traffic.Response, kind model.Kind, now int64) model.Entry {
	e := model.Entry{
		URL:     req.URL,
		Method:  req.Method,
		Kind:    kind,
		Time:    now,
		Headers: map[string]string{},
	}
	if len(req.Body) > 0 {
		p := string(req.Body)
		e.Payload = &p
	}
	if res != nil {
		e.Status = res.StatusCode
		e.StatusText = res.StatusText
		e.Body = string(res.Body)
		for k, v := range res.Headers {
			e.Headers[k] = v
		}
	}
	return e
}

// replayDropHeaders 录制的响应体已解码且可能被参数替换，这些头不再成立
var replayDropHeaders = map[string]bool{
	"content-encoding":  true,
	"content-length":    true,
	"transfer-encoding": true,
}

// FromEntry 将录制条目转换为回放用的中立响应
func FromEntry(e *model.Entry, body string) *traffic.Response {
	res := traffic.NewResponse()
	if e.Status > 0 {
		res.StatusCode = e.Status
	}
	res.StatusText = e.StatusText
	for k, v := range e.Headers {
		if replayDropHeaders[strings.ToLower(k)] {
			continue
		}
		res.Headers.Set(k, v)
	}
	res.Body = []byte(body)
	return res
}
