package handler

import (
	"context"
	"time"

	cdpadapter "reqreplay/internal/adapter/cdp"
	"reqreplay/internal/capture"
	"reqreplay/internal/filter"
	"reqreplay/internal/logger"
	"reqreplay/internal/matcher"
	"reqreplay/internal/session"
	"reqreplay/pkg/model"
	"reqreplay/pkg/traffic"
)

// Controller 处理器依赖的会话能力
type Controller interface {
	Dispatch(ctx context.Context, cmd session.Command) session.Result
	ResolveModeFor(target model.TargetID) model.ModePayload
	ShouldCaptureResource(target model.TargetID, url, resourceType string) (model.Kind, bool)
	Sniffing(target model.TargetID) bool
}

// Fetcher 直连拉取资源内容
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers traffic.Header) capture.Result
}

// BodyLoader 按需读取被拦截响应的响应体
type BodyLoader func(ctx context.Context) ([]byte, error)

// Handler 拦截决策点：请求阶段查找回放条目，响应阶段捕获录制条目
type Handler struct {
	ctl     Controller
	fetcher Fetcher
	events  chan model.Event
	now     func() time.Time
	log     logger.Logger
}

// Config 配置选项
type Config struct {
	Controller Controller
	Fetcher    Fetcher
	Events     chan model.Event
	Now        func() time.Time
	Logger     logger.Logger
}

// New 创建事件处理器
func New(cfg Config) *Handler {
	h := &Handler{
		ctl:     cfg.Controller,
		fetcher: cfg.Fetcher,
		events:  cfg.Events,
		now:     cfg.Now,
		log:     cfg.Logger,
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.log == nil {
		h.log = logger.NewNop()
	}
	return h
}

// HandleRequest 处理请求拦截，返回非 nil 时应以该响应直接应答，否则放行
func (h *Handler) HandleRequest(ctx context.Context, req *traffic.Request) *traffic.Response {
	l := h.log.With("target", string(req.Target), "method", req.Method, "url", req.URL)
	l.Debug("开始处理请求拦截")

	if h.ctl.Sniffing(req.Target) {
		h.ctl.Dispatch(ctx, session.RequestObserved{
			Target: req.Target,
			Method: req.Method,
			URL:    req.URL,
			Type:   string(filter.KindOf(req.ResourceType)),
		})
	}

	// 只回放页面脚本发起的 fetch/XHR，导航与静态资源照常放行
	if !filter.IsScripted(filter.KindOf(req.ResourceType)) {
		return nil
	}
	payload := h.ctl.ResolveModeFor(req.Target)
	if payload.Mode != model.ModeReplay {
		return nil
	}

	start := time.Now()
	hit := matcher.Match(req.URL, req.Method, payload.Entries, payload.OriginGroups)
	if hit == nil {
		l.Debug("回放未命中，放行请求", "candidates", len(payload.Entries))
		return nil
	}

	res := cdpadapter.FromEntry(hit.Entry, matcher.Substitute(hit.Entry.Body, hit.Params))
	h.ctl.Dispatch(ctx, session.Replayed{})
	h.sendEvent(model.Event{Type: model.EventReplayed, Target: req.Target, Method: req.Method, URL: req.URL})
	l.Info("回放命中", "entryURL", hit.Entry.URL, "status", res.StatusCode, "params", len(hit.Params), "duration", time.Since(start))
	return res
}

// HandleResponse 处理响应拦截；该阶段总是放行，只负责嗅探与录制
func (h *Handler) HandleResponse(ctx context.Context, req *traffic.Request, res *traffic.Response, load BodyLoader) {
	l := h.log.With("target", string(req.Target), "method", req.Method, "url", req.URL)
	l.Debug("开始处理响应拦截", "statusCode", res.StatusCode)

	if h.ctl.Sniffing(req.Target) {
		h.ctl.Dispatch(ctx, session.RequestCompleted{Target: req.Target, URL: req.URL, Status: res.StatusCode})
	}

	if h.ctl.ResolveModeFor(req.Target).Mode != model.ModeRecord {
		return
	}

	kind := filter.KindOf(req.ResourceType)
	if filter.IsScripted(kind) {
		h.captureScripted(ctx, req, res, kind, load, l)
		return
	}
	h.captureResource(ctx, req, res, load, l)
}

// captureScripted 录制页面脚本发起的 xhr/fetch 请求
func (h *Handler) captureScripted(ctx context.Context, req *traffic.Request, res *traffic.Response, kind model.Kind, load BodyLoader, l logger.Logger) {
	if filter.SkipContentType(res.Headers.Get("content-type")) {
		l.Debug("跳过二进制响应", "contentType", res.Headers.Get("content-type"))
		return
	}
	if res.Body == nil && load != nil {
		body, err := load(ctx)
		if err != nil {
			l.Err(err, "获取响应体失败")
		}
		res.Body = body
	}
	h.captured(ctx, req, res, kind, l)
}

// captureResource 录制非脚本资源，响应体不可用时直连拉取
func (h *Handler) captureResource(ctx context.Context, req *traffic.Request, res *traffic.Response, load BodyLoader, l logger.Logger) {
	kind, ok := h.ctl.ShouldCaptureResource(req.Target, req.URL, req.ResourceType)
	if !ok {
		return
	}

	var body []byte
	if res.Body != nil {
		body = res.Body
	} else if load != nil {
		b, err := load(ctx)
		if err != nil {
			l.Debug("拦截响应体不可用，改为直连拉取", "error", err)
		}
		body = b
	}

	out := &traffic.Response{StatusCode: res.StatusCode, StatusText: res.StatusText, Headers: res.Headers, Body: body}
	if len(body) == 0 && h.fetcher != nil {
		fetched := h.fetcher.Fetch(ctx, req.URL, req.Headers)
		out.Headers = traffic.Header(fetched.Headers)
		out.Body = []byte(fetched.Body)
	}
	h.captured(ctx, req, out, kind, l)
}

func (h *Handler) captured(ctx context.Context, req *traffic.Request, res *traffic.Response, kind model.Kind, l logger.Logger) {
	e := cdpadapter.ToEntry(req, res, kind, h.now().UnixMilli())
	if !h.ctl.Dispatch(ctx, session.Captured{Entry: e, Tab: req.Target}).Accepted {
		l.Debug("条目被录制过滤器丢弃", "kind", string(kind))
		return
	}
	h.sendEvent(model.Event{Type: model.EventCaptured, Target: req.Target, Method: req.Method, URL: req.URL})
	l.Debug("已录制条目", "kind", string(kind), "status", e.Status, "size", len(e.Body))
}

// sendEvent 安全发送事件到通道，自动添加时间戳
func (h *Handler) sendEvent(evt model.Event) {
	if h.events == nil {
		return
	}
	evt.Timestamp = h.now().UnixMilli()
	select {
	case h.events <- evt:
	default:
	}
}
