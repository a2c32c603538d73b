package cdp

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/mafredri/cdp/protocol/fetch"

	cdpadapter "reqreplay/internal/adapter/cdp"
	"reqreplay/internal/ctxkeys"
	"reqreplay/pkg/traffic"
)

// bodyTimeout 读取响应体的超时
const bodyTimeout = 500 * time.Millisecond

// handle 处理一次拦截事件：请求阶段可能直接应答，响应阶段总是放行
func (m *Manager) handle(ts *targetSession, ev *fetch.RequestPausedReply) {
	to := m.processTimeoutMS
	if to <= 0 {
		to = 3000
	}
	ctx, cancel := context.WithTimeout(ts.ctx, time.Duration(to)*time.Millisecond)
	defer cancel()
	ctx = ctxkeys.WithTraceID(ctx, "")

	req := cdpadapter.ToNeutralRequest(ts.id, ev)
	if req.Stage == traffic.StageRequest {
		if res := m.handler.HandleRequest(ctx, req); res != nil {
			m.fulfill(ctx, ts, ev, res)
			return
		}
		m.continueRequest(ctx, ts, ev)
		return
	}

	res := cdpadapter.ToNeutralResponse(ev, nil)
	m.handler.HandleResponse(ctx, req, res, func(ctx context.Context) ([]byte, error) {
		return m.fetchResponseBody(ctx, ts, ev.RequestID)
	})
	m.continueResponse(ctx, ts, ev)
}

// fulfill 以回放条目直接应答请求
func (m *Manager) fulfill(ctx context.Context, ts *targetSession, ev *fetch.RequestPausedReply, res *traffic.Response) {
	args := &fetch.FulfillRequestArgs{
		RequestID:       ev.RequestID,
		ResponseCode:    res.StatusCode,
		ResponseHeaders: cdpadapter.ToHeaderEntries(res.Headers),
		Body:            res.Body,
	}
	if res.StatusText != "" {
		args.ResponsePhrase = &res.StatusText
	}
	if err := ts.client.Fetch.FulfillRequest(ctx, args); err != nil {
		m.log.Err(err, "回放应答失败，改为放行", "target", string(ts.id), "url", ev.Request.URL)
		m.continueRequest(ctx, ts, ev)
	}
}

func (m *Manager) continueRequest(ctx context.Context, ts *targetSession, ev *fetch.RequestPausedReply) {
	if err := ts.client.Fetch.ContinueRequest(ctx, &fetch.ContinueRequestArgs{RequestID: ev.RequestID}); err != nil {
		m.log.Debug("放行请求失败", "target", string(ts.id), "error", err)
	}
}

func (m *Manager) continueResponse(ctx context.Context, ts *targetSession, ev *fetch.RequestPausedReply) {
	if err := ts.client.Fetch.ContinueResponse(ctx, &fetch.ContinueResponseArgs{RequestID: ev.RequestID}); err != nil {
		m.log.Debug("放行响应失败", "target", string(ts.id), "error", err)
	}
}

// fetchResponseBody 获取响应体
func (m *Manager) fetchResponseBody(ctx context.Context, ts *targetSession, requestID fetch.RequestID) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, bodyTimeout)
	defer cancel()
	rb, err := ts.client.Fetch.GetResponseBody(ctx, &fetch.GetResponseBodyArgs{RequestID: requestID})
	if err != nil {
		return nil, fmt.Errorf("获取响应体失败: %w", err)
	}
	if !rb.Base64Encoded {
		return []byte(rb.Body), nil
	}
	b, err := base64.StdEncoding.DecodeString(rb.Body)
	if err != nil {
		return nil, fmt.Errorf("解码响应体失败: %w", err)
	}
	return b, nil
}

// dispatchPaused 根据并发配置调度单次拦截事件处理
func (m *Manager) dispatchPaused(ts *targetSession, ev *fetch.RequestPausedReply) {
	submitted := m.pool.submit(func() {
		m.handle(ts, ev)
	})
	if !submitted {
		m.degradeAndContinue(ts, ev, "并发队列已满")
	}
}

// consume 持续接收拦截事件并按并发限制分发处理
func (m *Manager) consume(ts *targetSession, stream fetch.RequestPausedClient) {
	defer func() { _ = stream.Close() }()

	m.log.Info("开始消费拦截事件流", "target", string(ts.id))
	for {
		ev, err := stream.Recv()
		if err != nil {
			m.handleTargetStreamClosed(ts, err)
			return
		}
		m.dispatchPaused(ts, ev)
	}
}

// handleTargetStreamClosed 处理单个目标的拦截流终止
func (m *Manager) handleTargetStreamClosed(ts *targetSession, err error) {
	if ts.ctx.Err() != nil {
		m.log.Debug("目标拦截流已关闭", "target", string(ts.id))
		return
	}

	m.log.Warn("拦截流被中断，自动移除目标", "target", string(ts.id), "error", err)

	m.targetsMu.Lock()
	defer m.targetsMu.Unlock()
	if cur, ok := m.targets[ts.id]; ok && cur == ts {
		m.closeTargetSession(cur)
		delete(m.targets, ts.id)
		delete(m.auto, ts.id)
	}
}

// degradeAndContinue 统一的降级处理：直接放行
func (m *Manager) degradeAndContinue(ts *targetSession, ev *fetch.RequestPausedReply, reason string) {
	m.log.Warn("执行降级策略：直接放行", "target", string(ts.id), "reason", reason, "requestID", ev.RequestID)
	ctx, cancel := context.WithTimeout(ts.ctx, time.Second)
	defer cancel()
	if cdpadapter.IsResponseStage(ev) {
		m.continueResponse(ctx, ts, ev)
		return
	}
	m.continueRequest(ctx, ts, ev)
}
