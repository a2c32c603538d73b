// Package cdp 通过 DevTools 协议接管浏览器目标的网络请求。
//
// 每个附加的目标持有独立的 websocket 连接并启用 Fetch 域，
// 请求与响应两个阶段的暂停事件交给 handler 决策后放行或直接应答。
package cdp

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/rpcc"

	"reqreplay/internal/handler"
	"reqreplay/internal/logger"
	"reqreplay/pkg/model"
)

// ErrTargetNotFound 目标不存在
var ErrTargetNotFound = errors.New("目标不存在")

// Manager DevTools 目标管理器
type Manager struct {
	devtoolsURL      string
	processTimeoutMS int
	handler          *handler.Handler
	pool             *workerPool
	log              logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	targetsMu sync.Mutex
	targets   map[model.TargetID]*targetSession
	auto      map[model.TargetID]bool
}

// targetSession 单个目标的连接与拦截流
type targetSession struct {
	id     model.TargetID
	conn   *rpcc.Conn
	client *cdp.Client
	ctx    context.Context
	cancel context.CancelFunc
}

// Options 管理器选项
type Options struct {
	DevToolsURL      string
	ProcessTimeoutMS int
	Workers          int
	Logger           logger.Logger
}

// New 创建目标管理器
func New(h *handler.Handler, opts Options) *Manager {
	l := opts.Logger
	if l == nil {
		l = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		devtoolsURL:      opts.DevToolsURL,
		processTimeoutMS: opts.ProcessTimeoutMS,
		handler:          h,
		pool:             newWorkerPool(opts.Workers, l),
		log:              l,
		ctx:              ctx,
		cancel:           cancel,
		targets:          make(map[model.TargetID]*targetSession),
		auto:             make(map[model.TargetID]bool),
	}
	m.pool.start(ctx)
	return m
}

// ListTargets 列出浏览器中的页面目标
func (m *Manager) ListTargets(ctx context.Context) ([]model.TargetInfo, error) {
	targets, err := devtool.New(m.devtoolsURL).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取目标列表失败: %w", err)
	}
	out := make([]model.TargetInfo, 0, len(targets))
	for _, t := range targets {
		if t.Type != devtool.Page {
			continue
		}
		out = append(out, model.TargetInfo{
			ID:    model.TargetID(t.ID),
			Type:  string(t.Type),
			URL:   t.URL,
			Title: t.Title,
		})
	}
	return out, nil
}

// AttachTarget 附加目标并启用请求拦截，已附加时直接返回
func (m *Manager) AttachTarget(ctx context.Context, target model.TargetID) error {
	m.targetsMu.Lock()
	defer m.targetsMu.Unlock()
	if _, ok := m.targets[target]; ok {
		return nil
	}

	targets, err := devtool.New(m.devtoolsURL).List(ctx)
	if err != nil {
		return fmt.Errorf("获取目标列表失败: %w", err)
	}
	idx := slices.IndexFunc(targets, func(t *devtool.Target) bool { return model.TargetID(t.ID) == target })
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrTargetNotFound, target)
	}

	conn, err := rpcc.DialContext(ctx, targets[idx].WebSocketDebuggerURL)
	if err != nil {
		return fmt.Errorf("连接目标失败: %w", err)
	}
	tsCtx, cancel := context.WithCancel(m.ctx)
	ts := &targetSession{
		id:     target,
		conn:   conn,
		client: cdp.NewClient(conn),
		ctx:    tsCtx,
		cancel: cancel,
	}

	// 先订阅再启用，避免漏掉启用后的首批事件
	stream, err := ts.client.Fetch.RequestPaused(tsCtx)
	if err != nil {
		m.closeTargetSession(ts)
		return fmt.Errorf("订阅拦截事件失败: %w", err)
	}
	pattern := "*"
	err = ts.client.Fetch.Enable(ctx, &fetch.EnableArgs{Patterns: []fetch.RequestPattern{
		{URLPattern: &pattern, RequestStage: fetch.RequestStageRequest},
		{URLPattern: &pattern, RequestStage: fetch.RequestStageResponse},
	}})
	if err != nil {
		_ = stream.Close()
		m.closeTargetSession(ts)
		return fmt.Errorf("启用拦截失败: %w", err)
	}

	m.targets[target] = ts
	go m.consume(ts, stream)
	m.log.Info("目标已附加", "target", string(target), "url", targets[idx].URL)
	return nil
}

// DetachTarget 停止拦截并断开目标
func (m *Manager) DetachTarget(target model.TargetID) error {
	m.targetsMu.Lock()
	defer m.targetsMu.Unlock()
	ts, ok := m.targets[target]
	if !ok {
		return nil
	}
	delete(m.targets, target)
	delete(m.auto, target)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ts.client.Fetch.Disable(ctx); err != nil {
		m.log.Debug("关闭拦截失败", "target", string(target), "error", err)
	}
	m.closeTargetSession(ts)
	m.log.Info("目标已分离", "target", string(target))
	return nil
}

// Attached 当前已附加的目标
func (m *Manager) Attached() []model.TargetID {
	m.targetsMu.Lock()
	defer m.targetsMu.Unlock()
	out := make([]model.TargetID, 0, len(m.targets))
	for id := range m.targets {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Follow 跟随会话模式事件：进入录制或回放时附加目标，模式结束时分离自动附加的目标
func (m *Manager) Follow(ctx context.Context, events <-chan model.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if e.Type != model.EventMode || e.Target == "" {
				continue
			}
			m.follow(ctx, e)
		}
	}
}

func (m *Manager) follow(ctx context.Context, e model.Event) {
	if e.Mode == model.ModeNone {
		m.targetsMu.Lock()
		auto := m.auto[e.Target]
		m.targetsMu.Unlock()
		if auto {
			_ = m.DetachTarget(e.Target)
		}
		return
	}

	m.targetsMu.Lock()
	_, attached := m.targets[e.Target]
	m.targetsMu.Unlock()
	if attached {
		return
	}
	if err := m.AttachTarget(ctx, e.Target); err != nil {
		m.log.Err(err, "自动附加目标失败", "target", string(e.Target), "mode", string(e.Mode))
		return
	}
	m.targetsMu.Lock()
	m.auto[e.Target] = true
	m.targetsMu.Unlock()
}

// Close 分离全部目标并停止工作池
func (m *Manager) Close() error {
	for _, id := range m.Attached() {
		_ = m.DetachTarget(id)
	}
	m.cancel()
	return nil
}

// closeTargetSession 关闭目标连接
func (m *Manager) closeTargetSession(ts *targetSession) {
	ts.cancel()
	if err := ts.conn.Close(); err != nil {
		m.log.Debug("关闭目标连接失败", "target", string(ts.id), "error", err)
	}
}
