package session

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"reqreplay/internal/ctxkeys"
	"reqreplay/internal/logger"
	"reqreplay/pkg/model"
)

// Store 会话快照的持久化接口
type Store interface {
	Load(ctx context.Context) (model.Persisted, error)
	Save(ctx context.Context, p model.Persisted) error
}

// Manager 全局会话管理器，串行执行命令
type Manager struct {
	mu     sync.RWMutex
	state  State
	env    Env
	store  Store
	log    logger.Logger
	events chan model.Event
}

// Option 管理器选项
type Option func(*Manager)

// WithStore 设置持久化存储
func WithStore(st Store) Option {
	return func(m *Manager) { m.store = st }
}

// WithEnv 设置时钟与 ID 生成器
func WithEnv(env Env) Option {
	return func(m *Manager) { m.env = env }
}

// WithEventBuffer 设置事件通道容量
func WithEventBuffer(n int) Option {
	return func(m *Manager) { m.events = make(chan model.Event, n) }
}

// NewManager 创建会话管理器
func NewManager(l logger.Logger, opts ...Option) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	m := &Manager{
		state:  NewState(),
		env:    DefaultEnv(),
		log:    l,
		events: make(chan model.Event, 128),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Hydrate 从存储恢复会话状态
func (m *Manager) Hydrate(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	p, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("加载会话快照失败: %w", err)
	}
	m.mu.Lock()
	m.state = Hydrate(p)
	m.mu.Unlock()
	m.log.Info("会话状态已恢复", "recordings", len(p.Recordings), "originGroups", len(p.OriginGroups), "activeReplays", len(p.ActiveReplays))
	return nil
}

// Dispatch 执行命令，必要时持久化并通知模式变化
func (m *Manager) Dispatch(ctx context.Context, cmd Command) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.log.With("traceId", ctxkeys.TraceID(ctx), "command", commandName(cmd))
	prev := m.state
	next, res := Apply(prev, cmd, m.env)
	if res.Err != nil {
		log.Warn("命令执行失败", "error", res.Err)
		return res
	}
	m.state = next

	if persistent(cmd) {
		if m.store != nil {
			if err := m.store.Save(ctx, next.Persisted()); err != nil {
				log.Err(err, "保存会话快照失败")
			}
		}
		m.emitModeChanges(prev, next)
	}
	log.Debug("命令执行完成", "recordingID", string(res.RecordingID))
	return res
}

func (m *Manager) emitModeChanges(prev, next State) {
	targets := prev.Targets()
	for _, t := range next.Targets() {
		if !slices.Contains(targets, t) {
			targets = append(targets, t)
		}
	}
	now := m.env.now()
	for _, t := range targets {
		before, after := prev.ResolveModeFor(t), next.ResolveModeFor(t)
		if reflect.DeepEqual(before, after) {
			continue
		}
		e := model.Event{Type: model.EventMode, Target: t, Mode: after.Mode, Timestamp: now}
		select {
		case m.events <- e:
		default:
			m.log.Warn("事件通道已满，丢弃模式事件", "target", string(t), "mode", string(after.Mode))
		}
	}
}

// Events 模式变化事件
func (m *Manager) Events() <-chan model.Event {
	return m.events
}

// Snapshot 返回当前状态的深拷贝
func (m *Manager) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// ResolveModeFor 目标当前应执行的模式
func (m *Manager) ResolveModeFor(target model.TargetID) model.ModePayload {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ResolveModeFor(target)
}

// Summary 界面展示用快照
func (m *Manager) Summary() model.Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Summary()
}

// Recording 获取录制副本
func (m *Manager) Recording(id model.RecordingID) (model.Recording, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetRecording(id)
}

// ShouldCaptureResource 判断页面资源是否需要捕获
func (m *Manager) ShouldCaptureResource(target model.TargetID, url, resourceType string) (model.Kind, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ShouldCaptureResource(target, url, resourceType)
}

// Sniffing 判断目标是否处于嗅探中
func (m *Manager) Sniffing(target model.TargetID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.sniffs(target)
}
