// Package service 组装各组件：配置、日志、存储、会话管理器与 DevTools 拦截。
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reqreplay/internal/capture"
	"reqreplay/internal/cdp"
	"reqreplay/internal/config"
	"reqreplay/internal/handler"
	"reqreplay/internal/har"
	"reqreplay/internal/logger"
	"reqreplay/internal/session"
	"reqreplay/internal/storage"
	"reqreplay/pkg/model"
)

// ErrEmptyImport HAR 中没有可导入的条目
var ErrEmptyImport = errors.New("HAR 中没有可导入的条目")

// Service 应用服务
type Service struct {
	log     logger.Logger
	db      *storage.DB
	session *session.Manager
	cdp     *cdp.Manager
	traffic chan model.Event
}

// Option 服务选项
type Option func(*options)

type options struct {
	env *session.Env
}

// WithEnv 指定会话时钟与 ID 生成器
func WithEnv(env session.Env) Option {
	return func(o *options) { o.env = &env }
}

// New 按配置创建服务并恢复持久化的会话状态
func New(ctx context.Context, cfg *config.Config, l logger.Logger, opts ...Option) (*Service, error) {
	if l == nil {
		l = logger.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db, err := storage.NewDB(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix, l)
	if err != nil {
		return nil, err
	}

	sessOpts := []session.Option{session.WithStore(storage.NewSnapshotRepo(db))}
	if o.env != nil {
		sessOpts = append(sessOpts, session.WithEnv(*o.env))
	}
	mgr := session.NewManager(l.With("module", "session"), sessOpts...)
	if err := mgr.Hydrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	trafficEvents := make(chan model.Event, 256)
	h := handler.New(handler.Config{
		Controller: mgr,
		Fetcher:    capture.New(time.Duration(cfg.Capture.FetchTimeoutMS)*time.Millisecond, l.With("module", "capture")),
		Events:     trafficEvents,
		Logger:     l.With("module", "handler"),
	})
	cdpMgr := cdp.New(h, cdp.Options{
		DevToolsURL:      cfg.DevTools.URL,
		ProcessTimeoutMS: cfg.DevTools.ProcessTimeoutMS,
		Workers:          cfg.DevTools.Workers,
		Logger:           l.With("module", "cdp"),
	})

	l.Info("服务已启动", "dsn", cfg.Sqlite.Dsn, "devtools", cfg.DevTools.URL)
	return &Service{
		log:     l,
		db:      db,
		session: mgr,
		cdp:     cdpMgr,
		traffic: trafficEvents,
	}, nil
}

// Close 分离所有目标并关闭数据库
func (s *Service) Close() error {
	_ = s.cdp.Close()
	return s.db.Close()
}

// Run 跟随会话模式变化自动附加或分离目标，直到 ctx 结束
func (s *Service) Run(ctx context.Context) {
	s.cdp.Follow(ctx, s.session.Events())
}

// Dispatch 执行会话命令
func (s *Service) Dispatch(ctx context.Context, cmd session.Command) session.Result {
	return s.session.Dispatch(ctx, cmd)
}

// Summary 会话摘要
func (s *Service) Summary() model.Summary {
	return s.session.Summary()
}

// Recording 获取录制
func (s *Service) Recording(id model.RecordingID) (model.Recording, bool) {
	return s.session.Recording(id)
}

// ResolveModeFor 目标当前应执行的模式
func (s *Service) ResolveModeFor(target model.TargetID) model.ModePayload {
	return s.session.ResolveModeFor(target)
}

// ListTargets 列出浏览器页面目标
func (s *Service) ListTargets(ctx context.Context) ([]model.TargetInfo, error) {
	return s.cdp.ListTargets(ctx)
}

// AttachTarget 附加目标
func (s *Service) AttachTarget(ctx context.Context, target model.TargetID) error {
	return s.cdp.AttachTarget(ctx, target)
}

// DetachTarget 分离目标
func (s *Service) DetachTarget(target model.TargetID) error {
	return s.cdp.DetachTarget(target)
}

// TrafficEvents 回放命中与录制捕获事件
func (s *Service) TrafficEvents() <-chan model.Event {
	return s.traffic
}

// ExportHAR 将录制导出为 HAR
func (s *Service) ExportHAR(id model.RecordingID) ([]byte, error) {
	rec, ok := s.session.Recording(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrRecordingNotFound, id)
	}
	return har.Export(rec)
}

// ImportHAR 从 HAR 创建录制，name 为空时使用默认命名
func (s *Service) ImportHAR(ctx context.Context, data []byte, name string) (model.RecordingID, error) {
	entries, err := har.Import(data)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", ErrEmptyImport
	}
	res := s.session.Dispatch(ctx, session.ImportRecording{Name: name, Entries: entries, SourceURL: har.SourceURL(data)})
	s.log.Info("HAR 导入完成", "recordingID", string(res.RecordingID), "entries", len(entries))
	return res.RecordingID, res.Err
}
