package api

import (
	"context"

	"reqreplay/internal/config"
	"reqreplay/internal/logger"
	"reqreplay/internal/service"
	"reqreplay/internal/session"
	"reqreplay/pkg/model"
)

// Service 服务接口
type Service interface {
	// Dispatch 执行会话命令
	Dispatch(ctx context.Context, cmd session.Command) session.Result

	// Summary 获取会话摘要
	Summary() model.Summary

	// Recording 获取录制
	Recording(id model.RecordingID) (model.Recording, bool)

	// ResolveModeFor 获取目标当前模式
	ResolveModeFor(target model.TargetID) model.ModePayload

	// ListTargets 列出目标
	ListTargets(ctx context.Context) ([]model.TargetInfo, error)

	// AttachTarget 附加目标
	AttachTarget(ctx context.Context, target model.TargetID) error

	// DetachTarget 分离目标
	DetachTarget(target model.TargetID) error

	// TrafficEvents 订阅回放与录制事件
	TrafficEvents() <-chan model.Event

	// ExportHAR 导出 HAR
	ExportHAR(id model.RecordingID) ([]byte, error)

	// ImportHAR 导入 HAR
	ImportHAR(ctx context.Context, data []byte, name string) (model.RecordingID, error)

	// Run 跟随模式变化附加目标，直到 ctx 结束
	Run(ctx context.Context)

	// Close 释放资源
	Close() error
}

// NewService 创建并返回服务接口实现
func NewService(ctx context.Context, cfg *config.Config, l logger.Logger) (Service, error) {
	return service.New(ctx, cfg, l)
}
