// Package ctxkeys 定义在 context 中传递的键
package ctxkeys

import (
	"context"

	"github.com/google/uuid"
)

// TraceIDKey 请求链路 ID
type TraceIDKey struct{}

// WithTraceID 为上下文附加链路 ID，id 为空时生成新的
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, TraceIDKey{}, id)
}

// TraceID 读取链路 ID
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(TraceIDKey{}).(string)
	return id
}
