package safe

import (
	"context"
	"fmt"
	"runtime/debug"

	"anchorex.com/pkg/logger"
	"go.uber.org/zap"
)

func report(ctx context.Context, r any) {
	stack := string(debug.Stack())
	if logger.Log != nil && logger.Log.Core().Enabled(zap.ErrorLevel) {
		logger.Error(ctx, "🚨 PANIC RECOVERED",
			zap.Any("panic", r),
			zap.String("stack", stack),
		)
		return
	}
	fmt.Printf("🚨 PANIC: %v\nStack: %s\n", r, stack)
}

// Go 安全启动协程
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				report(context.Background(), r)
			}
		}()
		fn()
	}()
}

// GoCtx 安全启动携带 context 的协程，便于在日志中保留链路信息。
func GoCtx(ctx context.Context, fn func(ctx context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				report(ctx, r)
			}
		}()
		fn(ctx)
	}()
}

// Run 同步执行 fn，panic 转成 error 返回，调用方不会被带崩
func Run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			report(ctx, r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
