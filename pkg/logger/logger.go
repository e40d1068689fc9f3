package logger

import (
	"context"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TraceIdKey 上游手动透传 trace id 时使用的 ctx key，优先级低于 otel span
const TraceIdKey = "trace_id"

type depositKey struct{}

// 全局 Logger 实例，Init 之前是 Nop，测试里不用初始化
var (
	Log   = zap.NewNop()
	level = zap.NewAtomicLevelAt(zap.InfoLevel)
)

type Config struct {
	Service string
	Level   string // debug, info, warn, error
	File    string // 为空则写 logs/{service}.log
	NoFile  bool   // 只写控制台 (容器里常用)
}

// Init 初始化日志组件
func Init(c Config) {
	SetLevel(c.Level)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.MessageKey = "msg"

	writeSyncers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if !c.NoFile {
		if f := openLogFile(c.Service, c.File); f != nil {
			writeSyncers = append(writeSyncers, zapcore.AddSync(f))
		}
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(writeSyncers...),
		level,
	)
	// 封装了一层，Skip 1 行号才准
	Log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).
		With(zap.String("service", c.Service))
}

// 打开失败只写控制台，不中断启动
func openLogFile(service, file string) *os.File {
	if file == "" {
		file = filepath.Join("logs", service+".log")
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return nil
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil
	}
	return f
}

// SetLevel 热更新日志级别，非法值忽略
func SetLevel(l string) {
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(l)); err != nil {
		return
	}
	level.SetLevel(zl)
}

// WithDeposit 把 deposit id 放进 ctx，之后该 ctx 打的日志都会带 deposit_id
func WithDeposit(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, depositKey{}, id)
}

func Info(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Info(msg, withCtx(ctx, fields)...)
}

func Error(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Error(msg, withCtx(ctx, fields)...)
}

func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Warn(msg, withCtx(ctx, fields)...)
}

func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Debug(msg, withCtx(ctx, fields)...)
}

// Fatal 会调用 os.Exit
func Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Fatal(msg, withCtx(ctx, fields)...)
}

func withCtx(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return fields
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	} else if traceID, ok := ctx.Value(TraceIdKey).(string); ok && traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if id, ok := ctx.Value(depositKey{}).(string); ok && id != "" {
		fields = append(fields, zap.String("deposit_id", id))
	}
	return fields
}

// Sync 刷新缓冲区 (main 里 defer 调用)
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
