package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 劫持日志输出到内存 Buffer
func hijack() *bytes.Buffer {
	buffer := &bytes.Buffer{}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.MessageKey = "msg"
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(buffer), level)
	Log = zap.New(core)
	return buffer
}

func TestLogger_Info_WithTraceAndDeposit(t *testing.T) {
	SetLevel("info")
	buffer := hijack()

	ctx := context.WithValue(context.Background(), TraceIdKey, "test-trace-12345")
	ctx = WithDeposit(ctx, "dep-1")
	Info(ctx, "deposit completed", zap.String("amount_out", "99.00"))

	var entry map[string]interface{}
	assert.NoError(t, json.Unmarshal(buffer.Bytes(), &entry), "日志输出必须是合法的 JSON")
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "deposit completed", entry["msg"])
	assert.Equal(t, "99.00", entry["amount_out"])
	assert.Equal(t, "test-trace-12345", entry["trace_id"])
	assert.Equal(t, "dep-1", entry["deposit_id"])
}

func TestLogger_SpanTraceIDWins(t *testing.T) {
	SetLevel("info")
	buffer := hijack()

	tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = context.WithValue(ctx, TraceIdKey, "manual")

	Warn(ctx, "ledger slow")

	var entry map[string]interface{}
	_ = json.Unmarshal(buffer.Bytes(), &entry)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
}

func TestLogger_Error_NoTraceID(t *testing.T) {
	SetLevel("info")
	buffer := hijack()

	Error(context.Background(), "数据库连接失败", zap.String("db", "mysql"))

	var entry map[string]interface{}
	_ = json.Unmarshal(buffer.Bytes(), &entry)
	_, exists := entry["trace_id"]
	assert.False(t, exists, "没有 TraceID 的 Context 不应该输出 trace_id 字段")
	assert.Equal(t, "error", entry["level"])
}

func TestSetLevel_HotReload(t *testing.T) {
	buffer := hijack()

	SetLevel("error")
	Info(context.Background(), "dropped")
	assert.Empty(t, buffer.String())

	SetLevel("not-a-level") // 非法值不生效
	Info(context.Background(), "still dropped")
	assert.Empty(t, buffer.String())

	SetLevel("debug")
	Debug(context.Background(), "kept")
	assert.Contains(t, buffer.String(), "kept")
	SetLevel("info")
}
