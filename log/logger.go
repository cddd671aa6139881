// Package log writes JSON log lines tagged with the identity of the report
// being produced. Entries carry report_id and attempt, parent_report_id on
// retries, and provider and model once a provider is bound.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/RAGGA-TIME/lifekline/types"
)

// Logger is a leveled JSON logger with report context. Per-entry fields
// are nested under "fields". The zero value is not usable.
type Logger struct {
	zap     *zap.Logger
	level   zap.AtomicLevel
	context []zap.Field
}

// NewLogger returns a debug-level logger writing to stderr. A nil meta
// yields a logger without report fields.
func NewLogger(meta *types.ReportMeta) *Logger {
	return NewLoggerWithWriter(meta, os.Stderr)
}

// NewLoggerWithWriter is NewLogger writing to w.
func NewLoggerWithWriter(meta *types.ReportMeta, w io.Writer) *Logger {
	return build(w, zap.NewAtomicLevelAt(zapcore.DebugLevel), reportFields(meta))
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{zap: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.FatalLevel)}
}

func reportFields(meta *types.ReportMeta) []zap.Field {
	if meta == nil {
		return nil
	}
	fields := []zap.Field{
		zap.String("report_id", meta.ReportID),
		zap.Int("attempt", meta.Attempt),
	}
	if meta.ParentReportID != nil {
		fields = append(fields, zap.String("parent_report_id", *meta.ParentReportID))
	}
	return fields
}

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:     "timestamp",
	LevelKey:    "level",
	MessageKey:  "message",
	EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
	EncodeLevel: zapcore.LowercaseLevelEncoder,
}

func build(w io.Writer, level zap.AtomicLevel, context []zap.Field) *Logger {
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(w), level)
	return &Logger{zap: zap.New(core).With(context...), level: level, context: context}
}

// ParseLevel accepts debug, info, warn and error.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("invalid log level %q (want debug, info, warn or error)", s)
}

// SetLevel changes the minimum level of l and every logger derived from it.
func (l *Logger) SetLevel(level zapcore.Level) {
	l.level.SetLevel(level)
}

// WithOutput returns a logger writing to w with the same context and level.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	return build(w, l.level, l.context)
}

// WithProvider adds provider and, when set, model to every entry.
func (l *Logger) WithProvider(provider, model string) *Logger {
	added := []zap.Field{zap.String("provider", provider)}
	if model != "" {
		added = append(added, zap.String("model", model))
	}
	return &Logger{
		zap:     l.zap.With(added...),
		level:   l.level,
		context: append(l.context[:len(l.context):len(l.context)], added...),
	}
}

func (l *Logger) write(level zapcore.Level, msg string, fields map[string]any) {
	ce := l.zap.Check(level, msg)
	if ce == nil {
		return
	}
	if len(fields) == 0 {
		ce.Write()
		return
	}
	ce.Write(zap.Any("fields", fields))
}

func (l *Logger) Debug(msg string, fields map[string]any) { l.write(zapcore.DebugLevel, msg, fields) }
func (l *Logger) Info(msg string, fields map[string]any)  { l.write(zapcore.InfoLevel, msg, fields) }
func (l *Logger) Warn(msg string, fields map[string]any)  { l.write(zapcore.WarnLevel, msg, fields) }
func (l *Logger) Error(msg string, fields map[string]any) { l.write(zapcore.ErrorLevel, msg, fields) }

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}
