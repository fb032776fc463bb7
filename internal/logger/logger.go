package logger

import (
	"io"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin structured logger over zap that stamps every entry with
// the application name, environment and caller.
type Logger struct {
	appEnv  string
	appName string
	l       *zap.Logger
}

// New builds a JSON logger writing to the given writers (stdout when none).
// Unknown levels fall back to info.
func New(appName, appEnv, level string, writers ...io.Writer) *Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = timeEncoder("2006-01-02T15:04:05.000Z07:00", time.UTC)
	cfg.TimeKey = "timestamp"

	var syncers []zapcore.WriteSyncer
	if len(writers) == 0 {
		syncers = append(syncers, zapcore.AddSync(os.Stdout))
	}
	for _, w := range writers {
		syncers = append(syncers, zapcore.AddSync(w))
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg),
		zapcore.NewMultiWriteSyncer(syncers...),
		lvl,
	)

	return &Logger{
		appEnv:  appEnv,
		appName: appName,
		l:       zap.New(core),
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{l: zap.NewNop()}
}

func (l *Logger) Stop() error {
	return l.l.Sync()
}

func (l *Logger) Error(err error, fields ...map[string]any) {
	if err == nil {
		return
	}
	l.l.Error(err.Error(), l.fields(append(fields, map[string]any{"error": err.Error()})...)...)
}

func (l *Logger) Info(msg string, fields ...map[string]any) {
	l.l.Info(msg, l.fields(fields...)...)
}

func (l *Logger) Warning(msg string, fields ...map[string]any) {
	l.l.Warn(msg, l.fields(fields...)...)
}

func (l *Logger) Debug(msg string, fields ...map[string]any) {
	l.l.Debug(msg, l.fields(fields...)...)
}

func (l *Logger) Fatal(msg string, fields ...map[string]any) {
	l.l.Fatal(msg, l.fields(fields...)...)
}

func (l *Logger) fields(extra ...map[string]any) []zap.Field {
	file, line, funcName := callerParams()

	out := []zap.Field{
		zap.String("app_env", l.appEnv),
		zap.String("app_name", l.appName),
		zap.String("caller_file", file),
		zap.Int("caller_line", line),
		zap.String("caller_func", funcName),
	}
	for _, m := range extra {
		for k, v := range m {
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}

// callerParams reports the frame that called one of the level methods.
func callerParams() (file string, line int, funcName string) {
	pc, file, line, ok := runtime.Caller(3)
	if !ok {
		return "not_defined", 0, "not_defined"
	}
	return file, line, runtime.FuncForPC(pc).Name()
}

func timeEncoder(layout string, location *time.Location) zapcore.TimeEncoder {
	return func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.In(location).Format(layout))
	}
}
