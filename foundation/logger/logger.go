// Package logger provides a convience function to constructing a logger
// for use. This is required not just for applications but for testing.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ErrorFile describes the rotating file that receives a copy of every
// error level log entry. An empty Path disables the file.
type ErrorFile struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New constructs a Sugared Logger that writes to stdout and
// provides human readable timestamps.
func New(service string, outputPaths ...string) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()

	config.OutputPaths = []string{"stdout"}
	if outputPaths != nil {
		config.OutputPaths = outputPaths
	}

	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	config.InitialFields = map[string]any{
		"service": service,
	}

	log, err := config.Build(zap.WithCaller(true))
	if err != nil {
		return nil, err
	}

	return log.Sugar(), nil
}

// WithErrorFile returns a logger that tees every error level entry into
// the rotating file described by ef.
func WithErrorFile(log *zap.SugaredLogger, ef ErrorFile) *zap.SugaredLogger {
	if ef.Path == "" {
		return log
	}

	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   ef.Path,
		MaxSize:    ef.MaxSizeMB,
		MaxBackups: ef.MaxBackups,
		MaxAge:     ef.MaxAgeDays,
		Compress:   ef.Compress,
	})

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), w, zapcore.ErrorLevel)

	tee := func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	}

	return log.Desugar().WithOptions(zap.WrapCore(tee)).Sugar()
}

// NewStderr constructs a logger for command line tooling where stdout
// is reserved for command output.
func NewStderr(service string) (*zap.SugaredLogger, error) {
	return New(service, "stderr")
}
