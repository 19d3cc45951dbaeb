package bootloader

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// consoleLogger writes human readable lines to the firmware console. There
// is no wall clock worth reporting before the kernel runs.
func consoleLogger(w io.Writer) *zap.Logger {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = zapcore.OmitKey
	cfg.CallerKey = zapcore.OmitKey
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(w), zap.DebugLevel)
	return zap.New(core, zap.ErrorOutput(zapcore.AddSync(io.Discard)))
}
