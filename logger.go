package modbus

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a development-formatted zap.Logger at the given level
// string ("debug", "info", "warn", "error", or "none" to silence), mirroring
// a SetLevelFromString-style convenience but backed by a real
// structured logging library instead of a bespoke io.Writer that sniffs
// message prefixes.
func NewLogger(level string) (*zap.Logger, error) {
	if strings.EqualFold(level, "none") || level == "" {
		return zap.NewNop(), nil
	}
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("modbus: invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
