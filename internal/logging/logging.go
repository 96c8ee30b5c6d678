package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ConfeDigital/ConfeApp-sub003/internal/utils"
)

// New builds the engine logger. The level comes from CONFEAPP_LOG_LEVEL
// ("debug", "info", "warn", "error"), defaulting to info. Construction never
// fails; on a bad level the default is used.
func New() *zap.Logger {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(utils.SafeEnv("CONFEAPP_LOG_LEVEL", "info"))
	if err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
