package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/helpdesk-workflow/internal/config"
)

// NewLogger builds the process logger. Production-like environments get JSON
// with sampling; development gets a colored console encoder. Every entry
// carries the service name, environment and version.
func NewLogger(cfg config.LoggerConfig, app config.AppConfig) (*zap.Logger, error) {
	zapCfg, err := loggerConfig(cfg, app)
	if err != nil {
		return nil, err
	}
	return zapCfg.Build()
}

func loggerConfig(cfg config.LoggerConfig, app config.AppConfig) (zap.Config, error) {
	level := zapcore.InfoLevel
	if raw := strings.TrimSpace(cfg.Level); raw != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(raw))
		if err != nil {
			return zap.Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		level = parsed
	}

	var zapCfg zap.Config
	if isDevelopment(app.Env) {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.MessageKey = "message"
		zapCfg.EncoderConfig.TimeKey = "ts"
	}
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.InitialFields = map[string]any{
		"service": app.Name,
		"env":     app.Env,
		"version": app.Version,
	}
	return zapCfg, nil
}

func isDevelopment(env string) bool {
	switch strings.ToLower(env) {
	case "", "dev", "development", "local", "test":
		return true
	}
	return false
}
