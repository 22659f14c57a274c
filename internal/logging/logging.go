// Package logging builds the run's zap logger: console output always, plus a
// per-run log file when a directory is configured. Components receive named
// sub-loggers per category so a run's log can be filtered by subsystem.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"receiptfix/internal/config"
)

// Category names a log subsystem.
type Category string

const (
	CategoryBoot      Category = "boot"
	CategoryParse     Category = "parse"
	CategoryPartition Category = "partition"
	CategoryWorkflow  Category = "workflow"
	CategoryJob       Category = "job"
	CategoryDrain     Category = "drain"
	CategoryLedger    Category = "ledger"
	CategoryBrowser   Category = "browser"
)

// New builds the base logger from config. The caller owns Sync.
func New(cfg config.LoggingConfig, runID string) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stderr),
			level,
		),
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		name := fmt.Sprintf("run-%s-%s.log", time.Now().Format("20060102-150405"), shortID(runID))
		f, err := os.OpenFile(filepath.Join(cfg.Dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open run log: %w", err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg),
			zapcore.Lock(f),
			level,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	return logger.With(zap.String("run_id", shortID(runID))), nil
}

// For returns the category-named sugared logger components receive.
func For(base *zap.Logger, cat Category) *zap.SugaredLogger {
	return base.Named(string(cat)).Sugar()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
