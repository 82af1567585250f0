package logger

import (
	"fmt"
	"log"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is replaced by Init; the nop default keeps validation paths that
// run before Init (and package tests) from dereferencing nil.
var Log = zap.NewNop()

func Init(logFilePath string) error {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	outputs := []string{"stderr"}
	if logFilePath != "" {
		outputs = append(outputs, logFilePath)
	}
	cfg.OutputPaths = outputs

	logger, err := cfg.Build()
	if err != nil {
		log.Printf("logger: failed to initialize: %v", err)
		return fmt.Errorf("logger: failed to initialize: %w", err)
	}

	Log = logger
	return nil
}

func Sync() error {
	if Log == nil {
		return nil
	}
	if err := Log.Sync(); err != nil && !strings.Contains(err.Error(), "inappropriate ioctl for device") {
		log.Printf("logger: failed to sync: %v", err)
		return fmt.Errorf("logger: failed to sync: %w", err)
	}
	return nil
}
