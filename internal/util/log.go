package util

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var L = zap.NewNop()
var S = L.Sugar()
var setupLock sync.Mutex

// SetupLog 安装全局日志器。level 为空时使用开发模式（debug 级别）。
func SetupLog(level string) error {
	setupLock.Lock()
	defer setupLock.Unlock()

	var cfg zap.Config
	if level == "" || level == "debug" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return err
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build()
	if err != nil {
		return err
	}
	L = l
	S = L.Sugar()
	return nil
}
