// Package log provides the process-wide structured logger. The core
// coalescing packages never construct their own zap logger; they call the
// package-level sugar functions here so that log destination and level are
// configured exactly once per process.
package log

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int8

const (
	LevelDebug Level = Level(zap.DebugLevel)
	LevelInfo  Level = Level(zap.InfoLevel)
	LevelWarn  Level = Level(zap.WarnLevel)
	LevelError Level = Level(zap.ErrorLevel)
)

type Logger struct {
	logger *zap.Logger
	Sugar  *zap.SugaredLogger
}

var (
	instance *Logger
	once     sync.Once
	level    = LevelInfo
)

// InitLevel overrides the default level; must be called before the first
// GetInstance/Infof/... call to take effect.
func InitLevel(l Level) {
	level = l
}

func GetInstance() *Logger {
	once.Do(func() {
		instance = createLogger()
	})
	return instance
}

func createLogger() *Logger {
	env := resolveEnvironment()

	var zcfg zap.Config
	if shouldUseStderr(env) {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.Encoding = "json"
	}
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.Level = zap.NewAtomicLevelAt(zapcore.Level(level))

	zl, err := zcfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		fmt.Println("log: zap config build failed:", err)
		zl = zap.NewNop()
	}
	return &Logger{logger: zl, Sugar: zl.Sugar()}
}

// Debugf uses fmt.Sprintf to log a templated message.
func Debugf(template string, args ...interface{}) {
	GetInstance().Sugar.Debugf(template, args...)
}

// Infof uses fmt.Sprintf to log a templated message.
func Infof(template string, args ...interface{}) {
	GetInstance().Sugar.Infof(template, args...)
}

// Warnf uses fmt.Sprintf to log a templated message.
func Warnf(template string, args ...interface{}) {
	GetInstance().Sugar.Warnf(template, args...)
}

// Errorf uses fmt.Sprintf to log a templated message.
func Errorf(template string, args ...interface{}) {
	GetInstance().Sugar.Errorf(template, args...)
}
