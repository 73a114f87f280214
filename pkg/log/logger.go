package log

import (
	"strings"
	"sync"

	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

var (
	providerMu sync.RWMutex
	provider   LoggerProvider
)

// SetProvider replaces the global provider. When p is a ZerologProvider,
// warnings raised through pkg/errors are routed to it as well.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	provider = p
	providerMu.Unlock()

	if zp, ok := p.(*ZerologProvider); ok {
		ftErrors.SetZerologWarnFunc(zp.warn)
	} else {
		ftErrors.SetZerologWarnFunc(nil)
	}
}

func currentProvider() LoggerProvider {
	providerMu.RLock()
	p := provider
	providerMu.RUnlock()
	if p != nil {
		return p
	}

	providerMu.Lock()
	defer providerMu.Unlock()
	if provider == nil {
		zp := NewZerologProvider(LevelInfo)
		provider = zp
		ftErrors.SetZerologWarnFunc(zp.warn)
	}
	return provider
}

// GetLogger returns the global logger.
func GetLogger() Logger {
	return currentProvider().GetLogger()
}

// GetLoggerWithName returns the global logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	return currentProvider().GetLoggerWithName(name)
}

// LogError logs err at error level on the global logger.
func LogError(err error, msg string, fields ...any) {
	GetLogger().Error(msg, append([]any{err}, fields...)...)
}

// ToLogLevel parses a level name. It accepts debug, info, warn and error.
func ToLogLevel(level string) Level {
	lv, err := ParseLevel(level)
	if err != nil {
		panic(err.Error())
	}
	return lv
}

// ParseLevel is ToLogLevel returning an error instead of panicking.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, ftErrors.Newf("invalid log level: %s", level)
	}
}
