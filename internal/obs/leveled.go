package obs

import "github.com/rs/zerolog"

// LeveledLogger adapts zerolog to the printf-style leveled logger interface
// expected by SDK clients such as stripe-go.
type LeveledLogger struct {
	Logger zerolog.Logger
}

func (l LeveledLogger) Debugf(format string, v ...interface{}) {
	l.Logger.Debug().Msgf(format, v...)
}

func (l LeveledLogger) Infof(format string, v ...interface{}) {
	l.Logger.Info().Msgf(format, v...)
}

func (l LeveledLogger) Warnf(format string, v ...interface{}) {
	l.Logger.Warn().Msgf(format, v...)
}

func (l LeveledLogger) Errorf(format string, v ...interface{}) {
	l.Logger.Error().Msgf(format, v...)
}
