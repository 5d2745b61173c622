package launcher

import (
	"fmt"
	"io"
	"time"

	"github.com/evalphobia/logrus_sentry"
	"github.com/sirupsen/logrus"
)

// sentryLevels are reported to Sentry when a DSN is configured.
var sentryLevels = []logrus.Level{
	logrus.PanicLevel,
	logrus.FatalLevel,
	logrus.ErrorLevel,
}

// newLogger builds the logger every command logs through.
func newLogger(cfg NodeConfig, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(out)

	verbosity := cfg.Logging.Verbosity
	if verbosity < int(logrus.PanicLevel) {
		verbosity = int(logrus.PanicLevel)
	}
	if verbosity > int(logrus.TraceLevel) {
		verbosity = int(logrus.TraceLevel)
	}
	log.SetLevel(logrus.Level(verbosity))

	switch cfg.Logging.Format {
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{
			ForceColors:     cfg.Logging.Color,
			DisableColors:   !cfg.Logging.Color,
			FullTimestamp:   true,
			TimestampFormat: "01-02|15:04:05.000",
		})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q (valid: text, json)", cfg.Logging.Format)
	}

	if cfg.SentryDSN != "" {
		hook, err := logrus_sentry.NewSentryHook(cfg.SentryDSN, sentryLevels)
		if err != nil {
			return nil, fmt.Errorf("sentry: %w", err)
		}
		hook.Timeout = 5 * time.Second
		hook.StacktraceConfiguration.Enable = true
		log.AddHook(hook)
	}
	return log, nil
}
