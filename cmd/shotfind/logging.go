package main

import (
	"fmt"
	"io"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/shotfind/internal/errors"
)

// runHook stamps every entry with the invocation's run id.
type runHook struct {
	id string
}

func (h runHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h runHook) Fire(e *logrus.Entry) error {
	e.Data["run"] = h.id
	return nil
}

// setupLogging configures the standard logger and returns the run id.
// verbose forces debug level regardless of level.
func setupLogging(out io.Writer, level string, verbose bool) (string, error) {
	lvl := logrus.InfoLevel
	if level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return "", errors.NewInvalidRequest(fmt.Sprintf("invalid log_level %q", level))
		}
		lvl = parsed
	}
	if verbose {
		lvl = logrus.DebugLevel
	}

	logrus.SetOutput(out)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(lvl)

	id := ulid.Make().String()
	hooks := make(logrus.LevelHooks)
	hooks.Add(runHook{id: id})
	logrus.StandardLogger().ReplaceHooks(hooks)
	return id, nil
}
