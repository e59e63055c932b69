package configs

import (
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// SetLogLevel parses a logrus level name and applies it globally.
func SetLogLevel(level string) error {
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		return Errorf("invalid log level %q", level)
	}
	logrus.SetLevel(lv)
	ShowDebugInfo = lv >= logrus.DebugLevel
	return nil
}

func DPrintf(format string, a ...interface{}) {
	if ShowDebugInfo {
		logrus.Debugf(format, a...)
	}
}

func TPrintf(format string, a ...interface{}) {
	logrus.Tracef(format, a...)
}

func JToString(v interface{}) string {
	byt, _ := json.Marshal(v)
	return string(byt)
}

func Assert(cond bool, msg string) bool {
	if !cond {
		panic("[ERROR] Assert error at " + msg + "\n")
	}
	return cond
}

func Warn(cond bool, msg string) bool {
	if ShowWarnings && !cond {
		logrus.Warn(msg)
	}
	return cond
}
