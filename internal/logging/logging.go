// Package logging builds the service logger.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// New returns a logrus logger writing to out. format "json" emits one JSON
// object per line; anything else uses the colored console format.
func New(level, format string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		log.SetFormatter(&ConsoleFormatter{})
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}

// ConsoleFormatter prints "time LEVEL: message key=value ..." with colored levels.
type ConsoleFormatter struct{}

func (f *ConsoleFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	level := strings.ToUpper(entry.Level.String()) + ":"
	switch entry.Level {
	case logrus.TraceLevel, logrus.DebugLevel:
		level = color.MagentaString(level)
	case logrus.InfoLevel:
		level = color.HiBlueString(level)
	case logrus.WarnLevel:
		level = color.YellowString(level)
	default:
		level = color.RedString(level)
	}

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s %s", entry.Time.Format("15:04:05.000"), level, entry.Message)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", color.GreenString(k), entry.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}
