package logging

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger. Unknown levels fall back to
// info.
func Setup(level, format string) {
	SetupWithOutput(os.Stderr, level, format)
}

func SetupWithOutput(out io.Writer, level, format string) {
	log.SetOutput(out)

	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		log.Warnf("[logging] unknown log level %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
