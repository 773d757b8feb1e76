package logging

import (
	"io"
	"os"
	"strings"

	"github.com/labstack/gommon/log"

	"superstore/internal/config"
)

// jsonHeader makes gommon emit one JSON object per line.
const jsonHeader = `{"time":"${time_rfc3339}","level":"${level}","prefix":"${prefix}","file":"${short_file}","line":"${line}"}`

// textHeader is gommon's default layout without colors.
const textHeader = `${time_rfc3339} ${level} ${prefix} ${short_file}:${line}`

// New builds the service logger. It is also installed as echo's logger.
func New(prefix string, cfg config.LogConfig) *log.Logger {
	return NewWithOutput(prefix, cfg, os.Stdout)
}

// NewWithOutput is New writing to w.
func NewWithOutput(prefix string, cfg config.LogConfig, w io.Writer) *log.Logger {
	l := log.New(prefix)
	l.SetOutput(w)
	l.SetLevel(ParseLevel(cfg.Level))
	l.DisableColor()
	if cfg.Format == "json" {
		l.SetHeader(jsonHeader)
	} else {
		l.SetHeader(textHeader)
	}
	return l
}

// ParseLevel maps a level name to gommon's; unknown names mean INFO.
func ParseLevel(s string) log.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	}
	return log.INFO
}
