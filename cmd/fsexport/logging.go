package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func getConsoleWriter(out io.Writer) zerolog.ConsoleWriter {
	writer := zerolog.ConsoleWriter{Out: out}
	writer.TimeFormat = "02.01.2006 15:04:05 MST"
	writer.PartsOrder = []string{
		zerolog.TimestampFieldName,
		zerolog.LevelFieldName,
		"subject",
		"session",
		zerolog.MessageFieldName,
	}
	writer.FieldsExclude = []string{"subject", "session"}
	writer.FormatFieldValue = func(value interface{}) string {
		if value == nil {
			return ""
		}
		str, ok := value.(string)
		// tool output is multi-line, print it as is
		if ok && strings.Contains(str, "\\n") {
			unquoted, err := strconv.Unquote(str)
			if err == nil {
				return "\n" + unquoted
			}
		}

		return fmt.Sprintf("%v", value)
	}

	return writer
}

// setupLogger configures the global logger. Console output is the default, JSON lines are meant for batch systems.
func setupLogger(out io.Writer, json bool) {
	zerolog.DurationFieldUnit = time.Second
	if json {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()

		return
	}
	log.Logger = zerolog.New(getConsoleWriter(out)).With().Timestamp().Logger()
}
