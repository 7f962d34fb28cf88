package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New инициализирует логгер. В продакшн окружении (GIN_MODE=release) пишет JSON, иначе текст.
// Пустой или нераспознанный level означает info в продакшн и debug в остальных окружениях.
func New(output io.Writer, level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(output)

	release := os.Getenv("GIN_MODE") == "release"
	if release {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
		l.SetLevel(logrus.InfoLevel)
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		l.SetLevel(logrus.DebugLevel)
	}

	if parsed, err := logrus.ParseLevel(level); err == nil && level != "" {
		l.SetLevel(parsed)
	}
	return l
}
