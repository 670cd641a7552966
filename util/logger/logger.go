package logger

import (
	"fmt"
	stdlog "log"
	"os"
	"path"
	"path/filepath"

	"github.com/op/go-logging"
)

/*
InitLogger creates and returns a logger suitable for logging
human-readable messages. Also returns the path to the log file.
Each process logs to <logDir>/<process name>.log.
*/
func InitLogger(logDir string, logLevel logging.Level) (*logging.Logger, string, error) {
	processName := path.Base(os.Args[0])
	filename := filepath.Join(logDir, fmt.Sprintf("%s.log", processName))
	writer, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, "", fmt.Errorf("Cannot open log file '%s': %w", filename, err)
	}
	log := logging.MustGetLogger(processName)
	format := logging.MustStringFormatter("[%{level}] %{message}")
	logBackend := logging.NewLogBackend(writer, "", stdlog.LstdFlags|stdlog.LUTC)
	leveled := logging.AddModuleLevel(logging.NewBackendFormatter(logBackend, format))
	leveled.SetLevel(logLevel, processName)
	log.SetBackend(leveled)
	return log, filename, nil
}
