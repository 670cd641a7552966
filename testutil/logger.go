package testutil

import (
	"io"
	stdlog "log"
	"os"

	"github.com/op/go-logging"
)

// GetLogger returns a logger for tests. It writes nowhere unless
// PIGEON_TEST_LOG is set, in which case it writes to stderr.
func GetLogger(name string) *logging.Logger {
	var writer io.Writer = io.Discard
	if os.Getenv("PIGEON_TEST_LOG") != "" {
		writer = os.Stderr
	}
	format := logging.MustStringFormatter("[%{level}] %{message}")
	backend := logging.AddModuleLevel(
		logging.NewBackendFormatter(logging.NewLogBackend(writer, "", stdlog.LstdFlags), format))
	backend.SetLevel(logging.DEBUG, name)
	logger := logging.MustGetLogger(name)
	logger.SetBackend(backend)
	return logger
}
