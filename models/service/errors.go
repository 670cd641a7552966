package service

import (
	"fmt"
	"runtime"
)

type ProcessingError struct {
	GUID      string `json:"guid"`
	IsFatal   bool   `json:"is_fatal"`
	Message   string `json:"message"`
	Operation string `json:"operation"`
	Source    string `json:"source"`
}

// NewProcessingError returns a new ProcessingError. Param guid is the
// registration being processed when the error occurred. Fatal errors
// are those that will happen again if we retry the job, such as a
// withdrawn registration or an invalid bag. Network errors are
// usually not fatal.
func NewProcessingError(guid, operation, message string, isFatal bool) *ProcessingError {
	_, filename, line, ok := runtime.Caller(1)
	source := "unknown:0"
	if ok {
		source = fmt.Sprintf("%s:%d", filename, line)
	}
	return &ProcessingError{
		GUID:      guid,
		IsFatal:   isFatal,
		Message:   message,
		Operation: operation,
		Source:    source,
	}
}

func (e *ProcessingError) Error() string {
	severity := "non-fatal"
	if e.IsFatal {
		severity = "fatal"
	}
	source := "unknown:0"
	if e.Source != "" {
		source = e.Source
	}
	return fmt.Sprintf("(guid %s) (operation: %s) (message: %s) (severity: %s) "+
		"(source: %s)", e.GUID, e.Operation, e.Message, severity, source)
}
