package service

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"
)

// JobResult records one attempt to run an operation (archive or
// metadata sync) for one registration. Workers store these in Redis
// so the HTTP front end can report on them.
type JobResult struct {
	// GUID is the registration the job works on.
	GUID string `json:"guid"`

	// Attempt is the number of the attempt to do this work.
	Attempt int `json:"attempt"`

	// Operation is the name of the operation: archive or metadata.
	Operation string `json:"operation"`

	// Host is the name of the network host on which the worker is running.
	Host string `json:"host"`

	// Pid is the pid of the worker doing this work.
	Pid int `json:"pid"`

	// ArchiveURL is the details page of the archive item, set when
	// the job succeeds.
	ArchiveURL string `json:"archive_url,omitempty"`

	// StartedAt describes when the attempt started. If
	// StartedAt.IsZero(), we have not yet attempted the job.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt describes when the attempt completed. Note that the
	// attempt may have completed without succeeding. Check the
	// Succeeded() method to see if the job actually succeeded.
	FinishedAt time.Time `json:"finished_at"`

	// Errors is a list of ProcessingError objects describing things
	// that went wrong during an operation. Don't write to this. It's
	// public so we can serialize it to/from JSON, but access is locked
	// internally with a mutex.
	Errors []*ProcessingError `json:"errors"`

	mutex *sync.RWMutex
}

func NewJobResult(guid, operation string) *JobResult {
	hostname, _ := os.Hostname()
	return &JobResult{
		GUID:      guid,
		Operation: operation,
		Host:      hostname,
		Pid:       os.Getpid(),
		Errors:    make([]*ProcessingError, 0),
		mutex:     &sync.RWMutex{},
	}
}

func (result *JobResult) Start() {
	result.StartedAt = time.Now().UTC()
}

func (result *JobResult) Started() bool {
	return !result.StartedAt.IsZero()
}

func (result *JobResult) Finish() {
	result.FinishedAt = time.Now().UTC()
}

func (result *JobResult) Finished() bool {
	return !result.FinishedAt.IsZero()
}

func (result *JobResult) RunTime() time.Duration {
	startTime := result.StartedAt
	if startTime.IsZero() {
		return time.Duration(0)
	}
	endTime := result.FinishedAt
	if endTime.IsZero() {
		endTime = time.Now()
	}
	return endTime.Sub(startTime)
}

func (result *JobResult) Succeeded() bool {
	result.mutex.RLock()
	succeeded := result.Finished() && len(result.Errors) == 0
	result.mutex.RUnlock()
	return succeeded
}

// Status returns a one-word summary for the status endpoint.
func (result *JobResult) Status() string {
	switch {
	case !result.Started():
		return "queued"
	case !result.Finished():
		return "running"
	case result.Succeeded():
		return "succeeded"
	}
	return "failed"
}

// AddError adds a ProcessingError to the result. The total number of
// errors is capped at 30, unless the error being added is fatal.
func (result *JobResult) AddError(err *ProcessingError) {
	result.mutex.Lock()
	defer result.mutex.Unlock()
	if len(result.Errors) > 29 && !err.IsFatal {
		return
	}
	result.Errors = append(result.Errors, err)
}

func (result *JobResult) ClearErrors() {
	result.mutex.Lock()
	result.Errors = make([]*ProcessingError, 0)
	result.mutex.Unlock()
}

// Reset clears everything but the guid, the attempt number and the
// operation name.
func (result *JobResult) Reset() {
	result.Host = ""
	result.Pid = 0
	result.ArchiveURL = ""
	result.StartedAt = time.Time{}
	result.FinishedAt = time.Time{}
	result.ClearErrors()
}

// HasErrors returns true if this result has any errors,
// fatal or not.
func (result *JobResult) HasErrors() bool {
	result.mutex.RLock()
	hasErrors := len(result.Errors) > 0
	result.mutex.RUnlock()
	return hasErrors
}

// FatalErrors returns a list of all of this result's fatal errors.
func (result *JobResult) FatalErrors() (errors []*ProcessingError) {
	result.mutex.RLock()
	for _, err := range result.Errors {
		if err.IsFatal {
			errors = append(errors, err)
		}
	}
	result.mutex.RUnlock()
	return errors
}

// HasFatalErrors returns true if this result has any fatal errors.
func (result *JobResult) HasFatalErrors() bool {
	return len(result.FatalErrors()) > 0
}

// FatalErrorMessage returns all fatal error messages as a single
// pipe-demilimited string.
func (result *JobResult) FatalErrorMessage() string {
	errors := result.FatalErrors()
	messages := make([]string, len(errors))
	for i, err := range errors {
		messages[i] = err.Message
	}
	return strings.Join(messages, " | ")
}

// JobResultFromJSON converts the JSON representation of a JobResult
// into a full-fledged object. This also initializes the internal
// mutex. If you deserialize without this function, you'll eventually
// run into nil pointer exceptions because the mutex won't exist.
func JobResultFromJSON(jsonData string) (*JobResult, error) {
	result := &JobResult{}
	err := json.Unmarshal([]byte(jsonData), result)
	if err != nil {
		return nil, err
	}
	if result.Errors == nil {
		result.Errors = make([]*ProcessingError, 0)
	}
	result.mutex = &sync.RWMutex{}
	return result, nil
}

func (result *JobResult) ToJSON() (string, error) {
	result.mutex.RLock()
	defer result.mutex.RUnlock()
	bytes, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
