package common

import (
	"fmt"
	"runtime"
	"strings"
)

type DetailedError interface {
	Detail() string
}

// Error is a custom error type that includes some additional fields
// to help us debug. See the Detail method.
type Error struct {
	Err     error
	File    string
	IsFatal bool
	Line    int
	Message string
}

func NewError(message string, err error, isFatal bool) *Error {
	_, file, line, _ := runtime.Caller(1)
	return &Error{
		Err:     err,
		File:    file,
		IsFatal: isFatal,
		Line:    line,
		Message: message,
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	return e.Message
}

// This returns a detailed error message.
func (e *Error) Detail() string {
	prefix := ""
	if e.IsFatal {
		prefix = "FATAL: "
	}
	underlyingError := ""
	if e.Err != nil {
		underlyingError = fmt.Sprintf("(Underlying error: %s)", e.Err.Error())
	}
	return fmt.Sprintf("%s%s [%s:%d] %s",
		prefix, e.Message, e.File, e.Line, underlyingError)
}

// HttpError is a custom error struct that captures details of errors
// coming from the archive's metadata API, DataCite and nsqd.
type HttpError struct {
	Err        error
	Message    string
	Method     string
	StatusCode int
	URL        string
}

func NewHttpError(message string, err error, method, url string, statusCode int) *HttpError {
	return &HttpError{
		Err:        err,
		Message:    message,
		Method:     method,
		URL:        url,
		StatusCode: statusCode,
	}
}

func (e *HttpError) Unwrap() error {
	return e.Err
}

func (e *HttpError) Error() string {
	return e.Message
}

func (e *HttpError) Detail() string {
	underlyingError := ""
	if e.Err != nil {
		underlyingError = fmt.Sprintf("(Underlying error: %s)", e.Err.Error())
	}
	return fmt.Sprintf(
		"%s: %s returned status %d. Message: %s %s",
		e.Method, e.URL, e.StatusCode, e.Message, underlyingError)
}

// UpstreamHTTPError means the OSF API answered with a status >= 400
// that we don't retry.
type UpstreamHTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s",
		e.Method, e.URL, e.StatusCode, e.Body)
}

// RateLimitedError means the API kept answering 429 until the retry
// policy ran out of attempts.
type RateLimitedError struct {
	URL      string
	Attempts int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s still rate limited after %d attempts", e.URL, e.Attempts)
}

// ParseError means a response body or a page sequence could not be
// understood.
type ParseError struct {
	URL     string
	Message string
	Err     error
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot parse %s: %s: %s", e.URL, e.Message, e.Err.Error())
	}
	return fmt.Sprintf("cannot parse %s: %s", e.URL, e.Message)
}

type RegistrationWithdrawnError struct {
	GUID string
}

func (e *RegistrationWithdrawnError) Error() string {
	return fmt.Sprintf("registration %s has been withdrawn and will not be archived", e.GUID)
}

// MalformedMetadataError means a document lacks a field we need to
// build an archive metadata record, or a caller sent an unusable patch.
type MalformedMetadataError struct {
	Field   string
	Message string
}

func (e *MalformedMetadataError) Error() string {
	if e.Field == "" {
		return "malformed metadata: " + e.Message
	}
	return fmt.Sprintf("malformed metadata (%s): %s", e.Field, e.Message)
}

// PackageIntegrityError lists every problem found while validating
// a bag.
type PackageIntegrityError struct {
	BagDir   string
	Problems []string
}

func (e *PackageIntegrityError) Error() string {
	return fmt.Sprintf("bag %s is invalid: %s", e.BagDir, strings.Join(e.Problems, "; "))
}

// InvalidMetadataKeyError names the keys of a metadata patch that
// are not on the syncable list.
type InvalidMetadataKeyError struct {
	Keys []string
}

func (e *InvalidMetadataKeyError) Error() string {
	return fmt.Sprintf("metadata keys not allowed: %s", strings.Join(e.Keys, ", "))
}

// ItemLocateError means the archive could not find the item, or
// found it dark.
type ItemLocateError struct {
	Identifier string
	Message    string
}

func (e *ItemLocateError) Error() string {
	return fmt.Sprintf("cannot locate archive item %s: %s", e.Identifier, e.Message)
}

// PIDNotFoundError means a registration has no DOI, or DataCite
// does not know the DOI it has.
type PIDNotFoundError struct {
	GUID string
	DOI  string
}

func (e *PIDNotFoundError) Error() string {
	if e.DOI != "" {
		return fmt.Sprintf("DOI %s for registration %s not found at DataCite", e.DOI, e.GUID)
	}
	return fmt.Sprintf("registration %s has no DOI", e.GUID)
}
