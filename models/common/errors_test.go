package common_test

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/CenterForOpenScience/pigeon-services/models/common"
	"github.com/stretchr/testify/assert"
)

var msg = "Something went wrong"
var innerError = fmt.Errorf("This is the inner error")
var testURL = "https://api.osf.io/v2/registrations/abc12/"

func TestNewError(t *testing.T) {
	err := common.NewError(msg, nil, false)
	assert.Nil(t, err.Err)
	assert.Equal(t, msg, err.Message)
	assert.Equal(t, msg, err.Error())
	assert.False(t, err.IsFatal)
	assert.NotEqual(t, 0, err.Line)
	assert.True(t, strings.HasSuffix(err.File, "errors_test.go"))
}

func TestErrorUnwrap(t *testing.T) {
	err := common.NewError(msg, innerError, false)
	assert.Equal(t, innerError, err.Unwrap())
	assert.True(t, errors.Is(err, innerError))
}

func TestErrorDetail(t *testing.T) {
	err := common.NewError(msg, innerError, true)
	detail := err.Detail()
	assert.True(t, strings.HasPrefix(detail, "FATAL: "+msg))
	assert.Contains(t, detail, "errors_test.go")
	assert.Contains(t, detail, innerError.Error())
}

func TestHttpError(t *testing.T) {
	err := common.NewHttpError(msg, innerError, "POST", testURL, http.StatusBadGateway)
	assert.Equal(t, msg, err.Error())
	assert.Equal(t, innerError, err.Unwrap())
	detail := err.Detail()
	assert.Contains(t, detail, "POST: "+testURL)
	assert.Contains(t, detail, "502")
	assert.Contains(t, detail, innerError.Error())
}

func TestUpstreamHTTPError(t *testing.T) {
	var err error = &common.UpstreamHTTPError{
		Method:     "GET",
		URL:        testURL,
		StatusCode: 500,
		Body:       "boom",
	}
	assert.Equal(t, "GET "+testURL+" returned status 500: boom", err.Error())

	wrapped := fmt.Errorf("fetching registration: %w", err)
	var upstream *common.UpstreamHTTPError
	assert.True(t, errors.As(wrapped, &upstream))
	assert.Equal(t, 500, upstream.StatusCode)
}

func TestParseError(t *testing.T) {
	err := &common.ParseError{URL: testURL, Message: "bad json", Err: innerError}
	assert.Contains(t, err.Error(), "bad json")
	assert.Contains(t, err.Error(), innerError.Error())
	assert.Equal(t, innerError, errors.Unwrap(err))

	err = &common.ParseError{URL: testURL, Message: "short page"}
	assert.Equal(t, "cannot parse "+testURL+": short page", err.Error())
}

func TestDomainErrors(t *testing.T) {
	assert.Contains(t, (&common.RateLimitedError{URL: testURL, Attempts: 3}).Error(), "3 attempts")
	assert.Contains(t, (&common.RegistrationWithdrawnError{GUID: "abc12"}).Error(), "abc12")
	assert.Equal(t, "malformed metadata (title): missing",
		(&common.MalformedMetadataError{Field: "title", Message: "missing"}).Error())
	assert.Equal(t, "malformed metadata: empty patch",
		(&common.MalformedMetadataError{Message: "empty patch"}).Error())
	assert.Equal(t, "metadata keys not allowed: bogus, zed",
		(&common.InvalidMetadataKeyError{Keys: []string{"bogus", "zed"}}).Error())
	integrity := &common.PackageIntegrityError{BagDir: "/tmp/bag", Problems: []string{"a", "b"}}
	assert.Equal(t, "bag /tmp/bag is invalid: a; b", integrity.Error())
	assert.Contains(t, (&common.ItemLocateError{Identifier: "osf-x", Message: "dark"}).Error(), "osf-x")
	assert.Contains(t, (&common.PIDNotFoundError{GUID: "abc12"}).Error(), "no DOI")
	assert.Contains(t, (&common.PIDNotFoundError{GUID: "abc12", DOI: "10.1/x"}).Error(), "not found at DataCite")
}
