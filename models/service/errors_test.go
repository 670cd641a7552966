package service_test

import (
	"strings"
	"testing"

	"github.com/CenterForOpenScience/pigeon-services/models/service"
	"github.com/stretchr/testify/assert"
)

func TestProcessingError(t *testing.T) {
	err := service.NewProcessingError("abc12", "archive", "registration is withdrawn", true)
	assert.Equal(t, "abc12", err.GUID)
	assert.True(t, err.IsFatal)
	assert.True(t, strings.Contains(err.Source, "errors_test.go"))
	msg := err.Error()
	assert.Contains(t, msg, "(guid abc12)")
	assert.Contains(t, msg, "(severity: fatal)")
	assert.Contains(t, msg, "registration is withdrawn")

	err = service.NewProcessingError("abc12", "archive", "timeout", false)
	assert.Contains(t, err.Error(), "(severity: non-fatal)")
}
