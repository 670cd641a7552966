package service_test

import (
	"github.com/CenterForOpenScience/pigeon-services/models/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestNewRingList(t *testing.T) {
	ringList := service.NewRingList(10)
	assert.NotNil(t, ringList)
}

func TestAddAndContains(t *testing.T) {
	ringList := service.NewRingList(4)
	require.NotNil(t, ringList)

	ringList.Add("one")
	ringList.Add("two")
	ringList.Add("three")
	ringList.Add("four")
	assert.True(t, ringList.Contains("one"))
	assert.True(t, ringList.Contains("two"))
	assert.True(t, ringList.Contains("three"))
	assert.True(t, ringList.Contains("four"))

	ringList.Add("five")
	ringList.Add("six")

	// one and two should be pushed out by five and six
	assert.False(t, ringList.Contains("one"))
	assert.False(t, ringList.Contains("two"))

	assert.True(t, ringList.Contains("three"))
	assert.True(t, ringList.Contains("four"))
	assert.True(t, ringList.Contains("five"))
	assert.True(t, ringList.Contains("six"))
}

func TestDel(t *testing.T) {
	ringList := service.NewRingList(4)
	ringList.Add("one")
	ringList.Add("two")
	ringList.Add("three")
	ringList.Add("four")
	assert.True(t, ringList.Contains("one"))
	assert.True(t, ringList.Contains("two"))
	assert.True(t, ringList.Contains("three"))
	assert.True(t, ringList.Contains("four"))

	ringList.Del("one")
	ringList.Del("two")
	ringList.Del("three")
	ringList.Del("four")
	assert.False(t, ringList.Contains("one"))
	assert.False(t, ringList.Contains("two"))
	assert.False(t, ringList.Contains("three"))
	assert.False(t, ringList.Contains("four"))
}

func TestAddIfAbsent(t *testing.T) {
	ringList := service.NewRingList(2)
	assert.True(t, ringList.AddIfAbsent("abc12"))
	assert.False(t, ringList.AddIfAbsent("abc12"))
	assert.True(t, ringList.AddIfAbsent("def34"))
	assert.ElementsMatch(t, []string{"abc12", "def34"}, ringList.Items())

	// A freed slot is reused before anything is overwritten.
	ringList.Del("abc12")
	assert.True(t, ringList.AddIfAbsent("ghi56"))
	assert.ElementsMatch(t, []string{"def34", "ghi56"}, ringList.Items())

	// With no free slot, the ring overwrites.
	assert.True(t, ringList.AddIfAbsent("jkl78"))
	assert.Len(t, ringList.Items(), 2)
	assert.True(t, ringList.Contains("jkl78"))
}
