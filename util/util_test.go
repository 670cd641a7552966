package util_test

import (
	"testing"

	"github.com/CenterForOpenScience/pigeon-services/util"
	"github.com/stretchr/testify/assert"
)

func TestStringListContains(t *testing.T) {
	list := []string{"apple", "orange", "banana"}
	assert.True(t, util.StringListContains(list, "orange"))
	assert.False(t, util.StringListContains(list, "wedgie"))
	// Don't crash on nil list
	assert.False(t, util.StringListContains(nil, "mars"))
}

func TestStringListDiff(t *testing.T) {
	allowed := []string{"title", "description"}
	assert.Equal(t, []string{}, util.StringListDiff([]string{"title"}, allowed))
	assert.Equal(t, []string{"bogus", "zed"},
		util.StringListDiff([]string{"zed", "title", "bogus", "zed"}, allowed))
}

func TestAlgorithmFromManifestName(t *testing.T) {
	names := map[string]string{
		"manifest-sha256.txt":    "sha256",
		"tagmanifest-sha256.txt": "sha256",
		"manifest-sha512.txt":    "sha512",
	}
	for filename, algorithm := range names {
		alg, err := util.AlgorithmFromManifestName(filename)
		assert.Nil(t, err)
		assert.Equal(t, algorithm, alg)
	}
	_, err := util.AlgorithmFromManifestName("bad-file-name.txt")
	assert.NotNil(t, err)
	_, err = util.AlgorithmFromManifestName("manifest-md5.txt")
	assert.NotNil(t, err)
}

func TestLooksLikeManifest(t *testing.T) {
	assert.True(t, util.LooksLikeManifest("manifest-sha256.txt"))
	// No: is tag manifest
	assert.False(t, util.LooksLikeManifest("tagmanifest-sha256.txt"))
	// No: is tag file
	assert.False(t, util.LooksLikeManifest("bag-info.txt"))
	// No: is payload file
	assert.False(t, util.LooksLikeManifest("data/manifest-sha256.txt"))
}

func TestLooksLikeTagManifest(t *testing.T) {
	assert.True(t, util.LooksLikeTagManifest("tagmanifest-sha512.txt"))
	assert.False(t, util.LooksLikeTagManifest("manifest-sha512.txt"))
	assert.False(t, util.LooksLikeTagManifest("bag-info.txt"))
}

func TestFillTemplate(t *testing.T) {
	tmpl := "osf-registrations-{guid}-{version}"
	assert.Equal(t, "osf-registrations-abc12-staging_v1",
		util.FillTemplate(tmpl, map[string]string{"guid": "abc12", "version": "staging_v1"}))
	// Unknown placeholders survive.
	assert.Equal(t, "x-{other}", util.FillTemplate("x-{other}", map[string]string{"guid": "g"}))
}

func TestLooksLikeGUID(t *testing.T) {
	assert.True(t, util.LooksLikeGUID("abc12"))
	assert.True(t, util.LooksLikeGUID("ABCDEF1234"))
	assert.False(t, util.LooksLikeGUID("abc"))
	assert.False(t, util.LooksLikeGUID("abc12/../x"))
	assert.False(t, util.LooksLikeGUID(" abc12"))
	assert.False(t, util.LooksLikeGUID(""))
}
