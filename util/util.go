package util

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/CenterForOpenScience/pigeon-services/constants"
)

// StringListContains returns true if the list of strings contains item.
func StringListContains(list []string, item string) bool {
	if list != nil {
		for i := range list {
			if list[i] == item {
				return true
			}
		}
	}
	return false
}

// StringListDiff returns the items in list that do not appear in
// allowed, sorted and deduplicated.
func StringListDiff(list, allowed []string) []string {
	seen := make(map[string]bool)
	diff := make([]string, 0)
	for _, item := range list {
		if seen[item] || StringListContains(allowed, item) {
			continue
		}
		seen[item] = true
		diff = append(diff, item)
	}
	sort.Strings(diff)
	return diff
}

// AlgorithmFromManifestName returns the algorithm used in a manifest.
// For example, arg "manifest-sha256.txt" returns "sha256", while
// "tagmanifest-sha512.txt" returns "sha512". This returns an error if
// it can't find the algorithm in the manifest name.
func AlgorithmFromManifestName(manifestName string) (string, error) {
	for _, alg := range constants.ManifestAlgorithms {
		if strings.HasSuffix(manifestName, "-"+alg+".txt") {
			return alg, nil
		}
	}
	return "", fmt.Errorf("Can't parse algorithm from filename %s", manifestName)
}

func LooksLikeManifest(name string) bool {
	return strings.HasPrefix(name, "manifest-") && strings.HasSuffix(name, ".txt")
}

func LooksLikeTagManifest(name string) bool {
	return strings.HasPrefix(name, "tagmanifest-") && strings.HasSuffix(name, ".txt")
}

// FillTemplate replaces {name} placeholders in template with values.
// Unknown placeholders are left alone.
func FillTemplate(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

var guidPattern = regexp.MustCompile(`^[A-Za-z0-9]{5,}$`)

// LooksLikeGUID returns true if s could be an OSF guid: five or more
// letters and digits.
func LooksLikeGUID(s string) bool {
	return guidPattern.MatchString(s)
}
