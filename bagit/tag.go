package bagit

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Tag is a single label/value pair from a tag file such as bag-info.txt.
type Tag struct {
	TagFile string `json:"tag_file"`
	TagName string `json:"tag_name"`
	Value   string `json:"value"`
}

func NewTag(tagFile, tagName, value string) *Tag {
	return &Tag{
		TagFile: tagFile,
		TagName: tagName,
		Value:   value,
	}
}

// String returns the tag as it appears in a tag file.
func (t *Tag) String() string {
	return fmt.Sprintf("%s: %s", t.TagName, t.Value)
}

// ParseTagFile reads label/value pairs from reader. Continuation lines
// (lines starting with whitespace) are appended to the previous value.
func ParseTagFile(reader io.Reader, tagFile string) ([]*Tag, error) {
	tags := make([]*Tag, 0)
	scanner := bufio.NewScanner(reader)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if len(tags) == 0 {
				return nil, fmt.Errorf("%s line %d: continuation without a tag", tagFile, lineNumber)
			}
			last := tags[len(tags)-1]
			last.Value = last.Value + " " + strings.TrimSpace(line)
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%s line %d: expected 'Label: value'", tagFile, lineNumber)
		}
		tags = append(tags, NewTag(tagFile, strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])))
	}
	return tags, scanner.Err()
}

// FindTag returns the first tag named tagName, or nil.
func FindTag(tags []*Tag, tagName string) *Tag {
	for _, tag := range tags {
		if tag.TagName == tagName {
			return tag
		}
	}
	return nil
}
