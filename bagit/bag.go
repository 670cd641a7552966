package bagit

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/CenterForOpenScience/pigeon-services/constants"
)

const (
	bagitTxt   = "bagit.txt"
	bagInfoTxt = "bag-info.txt"
)

// Bag is a BagIt directory under construction. Payload files go in
// PayloadDir; Finalize writes the tag files and manifests.
type Bag struct {
	Dir        string
	PayloadDir string
	Algorithms []string
}

// NewBag creates <stagingDir>/bag/data and returns a Bag rooted at
// <stagingDir>/bag.
func NewBag(stagingDir string) (*Bag, error) {
	dir := filepath.Join(stagingDir, constants.BagDirName)
	payloadDir := filepath.Join(dir, constants.PayloadDirName)
	if err := os.MkdirAll(payloadDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create bag payload dir: %w", err)
	}
	return &Bag{
		Dir:        dir,
		PayloadDir: payloadDir,
		Algorithms: constants.ManifestAlgorithms,
	}, nil
}

// NewBagFromDir wraps an existing bag directory.
func NewBagFromDir(dir string) *Bag {
	return &Bag{
		Dir:        dir,
		PayloadDir: filepath.Join(dir, constants.PayloadDirName),
		Algorithms: constants.ManifestAlgorithms,
	}
}

// PayloadPath returns the absolute path of payload file name.
func (b *Bag) PayloadPath(name string) string {
	return filepath.Join(b.PayloadDir, name)
}

// Finalize writes bagit.txt, the payload manifests, bag-info.txt and
// the tag manifests. Bagging-Date, Bag-Software-Agent, Payload-Oxum and
// Bag-Size are computed here; tags supplies everything else
// (Source-Organization, External-Identifier, ...).
func (b *Bag) Finalize(tags []*Tag) error {
	err := writeTagFile(filepath.Join(b.Dir, bagitTxt), []*Tag{
		NewTag(bagitTxt, "BagIt-Version", constants.BagItVersion),
		NewTag(bagitTxt, "Tag-File-Character-Encoding", constants.TagFileCharEncoding),
	})
	if err != nil {
		return err
	}

	payload, err := b.payloadFiles()
	if err != nil {
		return err
	}
	payloadBytes, err := b.writeManifests(constants.FileTypeManifest, payload)
	if err != nil {
		return err
	}

	info := []*Tag{
		NewTag(bagInfoTxt, "Bagging-Date", time.Now().UTC().Format("2006-01-02")),
		NewTag(bagInfoTxt, "Bag-Software-Agent", constants.BagSoftwareAgent),
		NewTag(bagInfoTxt, "Payload-Oxum", fmt.Sprintf("%d.%d", payloadBytes, len(payload))),
		NewTag(bagInfoTxt, "Bag-Size", HumanSize(payloadBytes)),
	}
	for _, tag := range tags {
		info = append(info, NewTag(bagInfoTxt, tag.TagName, tag.Value))
	}
	if err = writeTagFile(filepath.Join(b.Dir, bagInfoTxt), info); err != nil {
		return err
	}

	tagFiles, err := b.tagFiles()
	if err != nil {
		return err
	}
	_, err = b.writeManifests(constants.FileTypeTagManifest, tagFiles)
	return err
}

// writeManifests writes one manifest of manifestType per algorithm,
// covering files (paths relative to the bag root). It returns the
// total size of the files.
func (b *Bag) writeManifests(manifestType string, files []string) (int64, error) {
	lines := make(map[string][]string, len(b.Algorithms))
	var total int64
	for _, rel := range files {
		digests, size, err := Digests(filepath.Join(b.Dir, filepath.FromSlash(rel)), b.Algorithms)
		if err != nil {
			return 0, err
		}
		total += size
		for _, alg := range b.Algorithms {
			lines[alg] = append(lines[alg], fmt.Sprintf("%s  %s\n", digests[alg], rel))
		}
	}
	for _, alg := range b.Algorithms {
		path := filepath.Join(b.Dir, ManifestName(manifestType, alg))
		if err := os.WriteFile(path, []byte(strings.Join(lines[alg], "")), 0644); err != nil {
			return 0, fmt.Errorf("cannot write %s: %w", path, err)
		}
	}
	return total, nil
}

// payloadFiles returns slash-separated paths, relative to the bag
// root, of every regular file under data/.
func (b *Bag) payloadFiles() ([]string, error) {
	files := make([]string, 0)
	err := filepath.WalkDir(b.PayloadDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(b.Dir, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	return files, err
}

// tagFiles returns the names of the top-level files other than tag
// manifests.
func (b *Bag) tagFiles() ([]string, error) {
	entries, err := os.ReadDir(b.Dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0)
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), "tagmanifest-") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

func writeTagFile(path string, tags []*Tag) error {
	var builder strings.Builder
	for _, tag := range tags {
		builder.WriteString(tag.String())
		builder.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(builder.String()), 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}

// HumanSize formats byte counts the way bag-info.txt's Bag-Size
// usually reads, e.g. "12.3 MB".
func HumanSize(bytes int64) string {
	units := []string{"bytes", "KB", "MB", "GB", "TB"}
	size := float64(bytes)
	i := 0
	for size >= 1000 && i < len(units)-1 {
		size /= 1000
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d bytes", bytes)
	}
	return fmt.Sprintf("%.1f %s", size, units[i])
}
