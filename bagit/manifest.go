package bagit

import (
	"bufio"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/CenterForOpenScience/pigeon-services/constants"
)

// ManifestEntry is one line of a manifest: the digest of the file at
// Path, which is relative to the bag root.
type ManifestEntry struct {
	Algorithm string
	Digest    string
	Path      string
}

// ParseManifest reads "digest  path" lines from reader.
func ParseManifest(reader io.Reader, algorithm string) ([]*ManifestEntry, error) {
	entries := make([]*ManifestEntry, 0)
	scanner := bufio.NewScanner(reader)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			return nil, fmt.Errorf("manifest line %d: expected 'digest path'", lineNumber)
		}
		entries = append(entries, &ManifestEntry{
			Algorithm: algorithm,
			Digest:    parts[0],
			Path:      strings.TrimPrefix(strings.TrimSpace(line[len(parts[0]):]), "*"),
		})
	}
	return entries, scanner.Err()
}

// ManifestName returns "manifest-<alg>.txt" or "tagmanifest-<alg>.txt".
func ManifestName(manifestType, algorithm string) string {
	if manifestType == constants.FileTypeTagManifest {
		return fmt.Sprintf("tagmanifest-%s.txt", algorithm)
	}
	return fmt.Sprintf("manifest-%s.txt", algorithm)
}

func newHash(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case constants.AlgSha256:
		return sha256.New(), nil
	case constants.AlgSha512:
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("unsupported digest algorithm %s", algorithm)
}

// Digests calculates one digest per algorithm in a single read of the
// file at path. It returns the digests keyed by algorithm along with
// the number of bytes read.
func Digests(path string, algorithms []string) (map[string]string, int64, error) {
	hashes := make(map[string]hash.Hash, len(algorithms))
	writers := make([]io.Writer, 0, len(algorithms))
	for _, alg := range algorithms {
		h, err := newHash(alg)
		if err != nil {
			return nil, 0, err
		}
		hashes[alg] = h
		writers = append(writers, h)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()
	size, err := io.Copy(io.MultiWriter(writers...), file)
	if err != nil {
		return nil, 0, err
	}
	digests := make(map[string]string, len(hashes))
	for alg, h := range hashes {
		digests[alg] = fmt.Sprintf("%x", h.Sum(nil))
	}
	return digests, size, nil
}
