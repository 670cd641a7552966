package bagit

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/CenterForOpenScience/pigeon-services/models/common"
	"github.com/CenterForOpenScience/pigeon-services/util"
)

const maxProblems = 30

// Validator re-reads a finished bag from disk and checks it against its
// own manifests and Payload-Oxum.
type Validator struct {
	BagDir   string
	Problems []string
}

func NewValidator(bagDir string) *Validator {
	return &Validator{
		BagDir:   bagDir,
		Problems: make([]string, 0),
	}
}

// Validate returns nil if the bag on disk matches its manifests, or a
// *common.PackageIntegrityError listing everything wrong with it.
func (b *Bag) Validate() error {
	return NewValidator(b.Dir).Validate()
}

func (v *Validator) Validate() error {
	v.Problems = make([]string, 0)
	if !util.FileExists(filepath.Join(v.BagDir, bagitTxt)) {
		v.AddProblem("%s is missing", bagitTxt)
	}
	payload, err := NewBagFromDir(v.BagDir).payloadFiles()
	if err != nil {
		v.AddProblem("cannot list payload: %s", err.Error())
	}
	entries, err := os.ReadDir(v.BagDir)
	if err != nil {
		v.AddProblem("cannot read bag directory: %s", err.Error())
		return v.result()
	}
	foundManifest := false
	for _, entry := range entries {
		name := entry.Name()
		if util.LooksLikeManifest(name) {
			foundManifest = true
			listed := v.checkManifest(name)
			for _, missing := range util.StringListDiff(payload, listed) {
				v.AddProblem("payload file %s is not in %s", missing, name)
			}
		} else if util.LooksLikeTagManifest(name) {
			v.checkManifest(name)
		}
	}
	if !foundManifest {
		v.AddProblem("bag has no payload manifest")
	}
	v.checkOxum(payload)
	return v.result()
}

// checkManifest verifies every entry in manifest and returns the
// paths it lists.
func (v *Validator) checkManifest(manifest string) []string {
	alg, err := util.AlgorithmFromManifestName(manifest)
	if err != nil {
		v.AddProblem("%s", err.Error())
		return nil
	}
	file, err := os.Open(filepath.Join(v.BagDir, manifest))
	if err != nil {
		v.AddProblem("cannot open %s: %s", manifest, err.Error())
		return nil
	}
	defer file.Close()
	entries, err := ParseManifest(file, alg)
	if err != nil {
		v.AddProblem("cannot parse %s: %s", manifest, err.Error())
		return nil
	}
	listed := make([]string, 0, len(entries))
	for _, entry := range entries {
		listed = append(listed, entry.Path)
		clean := path.Clean(entry.Path)
		if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			v.AddProblem("%s lists a path outside the bag: %s", manifest, entry.Path)
			continue
		}
		filePath := filepath.Join(v.BagDir, filepath.FromSlash(clean))
		if !util.FileExists(filePath) {
			v.AddProblem("%s lists %s, which does not exist", manifest, entry.Path)
			continue
		}
		digests, _, err := Digests(filePath, []string{alg})
		if err != nil {
			v.AddProblem("cannot read %s: %s", entry.Path, err.Error())
			continue
		}
		if digests[alg] != strings.ToLower(entry.Digest) {
			v.AddProblem("%s digest mismatch for %s: manifest says %s, file is %s",
				alg, entry.Path, entry.Digest, digests[alg])
		}
	}
	return listed
}

func (v *Validator) checkOxum(payload []string) {
	file, err := os.Open(filepath.Join(v.BagDir, bagInfoTxt))
	if err != nil {
		v.AddProblem("%s is missing", bagInfoTxt)
		return
	}
	defer file.Close()
	tags, err := ParseTagFile(file, bagInfoTxt)
	if err != nil {
		v.AddProblem("cannot parse %s: %s", bagInfoTxt, err.Error())
		return
	}
	oxum := FindTag(tags, "Payload-Oxum")
	if oxum == nil {
		v.AddProblem("%s has no Payload-Oxum", bagInfoTxt)
		return
	}
	var total int64
	for _, rel := range payload {
		stat, err := os.Stat(filepath.Join(v.BagDir, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		total += stat.Size()
	}
	parts := strings.SplitN(oxum.Value, ".", 2)
	if len(parts) != 2 {
		v.AddProblem("Payload-Oxum %q is malformed", oxum.Value)
		return
	}
	wantBytes, errBytes := strconv.ParseInt(parts[0], 10, 64)
	wantCount, errCount := strconv.Atoi(parts[1])
	if errBytes != nil || errCount != nil {
		v.AddProblem("Payload-Oxum %q is malformed", oxum.Value)
		return
	}
	if wantBytes != total || wantCount != len(payload) {
		v.AddProblem("Payload-Oxum is %s but payload is %d.%d", oxum.Value, total, len(payload))
	}
}

func (v *Validator) AddProblem(format string, a ...interface{}) {
	if len(v.Problems) < maxProblems {
		v.Problems = append(v.Problems, fmt.Sprintf(format, a...))
	} else if len(v.Problems) == maxProblems {
		v.Problems = append(v.Problems, "Too many errors")
	}
}

func (v *Validator) result() error {
	if len(v.Problems) == 0 {
		return nil
	}
	return &common.PackageIntegrityError{
		BagDir:   v.BagDir,
		Problems: v.Problems,
	}
}
