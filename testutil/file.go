package testutil

import (
	"os"
	"path"
	"path/filepath"
	"runtime"
)

func ProjectRoot() string {
	_, thisFile, _, _ := runtime.Caller(0)
	absPath, _ := filepath.Abs(path.Join(thisFile, "..", ".."))
	return absPath
}

func PathToTestData() string {
	return path.Join(ProjectRoot(), "testdata")
}

func PathToOSFFixture(filename string) string {
	return path.Join(PathToTestData(), "osf", filename)
}

func PathToDataCiteFixture(filename string) string {
	return path.Join(PathToTestData(), "datacite", filename)
}

func ReadOSFFixture(filename string) ([]byte, error) {
	return os.ReadFile(PathToOSFFixture(filename))
}

func ReadDataCiteFixture(filename string) ([]byte, error) {
	return os.ReadFile(PathToDataCiteFixture(filename))
}
