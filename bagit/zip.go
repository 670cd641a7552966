package bagit

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/CenterForOpenScience/pigeon-services/constants"
)

// ZipDir writes every file under bagDir into a new zip at zipPath.
// Entry names are "bag/<path relative to bagDir>" with forward slashes,
// so the zip never carries absolute or staging paths.
func ZipDir(bagDir, zipPath string) (int64, error) {
	out, err := os.Create(zipPath)
	if err != nil {
		return 0, fmt.Errorf("cannot create %s: %w", zipPath, err)
	}
	writer := zip.NewWriter(out)
	err = filepath.WalkDir(bagDir, func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(bagDir, filePath)
		if err != nil {
			return err
		}
		return addToZip(writer, filePath, path.Join(constants.BagDirName, filepath.ToSlash(rel)))
	})
	if err != nil {
		writer.Close()
		out.Close()
		return 0, err
	}
	if err = writer.Close(); err != nil {
		out.Close()
		return 0, err
	}
	if err = out.Close(); err != nil {
		return 0, err
	}
	stat, err := os.Stat(zipPath)
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

func addToZip(writer *zip.Writer, filePath, name string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(stat)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate
	entry, err := writer.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, file)
	return err
}
