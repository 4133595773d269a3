package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/kukmin84ai/bibliotheca/helper"
)

// Discover recursively lists the files below dir that supports accepts,
// sorted by path.
func Discover(dir string, supports func(path string) bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, helper.NewError("discover files", err)
	}
	if !info.IsDir() {
		return nil, helper.NewError("discover files", fmt.Errorf("%s is not a directory", dir))
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && supports(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, helper.NewError("discover files", err)
	}

	sort.Strings(files)
	return files, nil
}

// FileHash returns the hex sha256 of the file content.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", helper.NewError("open file", err)
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", helper.NewError("hash file", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
