package utils

import (
	"path/filepath"
	"strings"
)

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	// Get the directory containing the file
	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// AssemblyPath returns the .s file written next to a source file: the
// source extension, if any, is replaced.
func AssemblyPath(srcPath string) (string, error) {
	fullPath, parentDir, err := GetPathInfo(srcPath)
	if err != nil {
		return "", err
	}
	base := filepath.Base(fullPath)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return filepath.Join(parentDir, base+".s"), nil
}
