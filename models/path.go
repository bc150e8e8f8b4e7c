package models

import (
	"strings"

	"nanodrive/common"
)

// RootPath is the canonical path of the top-level directory.
const RootPath = "/"

// CanonicalPath encodes an ordered list of directory names as the string
// stored in a node's Path field: "/" for no segments, "/a/b" otherwise.
func CanonicalPath(segments []string) string {
	if len(segments) == 0 {
		return RootPath
	}
	return RootPath + strings.Join(segments, "/")
}

// JoinPath returns the path of directory name inside parent.
func JoinPath(parent, name string) string {
	if parent == "" || parent == RootPath {
		return RootPath + name
	}
	return parent + "/" + name
}

// SplitPath is the inverse of CanonicalPath.
func SplitPath(path string) ([]string, error) {
	if path == "" || path == RootPath {
		return nil, nil
	}
	if !strings.HasPrefix(path, RootPath) {
		return nil, common.Validation("parse path", path, "path must start with '/'")
	}

	segments := strings.Split(strings.TrimPrefix(path, RootPath), "/")
	for _, segment := range segments {
		switch segment {
		case "":
			return nil, common.Validation("parse path", path, "path contains an empty segment")
		case ".", "..":
			return nil, common.Validation("parse path", path, "relative segments are not allowed")
		}
	}
	return segments, nil
}

// IsWithin reports whether path is dir itself or lies anywhere below it.
func IsWithin(path, dir string) bool {
	if dir == RootPath {
		return true
	}
	return path == dir || strings.HasPrefix(path, dir+"/")
}

// Rebase moves path from under oldDir to under newDir. Paths outside oldDir
// are returned unchanged.
func Rebase(path, oldDir, newDir string) string {
	if !IsWithin(path, oldDir) || oldDir == RootPath {
		return path
	}
	return newDir + strings.TrimPrefix(path, oldDir)
}
