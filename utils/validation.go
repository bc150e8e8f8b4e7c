package utils

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"nanodrive/common"
	"nanodrive/models"
)

// ValidateNodeName checks a folder or file name before it is stored. "/" is
// rejected because it would corrupt the path encoding of every descendant.
func ValidateNodeName(op, name string) error {
	if strings.TrimSpace(name) == "" {
		return common.Validation(op, name, "name cannot be empty")
	}
	if len(name) > 255 {
		return common.Validation(op, name, "name too long (max 255 characters)")
	}
	if !utf8.ValidString(name) {
		return common.Validation(op, name, "name contains invalid UTF-8 characters")
	}
	if strings.ContainsAny(name, "/\x00") {
		return common.Validation(op, name, "name cannot contain '/'")
	}
	if name == "." || name == ".." {
		return common.Validation(op, name, "name cannot be a relative reference")
	}
	return nil
}

// ValidateFileName additionally rejects characters most desktop clients
// cannot write back to disk on download.
func ValidateFileName(name string) error {
	if err := ValidateNodeName("upload file", name); err != nil {
		return err
	}

	invalidChars := []string{"<", ">", ":", "\"", "|", "?", "*", "\\"}
	for _, char := range invalidChars {
		if strings.Contains(name, char) {
			return common.Validation("upload file", name, fmt.Sprintf("filename contains invalid character: %s", char))
		}
	}

	reservedNames := []string{"CON", "PRN", "AUX", "NUL", "COM1", "COM2", "COM3", "COM4", "LPT1", "LPT2", "LPT3"}
	nameWithoutExt := strings.TrimSuffix(name, filepath.Ext(name))
	for _, reserved := range reservedNames {
		if strings.EqualFold(nameWithoutExt, reserved) {
			return common.Validation("upload file", name, fmt.Sprintf("filename uses reserved name: %s", reserved))
		}
	}
	return nil
}

func ValidateFileSize(name string, size, maxSize int64) error {
	if maxSize > 0 && size > maxSize {
		return common.Validation("upload file", name, fmt.Sprintf("file size %d bytes exceeds maximum allowed size of %d bytes", size, maxSize))
	}
	return nil
}

// NormalizePath accepts "" as root and otherwise requires a canonical path.
func NormalizePath(path string) (string, error) {
	segments, err := models.SplitPath(path)
	if err != nil {
		return "", err
	}
	for _, segment := range segments {
		if err := ValidateNodeName("parse path", segment); err != nil {
			return "", err
		}
	}
	return models.CanonicalPath(segments), nil
}
