package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	FilesPrefix      = "users/"
	TransformsPrefix = "user-uploads/"
)

// FileKey is the blob key of an uploaded drive file. The random segment keeps
// same-named uploads from colliding.
func FileKey(ownerID, fileName string) string {
	return fmt.Sprintf("%s%s/files/%s_%s", FilesPrefix, ownerID, uuid.NewString(), fileName)
}

// TransformKeys returns the original and transformed blob keys for one
// pipeline run started at ts. The run ID keeps same-named runs started in the
// same millisecond apart.
func TransformKeys(ownerID string, ts time.Time, runID, fileName string) (original, transformed string) {
	base := fmt.Sprintf("%s%s/%d-%s", TransformsPrefix, ownerID, ts.UnixMilli(), runID)
	return fmt.Sprintf("%s-original-%s", base, fileName), fmt.Sprintf("%s-transformed-%s", base, fileName)
}

// OwnerOf extracts the owner segment from a key built by FileKey or TransformKeys.
func OwnerOf(key string) (string, bool) {
	for _, prefix := range []string{FilesPrefix, TransformsPrefix} {
		if rest, ok := strings.CutPrefix(key, prefix); ok {
			owner, _, found := strings.Cut(rest, "/")
			return owner, found && owner != ""
		}
	}
	return "", false
}
