package models

import (
	"time"
)

type NodeKind string

const (
	KindFolder NodeKind = "folder"
	KindFile   NodeKind = "file"
)

// Node is a folder or file record located by its parent directory Path and
// its Name. A directory exists only as the Path shared by its children; a
// folder's own record is the only thing distinguishing an empty folder from a
// missing one.
type Node struct {
	ID           string    `bson:"-" json:"id"`
	Kind         NodeKind  `bson:"type" json:"type"`
	Name         string    `bson:"name" json:"name"`
	Path         string    `bson:"path" json:"path"`
	OwnerID      string    `bson:"owner_id" json:"owner_id"`
	LastModified time.Time `bson:"last_modified" json:"last_modified"`

	// File payload; zero for folders.
	Size         int64  `bson:"size,omitempty" json:"size,omitempty"`
	MimeType     string `bson:"mime_type,omitempty" json:"mime_type,omitempty"`
	BlobLocation string `bson:"blob_location,omitempty" json:"blob_location,omitempty"`
	DownloadURL  string `bson:"download_url,omitempty" json:"download_url,omitempty"`
}

func (n Node) IsFolder() bool { return n.Kind == KindFolder }

func (n Node) IsFile() bool { return n.Kind == KindFile }

// ChildPath is the Path carried by nodes placed directly inside n.
func (n Node) ChildPath() string {
	return JoinPath(n.Path, n.Name)
}

// NewFolder builds an unsaved folder record; ID and LastModified are assigned by the store.
func NewFolder(ownerID, path, name string) Node {
	return Node{
		Kind:    KindFolder,
		Name:    name,
		Path:    path,
		OwnerID: ownerID,
	}
}

// NewFile builds an unsaved file record; ID and LastModified are assigned by the store.
func NewFile(ownerID, path, name string, size int64, mimeType, blobLocation, downloadURL string) Node {
	return Node{
		Kind:         KindFile,
		Name:         name,
		Path:         path,
		OwnerID:      ownerID,
		Size:         size,
		MimeType:     mimeType,
		BlobLocation: blobLocation,
		DownloadURL:  downloadURL,
	}
}
