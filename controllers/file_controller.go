package controllers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"nanodrive/middleware"
	"nanodrive/models"
	"nanodrive/services"
	"nanodrive/utils"
)

type FileController struct {
	nodes   *services.NodeService
	uploads *services.UploadCoordinator
}

func NewFileController(nodes *services.NodeService, uploads *services.UploadCoordinator) *FileController {
	return &FileController{
		nodes:   nodes,
		uploads: uploads,
	}
}

func (fc *FileController) RenameFile(c *gin.Context) {
	renameNode(c, fc.nodes, models.KindFile, "File renamed successfully")
}

func (fc *FileController) DeleteFile(c *gin.Context) {
	deleteNode(c, fc.nodes, models.KindFile, "File deleted successfully")
}

// DownloadFile streams the file's bytes from the blob store.
func (fc *FileController) DownloadFile(c *gin.Context) {
	userID := middleware.OwnerID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	node, content, err := fc.nodes.OpenFile(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to download file", err)
		return
	}
	defer content.Close()

	contentType := node.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, node.Size, contentType, content, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", node.Name),
	})
}

// DownloadBlob streams a blob by key. Memory-backed stores resolve their
// download URLs here.
func (fc *FileController) DownloadBlob(c *gin.Context) {
	userID := middleware.OwnerID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	content, err := fc.nodes.OpenBlob(c.Request.Context(), userID, strings.TrimPrefix(c.Param("key"), "/"))
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to download blob", err)
		return
	}
	defer content.Close()

	br := bufio.NewReaderSize(content, 3072)
	head, _ := br.Peek(3072)
	c.DataFromReader(http.StatusOK, -1, mimetype.Detect(head).String(), br, nil)
}

// UploadFiles starts one transfer per multipart "files[]" part into the
// directory named by the "path" form value and answers before they finish.
func (fc *FileController) UploadFiles(c *gin.Context) {
	userID := middleware.OwnerID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		utils.BadRequestResponse(c, "Invalid multipart form", err.Error())
		return
	}

	headers := form.File["files[]"]
	if len(headers) == 0 {
		utils.BadRequestResponse(c, "No files provided", nil)
		return
	}

	// The multipart temp files are removed once this handler returns, so
	// every part is opened here and handed over to the coordinator.
	files := make([]services.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			for _, opened := range files {
				opened.Content.Close()
			}
			utils.BadRequestResponse(c, "Failed to read uploaded file: "+fh.Filename, err.Error())
			return
		}
		files = append(files, services.UploadFile{
			Name:     fh.Filename,
			Size:     fh.Size,
			MimeType: fh.Header.Get("Content-Type"),
			Content:  f,
		})
	}

	path := c.DefaultPostForm("path", models.RootPath)
	batch, err := fc.uploads.Submit(context.WithoutCancel(c.Request.Context()), userID, path, files)
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to start upload", err)
		return
	}

	utils.AcceptedResponse(c, "Upload started", batch)
}

// ListUploads returns the in-flight transfers and recent failures.
func (fc *FileController) ListUploads(c *gin.Context) {
	userID := middleware.OwnerID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	utils.SuccessResponse(c, "Uploads retrieved", gin.H{
		"tasks":    fc.uploads.Tasks(userID),
		"failures": fc.uploads.Failures(userID),
	})
}

// StreamUploads pushes a snapshot of the in-flight transfers after every change.
func (fc *FileController) StreamUploads(c *gin.Context) {
	userID := middleware.OwnerID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	snapshots, cancel := fc.uploads.Subscribe(userID)
	defer cancel()
	streamSnapshots(c, "uploads", snapshots)
}

func (fc *FileController) CancelUpload(c *gin.Context) {
	userID := middleware.OwnerID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	if err := fc.uploads.Cancel(userID, c.Param("id")); err != nil {
		utils.ServiceErrorResponse(c, "Failed to cancel upload", err)
		return
	}

	utils.SuccessResponse(c, "Upload cancelled", nil)
}

// streamSnapshots relays snapshots as server-sent events until the client
// goes away or the channel closes.
func streamSnapshots[T any](c *gin.Context, event string, snapshots <-chan []T) {
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	done := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-done:
			return false
		case snap, ok := <-snapshots:
			if !ok {
				return false
			}
			c.SSEvent(event, snap)
			return true
		}
	})
}
