package routes

import (
	"github.com/gin-gonic/gin"

	"nanodrive/controllers"
	"nanodrive/middleware"
)

func RegisterFileRoutes(rg *gin.RouterGroup, jwtSecret string, fileController *controllers.FileController) {
	files := rg.Group("/files")
	files.Use(middleware.AuthMiddleware(jwtSecret))
	{
		files.PATCH("/:id/rename", fileController.RenameFile)   // PATCH /files/:id/rename
		files.DELETE("/:id", fileController.DeleteFile)         // DELETE /files/:id
		files.GET("/:id/download", fileController.DownloadFile) // GET /files/:id/download
	}

	// Uploads live outside /files/:id to avoid route conflicts
	upload := rg.Group("")
	upload.Use(middleware.AuthMiddleware(jwtSecret))
	{
		upload.POST("/uploadfiles", fileController.UploadFiles)     // POST /uploadfiles (files[] + path)
		upload.GET("/uploads", fileController.ListUploads)          // GET /uploads
		upload.GET("/uploads/stream", fileController.StreamUploads) // GET /uploads/stream (SSE)
		upload.DELETE("/uploads/:id", fileController.CancelUpload)  // DELETE /uploads/:id
		upload.GET("/blobs/*key", fileController.DownloadBlob)      // GET /blobs/*key (memory backend URLs)
	}
}
