package routes

import (
	"github.com/gin-gonic/gin"

	"nanodrive/controllers"
	"nanodrive/middleware"
)

func RegisterFolderRoutes(rg *gin.RouterGroup, jwtSecret string, folderController *controllers.FolderController) {
	auth := middleware.AuthMiddleware(jwtSecret)

	rg.GET("/nodes", auth, folderController.ListNodes) // GET /nodes?path=/a/b

	folders := rg.Group("/folders")
	folders.Use(auth)
	{
		folders.POST("", folderController.CreateFolder)             // POST /folders
		folders.PATCH("/:id/rename", folderController.RenameFolder) // PATCH /folders/:id/rename
		folders.DELETE("/:id", folderController.DeleteFolder)       // DELETE /folders/:id
	}
}
