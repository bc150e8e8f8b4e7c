package controllers

import (
	"github.com/gin-gonic/gin"

	"nanodrive/middleware"
	"nanodrive/models"
	"nanodrive/services"
	"nanodrive/utils"
)

type FolderController struct {
	directory *services.DirectoryService
	nodes     *services.NodeService
}

func NewFolderController(directory *services.DirectoryService, nodes *services.NodeService) *FolderController {
	return &FolderController{
		directory: directory,
		nodes:     nodes,
	}
}

type createFolderRequest struct {
	Path string `json:"path"`
	Name string `json:"name" binding:"required,max=255"`
}

type renameRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

// ListNodes returns one directory: folders first, then files, plus breadcrumbs.
func (fc *FolderController) ListNodes(c *gin.Context) {
	userID := middleware.OwnerID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	listing, err := fc.directory.Listing(c.Request.Context(), userID, c.DefaultQuery("path", models.RootPath))
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to list directory", err)
		return
	}

	utils.SuccessResponse(c, "Directory retrieved", listing)
}

func (fc *FolderController) CreateFolder(c *gin.Context) {
	userID := middleware.OwnerID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request data", err.Error())
		return
	}
	if req.Path == "" {
		req.Path = models.RootPath
	}

	folder, err := fc.nodes.CreateFolder(c.Request.Context(), userID, req.Path, req.Name)
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to create folder", err)
		return
	}

	utils.CreatedResponse(c, "Folder created successfully", folder)
}

func (fc *FolderController) RenameFolder(c *gin.Context) {
	renameNode(c, fc.nodes, models.KindFolder, "Folder renamed successfully")
}

func (fc *FolderController) DeleteFolder(c *gin.Context) {
	deleteNode(c, fc.nodes, models.KindFolder, "Folder deleted successfully")
}

func renameNode(c *gin.Context, nodes *services.NodeService, kind models.NodeKind, message string) {
	userID := middleware.OwnerID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request data", err.Error())
		return
	}

	node, err := nodes.RenameByID(c.Request.Context(), userID, kind, c.Param("id"), req.Name)
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to rename "+string(kind), err)
		return
	}

	utils.SuccessResponse(c, message, node)
}

func deleteNode(c *gin.Context, nodes *services.NodeService, kind models.NodeKind, message string) {
	userID := middleware.OwnerID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	if err := nodes.DeleteByID(c.Request.Context(), userID, kind, c.Param("id")); err != nil {
		utils.ServiceErrorResponse(c, "Failed to delete "+string(kind), err)
		return
	}

	utils.SuccessResponse(c, message, nil)
}
