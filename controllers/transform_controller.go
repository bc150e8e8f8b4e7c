package controllers

import (
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"nanodrive/middleware"
	"nanodrive/services"
	"nanodrive/transform"
	"nanodrive/utils"
)

type TransformController struct {
	pipeline    *services.PipelineExecutor
	maxFileSize int64
}

func NewTransformController(pipeline *services.PipelineExecutor, maxFileSize int64) *TransformController {
	return &TransformController{
		pipeline:    pipeline,
		maxFileSize: maxFileSize,
	}
}

// StartTransform accepts a multipart "image" with optional "prompt" and
// "mode" fields. An empty prompt falls back to the default style.
func (tc *TransformController) StartTransform(c *gin.Context) {
	userID := middleware.OwnerID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	mode, err := transform.ParseMode(c.PostForm("mode"))
	if err != nil {
		utils.ServiceErrorResponse(c, "Invalid transform mode", err)
		return
	}

	fh, err := c.FormFile("image")
	if err != nil {
		utils.BadRequestResponse(c, "Image file is required", err.Error())
		return
	}
	if tc.maxFileSize > 0 && fh.Size > tc.maxFileSize {
		utils.PayloadTooLargeResponse(c, fmt.Sprintf("Image exceeds %d bytes: %s", tc.maxFileSize, fh.Filename))
		return
	}

	f, err := fh.Open()
	if err != nil {
		utils.BadRequestResponse(c, "Failed to read image", err.Error())
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		utils.BadRequestResponse(c, "Failed to read image", err.Error())
		return
	}

	prompt := strings.TrimSpace(c.PostForm("prompt"))
	if prompt == "" {
		prompt = transform.DefaultStyle
	}

	run, err := tc.pipeline.Submit(c.Request.Context(), services.PipelineRequest{
		OwnerID:  userID,
		FileName: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Data:     data,
		Prompt:   prompt,
		Mode:     mode,
	})
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to start transform", err)
		return
	}

	status, err := tc.pipeline.Status(userID, run.ID)
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to start transform", err)
		return
	}
	utils.AcceptedResponse(c, "Transform started", status)
}

func (tc *TransformController) GetTransform(c *gin.Context) {
	userID := middleware.OwnerID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	status, err := tc.pipeline.Status(userID, c.Param("id"))
	if err != nil {
		utils.ServiceErrorResponse(c, "Transform not found", err)
		return
	}
	utils.SuccessResponse(c, "Transform retrieved", status)
}

func (tc *TransformController) ListTransforms(c *gin.Context) {
	userID := middleware.OwnerID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	utils.SuccessResponse(c, "Transforms retrieved", tc.pipeline.Runs(userID))
}

// StreamTransforms pushes a snapshot of the owner's runs after every change.
func (tc *TransformController) StreamTransforms(c *gin.Context) {
	userID := middleware.OwnerID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	snapshots, cancel := tc.pipeline.Subscribe(userID)
	defer cancel()
	streamSnapshots(c, "transforms", snapshots)
}

func (tc *TransformController) ListStyles(c *gin.Context) {
	utils.SuccessResponse(c, "Styles retrieved", gin.H{
		"styles":  transform.Styles(),
		"default": transform.DefaultStyle,
	})
}
