package controllers

import (
	"github.com/gin-gonic/gin"

	"nanodrive/middleware"
	"nanodrive/services"
	"nanodrive/utils"
)

type HistoryController struct {
	history *services.HistoryService
}

func NewHistoryController(history *services.HistoryService) *HistoryController {
	return &HistoryController{history: history}
}

func (hc *HistoryController) ListHistory(c *gin.Context) {
	userID := middleware.OwnerID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	records, err := hc.history.List(c.Request.Context(), userID)
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to list history", err)
		return
	}
	utils.SuccessResponse(c, "History retrieved", records)
}

func (hc *HistoryController) DeleteHistoryItem(c *gin.Context) {
	userID := middleware.OwnerID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	if err := hc.history.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		utils.ServiceErrorResponse(c, "Failed to delete history item", err)
		return
	}
	utils.SuccessResponse(c, "History item deleted", nil)
}
