package routes

import (
	"github.com/gin-gonic/gin"

	"nanodrive/controllers"
	"nanodrive/middleware"
)

func RegisterTransformRoutes(rg *gin.RouterGroup, jwtSecret string, transformController *controllers.TransformController, historyController *controllers.HistoryController) {
	transforms := rg.Group("/transforms")
	transforms.Use(middleware.AuthMiddleware(jwtSecret))
	{
		transforms.POST("", transformController.StartTransform)         // POST /transforms (image + prompt + mode)
		transforms.GET("", transformController.ListTransforms)          // GET /transforms
		transforms.GET("/styles", transformController.ListStyles)       // GET /transforms/styles
		transforms.GET("/stream", transformController.StreamTransforms) // GET /transforms/stream (SSE)
		transforms.GET("/:id", transformController.GetTransform)        // GET /transforms/:id
	}

	history := rg.Group("/history")
	history.Use(middleware.AuthMiddleware(jwtSecret))
	{
		history.GET("", historyController.ListHistory)              // GET /history
		history.DELETE("/:id", historyController.DeleteHistoryItem) // DELETE /history/:id
	}
}
