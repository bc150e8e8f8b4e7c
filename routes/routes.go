package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nanodrive/controllers"
	"nanodrive/metrics"
	"nanodrive/middleware"
	"nanodrive/services"
)

// ServiceContainer holds the services the HTTP layer is built on.
type ServiceContainer struct {
	JWTSecret   string
	MaxFileSize int64

	Directory *services.DirectoryService
	Nodes     *services.NodeService
	Uploads   *services.UploadCoordinator
	Pipeline  *services.PipelineExecutor
	History   *services.HistoryService

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// SetupRoutesWithContainer registers every API route group under api.
func SetupRoutesWithContainer(api *gin.RouterGroup, container *ServiceContainer) {
	folderController := controllers.NewFolderController(container.Directory, container.Nodes)
	fileController := controllers.NewFileController(container.Nodes, container.Uploads)
	transformController := controllers.NewTransformController(container.Pipeline, container.MaxFileSize)
	historyController := controllers.NewHistoryController(container.History)

	RegisterFolderRoutes(api, container.JWTSecret, folderController)
	RegisterFileRoutes(api, container.JWTSecret, fileController)
	RegisterTransformRoutes(api, container.JWTSecret, transformController, historyController)
}

// NewRouter builds the gin engine: CORS, request metrics, /health, /metrics and /api.
func NewRouter(container *ServiceContainer, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(allowedOrigins))
	router.Use(container.Metrics.Middleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC(),
		})
	})
	if container.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(container.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	SetupRoutesWithContainer(api, container)
	return router
}
