package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"propfinder/server/internal/logging"
)

// NewRouter builds the engine with recovery, request logging, CORS and the
// HTML templates, then registers every route.
func NewRouter(handler *Handler, allowedOrigins []string, logger *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.RequestLogger(logger))
	router.Use(cors.New(corsConfig(allowedOrigins)))
	router.SetHTMLTemplate(Templates())

	SetupRoutes(router, handler)
	return router
}

func corsConfig(allowedOrigins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cfg
}

func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.GET("/", handler.Index)
	router.GET("/health", handler.Health)
	router.POST("/predict", handler.Predict)

	api := router.Group("/api")
	{
		api.GET("/properties", handler.GetProperties)
		api.GET("/properties/geojson", handler.GetPropertiesGeoJSON)
		api.GET("/localities/geojson", handler.GetLocalityHulls)
		api.GET("/recommendations", handler.GetRecommendations)
		api.GET("/options", handler.GetOptions)
		api.GET("/stats", handler.GetPropertyStats)
		api.GET("/cities", handler.GetCities)
		api.GET("/cities/:slug", handler.GetCity)
		api.GET("/models", handler.GetModels)
		api.GET("/predictions/recent", handler.GetRecentPredictions)
	}
}
