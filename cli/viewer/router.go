package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/daniil11ru/airtrack/cli/viewer/surface"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// newMapRouter обслуживает браузерную часть карты
func newMapRouter(layer *surface.Layer, hub *surface.Hub) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	markers := gin.WrapH(hub.Handler())
	router.GET("/markers", markers)
	router.GET("/markers.json", markers)
	router.GET("/markers/:handle", func(c *gin.Context) {
		h, err := strconv.ParseUint(c.Param("handle"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный идентификатор маркера"})
			return
		}
		m, ok := layer.Marker(surface.Handle(h))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "маркер не найден"})
			return
		}
		c.JSON(http.StatusOK, m)
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "subscribers": hub.Count()})
	})

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("Запрос к карте обработан")
	}
}
