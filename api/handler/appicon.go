package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AppIcon serves the application's own SVG icon.
func AppIcon(svg []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "public, max-age=86400")
		c.Data(http.StatusOK, "image/svg+xml", svg)
	}
}
