package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"muscat-water/internal/api/models"
)

// ErrorHandler middleware turns panics into an INTERNAL_ERROR response.
func ErrorHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Printf("[API] panic on %s %s (request_id=%s): %v",
			c.Request.Method, c.Request.URL.Path, c.GetString(RequestIDKey), recovered)
		message := "An unexpected error occurred"
		if s, ok := recovered.(string); ok {
			message = s
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INTERNAL_ERROR",
				Message: message,
			},
		})
	})
}
