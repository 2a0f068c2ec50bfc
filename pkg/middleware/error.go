package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"errandbit/pkg/errutil"
)

// Error renders the last error pushed onto the gin context as the JSON
// error envelope. Unexpected errors collapse to a generic 500 so internals
// never leak to the client.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		err := c.Errors.Last()
		if err == nil {
			return
		}

		if v, ok := err.Err.(errutil.BaseError); ok {
			c.JSON(v.Code.HTTPStatus(), gin.H{"success": false, "error": v.JSON().(map[string]interface{})["error"]})
			return
		}

		zap.L().Error("unhandled error", zap.String("path", c.FullPath()), zap.Error(err.Err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   gin.H{"code": errutil.StatusInternal, "message": "internal error"},
		})
	}
}
