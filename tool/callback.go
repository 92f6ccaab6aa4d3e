package tool

import (
	"maps"

	"github.com/gin-gonic/gin"
)

func FastReturnError(msg string) gin.H {
	return gin.H{
		"error": msg,
	}
}

// FastReturnErrorWithData adds machine-readable fields ("code", "limit", ...) next to the message.
func FastReturnErrorWithData(msg string, data map[string]any) gin.H {
	resp := gin.H{
		"error": msg,
	}
	maps.Copy(resp, data)
	return resp
}

func FastReturnSuccessWithData(data map[string]any) gin.H {
	resp := gin.H{
		"status": "ok",
	}
	maps.Copy(resp, data)
	return resp
}
