package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/moyoez/dropzone-go/tool"
	"github.com/moyoez/dropzone-go/upload"
)

type CancelController struct {
	engine *upload.Engine
}

func NewCancelController(engine *upload.Engine) *CancelController {
	return &CancelController{engine: engine}
}

// HandleCancel always answers 200; cancelling an unknown upload is not an error.
// POST /api/upload/cancel/:uploadId
func (ctrl *CancelController) HandleCancel(c *gin.Context) {
	uploadID := c.Param("uploadId")
	tool.DefaultLogger.Infof("[Cancel] Received cancel request: uploadId=%s", uploadID)
	existed := ctrl.engine.Cancel(c.Request.Context(), uploadID)
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(map[string]any{"cancelled": existed}))
}
